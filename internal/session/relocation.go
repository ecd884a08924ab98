package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/journal"
	"github.com/antoniostano/peek/internal/observability"
)

// moveToSubject runs on the subject's region, then on the observer's
// context. Within one partition the mode is switched before the move;
// across partitions the move happens first and the mode follows.
func (c *Controller) moveToSubject(sess *Session) {
	observer, subject := sess.Observer, sess.Subject
	report := func(ok bool) {
		c.post(func() { c.onRelocated(sess, ok) })
	}
	fail := func() { report(false) }

	dest, ok := c.world.Location(subject)
	if !ok {
		fail()
		return
	}
	c.world.RunOnRegion(dest, func() {
		if !c.world.IsOnline(observer) || !c.world.IsOnline(subject) {
			fail()
			return
		}
		dest, _ := c.world.Location(subject)
		current, _ := c.world.Location(observer)

		if !current.SamePartition(dest) {
			c.world.RunOnActor(observer, func() {
				c.world.Relocate(observer, dest, func(ok bool) {
					if ok {
						if err := c.world.SetMode(observer, host.ModeSpectator); err != nil {
							log.Printf("session %s: set spectator mode for %s failed: %v", sess.ID, observer, err)
						}
					}
					report(ok)
				})
			}, fail)
			return
		}

		c.world.RunOnActor(observer, func() {
			if err := c.world.SetMode(observer, host.ModeSpectator); err != nil {
				log.Printf("session %s: set spectator mode for %s failed: %v", sess.ID, observer, err)
				fail()
				return
			}
			c.world.Relocate(observer, dest, func(ok bool) {
				if !ok {
					if err := c.world.SetMode(observer, sess.OriginalMode); err != nil {
						log.Printf("session %s: reset mode for %s failed: %v", sess.ID, observer, err)
					}
				}
				report(ok)
			})
		}, fail)
	})
}

func (c *Controller) onRelocated(sess *Session, ok bool) {
	_, registered := c.sessions.current(sess.Observer, sess.ID)
	if !registered || sess.State() != StateActive {
		// The session ended while the move was in flight. Its teardown may
		// have returned the observer before this move landed, so return
		// them again.
		if ok && sess.State() == StateClosed {
			if c.closing {
				// The shutdown drain may already be waiting; the journal
				// returns the observer on their next join instead.
				log.Printf("session %s: late relocation during shutdown, keeping snapshot for %s", sess.ID, sess.Observer)
				c.persist(sess)
				return
			}
			c.debugf("session %s: late relocation, returning observer again", sess.ID)
			c.returnObserver(sess, "")
		}
		return
	}

	if !ok {
		sess.beginExit()
		c.sessions.remove(sess.Observer)
		c.metrics.ActiveSessions.Set(float64(len(c.sessions)))
		c.metrics.SessionEvents.WithLabelValues("relocation_failed").Inc()
		c.forget(sess.Observer)
		sess.close()
		c.tell(sess.Observer, "teleport-failed")
		c.emit(Event{Type: EventRelocationFailed, SessionID: sess.ID, Observer: sess.Observer, Subject: sess.Subject})
		log.Printf("session %s: moving %s to %s failed", sess.ID, sess.Observer, sess.Subject)
		return
	}

	sess.spectating = true
	c.metrics.ObserveStage(observability.StageStartToSpectating, c.clock.Now().Sub(sess.StartedAt))
	c.metrics.SessionEvents.WithLabelValues("spectating").Inc()
	c.tell(sess.Observer, "peek-start", "player", c.world.Name(sess.Subject))
	c.tell(sess.Subject, "being-peeked", "player", c.world.Name(sess.Observer))
	if c.sounds.Start != "" {
		c.messenger.PlaySound(sess.Subject, c.sounds.Start)
	}
	c.refreshActionBar(sess.Subject)
	c.emit(Event{Type: EventSpectating, SessionID: sess.ID, Observer: sess.Observer, Subject: sess.Subject})
}

// returnObserver issues the restoration of sess. Completion is reported
// on the registry queue and counted in the shutdown drain.
func (c *Controller) returnObserver(sess *Session, reason Reason) {
	started := c.clock.Now()
	c.inflight.Add(1)
	c.restore(sess.ID, sess.Observer, sess.OriginalLocation, sess.OriginalMode, func(ok bool) {
		if !c.post(func() {
			defer c.inflight.Done()
			c.onReturned(sess, reason, ok, started)
		}) {
			c.inflight.Done()
		}
	})
}

func (c *Controller) onReturned(sess *Session, reason Reason, ok bool, started time.Time) {
	if !ok {
		c.metrics.SessionEvents.WithLabelValues("restore_failed").Inc()
		c.emit(Event{Type: EventRestoreFailed, SessionID: sess.ID, Observer: sess.Observer, Subject: sess.Subject, Reason: reason})
		return
	}
	now := c.clock.Now()
	c.metrics.ObserveStage(observability.StageExitToRestored, now.Sub(started))
	if reason == ReasonShutdown {
		c.stats.RecordDuration(sess.Observer, now.Sub(sess.StartedAt))
	}
	c.emit(Event{Type: EventRestored, SessionID: sess.ID, Observer: sess.Observer, Subject: sess.Subject, Reason: reason})
}

// restore moves observer back to loc and resets their mode, mirroring the
// partition rule of moveToSubject. done is called exactly once. Failures
// are logged with the intended position so an operator can recover it.
func (c *Controller) restore(id string, observer host.ActorID, loc host.Location, mode host.Mode, done func(ok bool)) {
	warn := func(what string) {
		log.Printf("session %s: %s while returning %s, intended position %s mode=%s", id, what, observer, loc, mode)
	}
	retired := func() {
		c.debugf("session %s: %s left before being returned", id, observer)
		done(false)
	}

	c.world.RunOnRegion(loc, func() {
		if !c.world.IsOnline(observer) {
			retired()
			return
		}
		current, _ := c.world.Location(observer)

		if !current.SamePartition(loc) {
			c.world.RunOnActor(observer, func() {
				c.world.Relocate(observer, loc, func(ok bool) {
					if !ok {
						warn("relocation failed")
						done(false)
						return
					}
					if err := c.world.SetMode(observer, mode); err != nil {
						warn("mode reset failed: " + err.Error())
						done(false)
						return
					}
					done(true)
				})
			}, retired)
			return
		}

		c.world.RunOnActor(observer, func() {
			if err := c.world.SetMode(observer, mode); err != nil {
				warn("mode reset failed: " + err.Error())
			}
			c.world.Relocate(observer, loc, func(ok bool) {
				if !ok {
					warn("relocation failed")
				}
				done(ok)
			})
		}, retired)
	})
}

// recoverLocked restores actor from their journal snapshot, if one
// exists. No session is registered. The snapshot is deleted only once the
// return succeeds.
func (c *Controller) recoverLocked(actor host.ActorID) bool {
	if c.sessions.isObserver(actor) {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.journalTimeout)
	snap, err := c.journal.Get(ctx, actor)
	cancel()
	if err != nil {
		if !errors.Is(err, journal.ErrNotFound) {
			c.metrics.JournalErrors.WithLabelValues("get").Inc()
			log.Printf("session: journal get for %s failed: %v", actor, err)
		}
		return false
	}

	log.Printf("session: restoring %s from journaled session %s", actor, snap.SessionID)
	c.inflight.Add(1)
	c.restore(snap.SessionID, actor, snap.Location, snap.Mode, func(ok bool) {
		if !c.post(func() {
			defer c.inflight.Done()
			c.onRecovered(snap, ok)
		}) {
			c.inflight.Done()
		}
	})
	return true
}

func (c *Controller) onRecovered(snap journal.Snapshot, ok bool) {
	if !ok {
		c.metrics.SessionEvents.WithLabelValues("recovery_failed").Inc()
		c.emit(Event{Type: EventRestoreFailed, SessionID: snap.SessionID, Observer: snap.Observer, Subject: snap.Subject})
		return
	}
	// A new session may have journaled its own snapshot in the meantime.
	if !c.sessions.isObserver(snap.Observer) {
		c.forget(snap.Observer)
	}
	c.metrics.SessionEvents.WithLabelValues("recovered").Inc()
	c.tell(snap.Observer, "peek-restored")
	c.emit(Event{Type: EventRecovered, SessionID: snap.SessionID, Observer: snap.Observer, Subject: snap.Subject})
}
