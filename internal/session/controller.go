// Package session runs the observation lifecycle: admitting observers,
// moving them to their subject, and returning them exactly once.
//
// All registry mutations happen on a single dispatch queue. Host work
// (relocation, mode changes) runs on the host's contexts and reports back
// by posting onto that queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/antoniostano/peek/internal/clock"
	"github.com/antoniostano/peek/internal/consent"
	"github.com/antoniostano/peek/internal/cooldown"
	"github.com/antoniostano/peek/internal/dispatch"
	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/journal"
	"github.com/antoniostano/peek/internal/messages"
	"github.com/antoniostano/peek/internal/observability"
	"github.com/antoniostano/peek/internal/policy"
	"github.com/antoniostano/peek/internal/stats"
)

const defaultJournalTimeout = 2 * time.Second

// ConsentStore is the privacy and pending-request surface the controller
// needs. *consent.Store implements it.
type ConsentStore interface {
	Toggle(actor host.ActorID) bool
	IsPrivate(actor host.ActorID) bool
	Request(observer, subject host.ActorID) (consent.Request, bool)
	Take(subject host.ActorID) (consent.Request, bool)
	DropActor(actor host.ActorID) []consent.Request
}

type Sounds struct {
	Start string
	End   string
}

type Options struct {
	World     host.World
	Messenger host.Messenger
	Messages  *messages.Catalog
	Journal   journal.Store
	Cooldown  *cooldown.Gate
	Consent   ConsentStore
	Stats     stats.Recorder
	Metrics   *observability.Metrics
	Clock     clock.Clock
	Listener  Listener

	// MaxDuration ends a session automatically. Zero disables the timer.
	MaxDuration time.Duration
	// CheckTargetPermission rejects subjects holding the exempt node.
	CheckTargetPermission bool
	Sounds                Sounds
	JournalTimeout        time.Duration
	Debug                 bool
}

type Controller struct {
	world     host.World
	messenger host.Messenger
	messages  *messages.Catalog
	journal   journal.Store
	cooldown  *cooldown.Gate
	consent   ConsentStore
	stats     stats.Recorder
	metrics   *observability.Metrics
	clock     clock.Clock
	listener  Listener

	maxDuration     time.Duration
	checkProtection bool
	sounds          Sounds
	journalTimeout  time.Duration
	debug           bool

	queue    *dispatch.Queue
	sessions registry
	closing  bool
	inflight sync.WaitGroup
}

func New(opts Options) (*Controller, error) {
	if opts.World == nil {
		return nil, errors.New("session: world is required")
	}
	c := &Controller{
		world:           opts.World,
		messenger:       opts.Messenger,
		messages:        opts.Messages,
		journal:         opts.Journal,
		cooldown:        opts.Cooldown,
		consent:         opts.Consent,
		stats:           opts.Stats,
		metrics:         opts.Metrics,
		clock:           opts.Clock,
		listener:        opts.Listener,
		maxDuration:     opts.MaxDuration,
		checkProtection: opts.CheckTargetPermission,
		sounds:          opts.Sounds,
		journalTimeout:  opts.JournalTimeout,
		debug:           opts.Debug,
		sessions:        make(registry),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.messenger == nil {
		if m, ok := opts.World.(host.Messenger); ok {
			c.messenger = m
		} else {
			return nil, errors.New("session: messenger is required")
		}
	}
	if c.messages == nil {
		c.messages = messages.Default()
	}
	if c.journal == nil {
		c.journal = journal.NewInMemoryStore()
	}
	if c.cooldown == nil {
		c.cooldown = cooldown.NewGate(c.clock, 0)
	}
	if c.consent == nil {
		c.consent = consent.NewStore(c.clock, 0)
	}
	if c.stats == nil {
		c.stats = stats.Noop{}
	}
	if c.metrics == nil {
		c.metrics = observability.NewMetricsWith(prometheus.NewRegistry(), "peek")
	}
	if c.journalTimeout <= 0 {
		c.journalTimeout = defaultJournalTimeout
	}
	c.queue = dispatch.NewQueue("session-registry")
	return c, nil
}

// Start asks to begin a session for observer on the online actor named
// targetName. A Started result means the session is registered; the move
// to the subject completes asynchronously.
func (c *Controller) Start(ctx context.Context, observer host.ActorID, targetName string) (Result, error) {
	var res Result
	err := c.call(ctx, "start", func() { res = c.startLocked(observer, targetName) }, &res)
	return res, err
}

// Exit ends observer's session on their request.
func (c *Controller) Exit(ctx context.Context, observer host.ActorID) (Result, error) {
	var res Result
	err := c.call(ctx, "exit", func() {
		res = c.exitLocked(observer, ReasonCommand)
		if res.Outcome == OutcomeNotActive {
			c.tell(observer, "not-peeking")
		}
	}, &res)
	return res, err
}

// Accept consumes subject's pending request and starts the session it
// asked for.
func (c *Controller) Accept(ctx context.Context, subject host.ActorID) (Result, error) {
	var res Result
	err := c.call(ctx, "accept", func() { res = c.acceptLocked(subject) }, &res)
	return res, err
}

func (c *Controller) Deny(ctx context.Context, subject host.ActorID) (Result, error) {
	var res Result
	err := c.call(ctx, "deny", func() { res = c.denyLocked(subject) }, &res)
	return res, err
}

// TogglePrivacy flips subject's private mode.
func (c *Controller) TogglePrivacy(ctx context.Context, actor host.ActorID) (Result, error) {
	var res Result
	err := c.call(ctx, "privacy", func() {
		res = Result{Outcome: OutcomePrivacyDisabled, Subject: actor}
		if c.consent.Toggle(actor) {
			res.Outcome = OutcomePrivacyEnabled
			c.tell(actor, "privacy-enabled")
			return
		}
		c.tell(actor, "privacy-disabled")
	}, &res)
	return res, err
}

// HandleQuit tears down every session the departing actor takes part in
// and drops their pending requests.
func (c *Controller) HandleQuit(ctx context.Context, actor host.ActorID) error {
	return c.call(ctx, "quit", func() {
		if c.sessions.isObserver(actor) {
			c.exitLocked(actor, ReasonDisconnect)
		}
		for _, observer := range c.sessions.observersOf(actor) {
			c.exitLocked(observer, ReasonSubjectLeft)
		}
		c.consent.DropActor(actor)
	}, nil)
}

// HandleJoin restores actor from a journal snapshot left by an earlier
// session that never completed its return. It reports whether a snapshot
// was found.
func (c *Controller) HandleJoin(ctx context.Context, actor host.ActorID) (bool, error) {
	var found bool
	err := c.call(ctx, "join", func() { found = c.recoverLocked(actor) }, nil)
	return found, err
}

// Recover restores every journaled observer that is currently online and
// returns how many snapshots remain pending for offline observers.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	snaps, err := c.Pending(ctx)
	if err != nil {
		return 0, err
	}
	pending := 0
	for _, snap := range snaps {
		if !c.world.IsOnline(snap.Observer) {
			pending++
			continue
		}
		if _, err := c.HandleJoin(ctx, snap.Observer); err != nil {
			return pending, err
		}
	}
	return pending, nil
}

// Pending lists journaled snapshots awaiting restoration. Snapshots backing
// a registered session are live, not pending, and are left out.
func (c *Controller) Pending(ctx context.Context) ([]journal.Snapshot, error) {
	snaps, err := c.journal.List(ctx)
	if err != nil {
		c.metrics.JournalErrors.WithLabelValues("list").Inc()
		return nil, err
	}
	pending := make([]journal.Snapshot, 0, len(snaps))
	err = c.queue.Call(ctx, func() {
		for _, snap := range snaps {
			if !c.sessions.isObserver(snap.Observer) {
				pending = append(pending, snap)
			}
		}
	})
	if err != nil {
		return nil, translate(err)
	}
	return pending, nil
}

// Session returns observer's registered session, if any.
func (c *Controller) Session(ctx context.Context, observer host.ActorID) (Info, bool, error) {
	var (
		info Info
		ok   bool
	)
	err := c.queue.Call(ctx, func() {
		var e *entry
		if e, ok = c.sessions.lookup(observer); ok {
			info = e.session.info()
		}
	})
	return info, ok, translate(err)
}

// Sessions lists registered sessions in start order.
func (c *Controller) Sessions(ctx context.Context) ([]Info, error) {
	var out []Info
	err := c.queue.Call(ctx, func() { out = c.sessions.infos() })
	return out, translate(err)
}

// ObserverCount is how many sessions currently watch subject.
func (c *Controller) ObserverCount(ctx context.Context, subject host.ActorID) (int, error) {
	var n int
	err := c.queue.Call(ctx, func() { n = len(c.sessions.observersOf(subject)) })
	return n, translate(err)
}

// Barrier returns once every task queued before it has run.
func (c *Controller) Barrier(ctx context.Context) error {
	return translate(c.queue.Call(ctx, func() {}))
}

// Shutdown force-exits every session, waits for their restorations until
// ctx is done, then stops the queue. Snapshots are kept so observers whose
// return did not complete are restored on their next join.
func (c *Controller) Shutdown(ctx context.Context) error {
	var count int
	err := c.queue.Call(ctx, func() {
		c.closing = true
		count = len(c.sessions)
		for observer := range c.sessions {
			c.exitLocked(observer, ReasonShutdown)
		}
	})
	if err != nil && !errors.Is(err, dispatch.ErrClosed) {
		return err
	}
	if count > 0 {
		log.Printf("session: shutdown ended %d session(s)", count)
	}

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = ctx.Err()
		log.Printf("session: shutdown drain interrupted: %v", drainErr)
	}

	c.queue.Close()
	select {
	case <-c.queue.Done():
	case <-ctx.Done():
		if drainErr == nil {
			drainErr = ctx.Err()
		}
	}
	return drainErr
}

// call runs fn on the queue and records the resulting outcome.
func (c *Controller) call(ctx context.Context, op string, fn func(), res *Result) error {
	started := c.clock.Now()
	var closing, completed bool
	err := c.queue.Call(ctx, func() {
		if closing = c.closing; closing {
			return
		}
		fn()
		completed = true
	})
	if err != nil {
		return translate(err)
	}
	if closing {
		return ErrClosed
	}
	if !completed {
		return fmt.Errorf("session: %s: %w", op, ErrIncomplete)
	}
	if res != nil {
		c.metrics.ObserveOutcome(op, string(res.Outcome))
	}
	if c.debug {
		log.Printf("session: %s took %s", op, c.clock.Now().Sub(started))
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, dispatch.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (c *Controller) startLocked(observer host.ActorID, targetName string) Result {
	if left := c.cooldown.Remaining(observer); left > 0 {
		seconds := int(math.Ceil(left.Seconds()))
		c.tell(observer, "on-cooldown", "seconds", strconv.Itoa(seconds))
		return Result{Outcome: OutcomeOnCooldown, Observer: observer, Remaining: left}
	}
	if !c.world.IsOnline(observer) {
		return Result{Outcome: OutcomeObserverOffline, Observer: observer}
	}
	if c.sessions.isObserver(observer) {
		c.tell(observer, "already-peeking")
		return Result{Outcome: OutcomeAlreadyActive, Observer: observer}
	}
	target, ok := c.world.ResolveOnline(targetName)
	if !ok {
		c.tell(observer, "player-not-found", "player", targetName)
		return Result{Outcome: OutcomeTargetNotFound, Observer: observer}
	}
	if target.ID == observer {
		c.tell(observer, "cannot-peek-self")
		return Result{Outcome: OutcomeSelfTarget, Observer: observer}
	}
	if c.sessions.isObserver(target.ID) {
		c.tell(observer, "target-is-peeking")
		return Result{Outcome: OutcomeTargetBusy, Observer: observer, Subject: target.ID}
	}
	if c.isWatched(observer) {
		c.tell(observer, "being-peeked-busy")
		return Result{Outcome: OutcomeObserverWatched, Observer: observer, Subject: target.ID}
	}
	if c.checkProtection && c.world.HasPermission(target.ID, policy.NodeExempt) {
		c.tell(observer, "target-protected")
		return Result{Outcome: OutcomeTargetProtected, Observer: observer, Subject: target.ID}
	}
	if c.consent.IsPrivate(target.ID) {
		if prev, replaced := c.consent.Request(observer, target.ID); replaced {
			c.debugf("request from %s to %s replaced by %s", prev.Observer, target.ID, observer)
		}
		c.tell(target.ID, "peek-request", "player", c.world.Name(observer))
		c.tell(observer, "awaiting-consent", "player", target.Name)
		return Result{Outcome: OutcomeAwaitingConsent, Observer: observer, Subject: target.ID}
	}
	return c.beginLocked(observer, target.ID)
}

func (c *Controller) acceptLocked(subject host.ActorID) Result {
	req, ok := c.consent.Take(subject)
	if !ok {
		c.tell(subject, "no-pending-request")
		return Result{Outcome: OutcomeNoPendingRequest, Subject: subject}
	}
	observer := req.Observer
	if !c.world.IsOnline(observer) {
		c.tell(subject, "requester-offline")
		return Result{Outcome: OutcomeRequesterOffline, Observer: observer, Subject: subject}
	}
	c.tell(subject, "peek-accept-sent", "player", c.world.Name(observer))

	// The world may have changed while the request waited.
	if c.sessions.isObserver(observer) {
		c.tell(observer, "already-peeking")
		return Result{Outcome: OutcomeAlreadyActive, Observer: observer, Subject: subject}
	}
	if c.sessions.isObserver(subject) {
		c.tell(observer, "target-is-peeking")
		return Result{Outcome: OutcomeTargetBusy, Observer: observer, Subject: subject}
	}
	if c.isWatched(observer) {
		c.tell(observer, "being-peeked-busy")
		return Result{Outcome: OutcomeObserverWatched, Observer: observer, Subject: subject}
	}
	return c.beginLocked(observer, subject)
}

// isWatched reports whether actor is the subject of an active session. An
// actor is never observer and subject at the same time.
func (c *Controller) isWatched(actor host.ActorID) bool {
	return len(c.sessions.observersOf(actor)) > 0
}

func (c *Controller) denyLocked(subject host.ActorID) Result {
	req, ok := c.consent.Take(subject)
	if !ok {
		c.tell(subject, "no-pending-request")
		return Result{Outcome: OutcomeNoPendingRequest, Subject: subject}
	}
	c.tell(req.Observer, "peek-denied", "player", c.world.Name(subject))
	c.tell(subject, "peek-deny-sent", "player", c.world.Name(req.Observer))
	return Result{Outcome: OutcomeDenied, Observer: req.Observer, Subject: subject}
}

// beginLocked registers the session, journals its restoration data and
// only then starts the move to the subject.
func (c *Controller) beginLocked(observer, subject host.ActorID) Result {
	loc, okLoc := c.world.Location(observer)
	mode, okMode := c.world.Mode(observer)
	if !okLoc || !okMode || !c.world.IsOnline(subject) {
		c.tell(observer, "player-not-found", "player", c.world.Name(subject))
		return Result{Outcome: OutcomeTargetNotFound, Observer: observer, Subject: subject}
	}

	sess := &Session{
		ID:               uuid.NewString(),
		Observer:         observer,
		Subject:          subject,
		OriginalLocation: loc,
		OriginalMode:     mode,
		StartedAt:        c.clock.Now(),
	}
	e := &entry{session: sess}
	c.sessions[observer] = e
	c.metrics.ActiveSessions.Set(float64(len(c.sessions)))
	c.metrics.SessionEvents.WithLabelValues("started").Inc()
	c.stats.RecordStart(observer, subject)
	c.persist(sess)

	if c.maxDuration > 0 {
		id := sess.ID
		e.timer = c.clock.AfterFunc(c.maxDuration, func() {
			c.queue.Submit(func() { c.onTimeout(observer, id) })
		})
	}
	c.debugf("session %s: %s -> %s from %s", sess.ID, observer, subject, loc)

	c.moveToSubject(sess)
	return Result{Outcome: OutcomeStarted, Observer: observer, Subject: subject, SessionID: sess.ID}
}

// exitLocked is the single teardown path. Only the caller that wins the
// exiting latch does any work.
func (c *Controller) exitLocked(observer host.ActorID, reason Reason) Result {
	e, ok := c.sessions.lookup(observer)
	if !ok {
		return Result{Outcome: OutcomeNotActive, Observer: observer}
	}
	sess := e.session
	// Teardown finishes within one queue task and unregisters the session,
	// so a registered session is never seen mid-exit here. The latch still
	// guards any future path that splits teardown across tasks.
	if !sess.beginExit() {
		return Result{Outcome: OutcomeAlreadyExiting, Observer: observer, Subject: sess.Subject, SessionID: sess.ID}
	}

	c.sessions.remove(observer)
	c.metrics.ActiveSessions.Set(float64(len(c.sessions)))

	if reason.keepsSnapshot() {
		c.persist(sess)
	} else {
		c.forget(observer)
	}

	c.returnObserver(sess, reason)

	now := c.clock.Now()
	elapsed := now.Sub(sess.StartedAt)
	c.tell(observer, "peek-end")
	if c.world.IsOnline(sess.Subject) {
		c.tell(sess.Subject, "peek-end-target", "player", c.world.Name(observer))
		if c.sounds.End != "" {
			c.messenger.PlaySound(sess.Subject, c.sounds.End)
		}
	}
	c.refreshActionBar(sess.Subject)

	// Shutdown exits record their duration once the return completes.
	if reason != ReasonShutdown {
		c.stats.RecordDuration(observer, elapsed)
	}
	c.metrics.SessionDuration.Observe(elapsed.Seconds())
	c.metrics.ExitReasons.WithLabelValues(string(reason)).Inc()
	c.cooldown.SetAfterPeek(observer)
	sess.close()
	c.emit(Event{Type: EventClosed, SessionID: sess.ID, Observer: observer, Subject: sess.Subject, Reason: reason})
	c.debugf("session %s: closed (%s) after %s", sess.ID, reason, elapsed.Round(time.Second))

	return Result{Outcome: OutcomeExited, Observer: observer, Subject: sess.Subject, SessionID: sess.ID}
}

func (c *Controller) onTimeout(observer host.ActorID, id string) {
	if _, ok := c.sessions.current(observer, id); !ok {
		return
	}
	if res := c.exitLocked(observer, ReasonTimeout); res.Outcome == OutcomeExited {
		c.tell(observer, "time-expired")
	}
}

func (c *Controller) persist(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.journalTimeout)
	defer cancel()
	err := c.journal.Put(ctx, journal.Snapshot{
		Observer:  sess.Observer,
		Subject:   sess.Subject,
		SessionID: sess.ID,
		Location:  sess.OriginalLocation,
		Mode:      sess.OriginalMode,
		StartedAt: sess.StartedAt,
	})
	if err != nil {
		c.metrics.JournalErrors.WithLabelValues("put").Inc()
		log.Printf("session %s: journal put failed: %v", sess.ID, err)
	}
}

func (c *Controller) forget(observer host.ActorID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.journalTimeout)
	defer cancel()
	if err := c.journal.Delete(ctx, observer); err != nil {
		c.metrics.JournalErrors.WithLabelValues("delete").Inc()
		log.Printf("session: journal delete for %s failed: %v", observer, err)
	}
}

func (c *Controller) tell(actor host.ActorID, key string, pairs ...string) {
	if text, ok := c.messages.Render(key, pairs...); ok {
		c.messenger.SendMessage(actor, text)
	}
}

func (c *Controller) refreshActionBar(subject host.ActorID) {
	n := len(c.sessions.observersOf(subject))
	if n == 0 || !c.world.IsOnline(subject) {
		return
	}
	if text, ok := c.messages.Plain("action-bar", "count", strconv.Itoa(n)); ok {
		c.messenger.SendActionBar(subject, text)
	}
}

func (c *Controller) emit(ev Event) {
	if c.listener == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = c.clock.Now()
	}
	c.listener(ev)
}

// post schedules fn on the registry queue. It reports false once the
// controller has stopped.
func (c *Controller) post(fn func()) bool {
	return c.queue.Submit(fn)
}

func (c *Controller) debugf(format string, args ...any) {
	if c.debug {
		log.Printf("session: "+format, args...)
	}
}
