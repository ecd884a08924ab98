package sim

import (
	"time"

	"github.com/antoniostano/peek/internal/host"
)

type NotificationKind string

const (
	KindMessage   NotificationKind = "message"
	KindActionBar NotificationKind = "action_bar"
	KindSound     NotificationKind = "sound"
)

// Notification is one cue delivered to an actor.
type Notification struct {
	Kind NotificationKind `json:"kind"`
	Text string           `json:"text"`
	At   time.Time        `json:"at"`
}

func (w *World) SendMessage(id host.ActorID, text string) {
	w.deliver(id, Notification{Kind: KindMessage, Text: text})
}

func (w *World) SendActionBar(id host.ActorID, text string) {
	w.deliver(id, Notification{Kind: KindActionBar, Text: text})
}

func (w *World) PlaySound(id host.ActorID, sound string) {
	w.deliver(id, Notification{Kind: KindSound, Text: sound})
}

// Subscribe streams notifications for id until the returned cancel func
// is called. Slow subscribers lose notifications rather than block.
func (w *World) Subscribe(id host.ActorID) (<-chan Notification, func()) {
	ch := make(chan Notification, 64)
	w.mu.Lock()
	w.nextSub++
	subID := w.nextSub
	if _, ok := w.subs[id]; !ok {
		w.subs[id] = make(map[int]chan Notification)
	}
	w.subs[id][subID] = ch
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		subs := w.subs[id]
		if subs == nil {
			return
		}
		if c, ok := subs[subID]; ok {
			delete(subs, subID)
			close(c)
		}
		if len(subs) == 0 {
			delete(w.subs, id)
		}
	}
}

// History returns the most recent notifications delivered to id.
func (w *World) History(id host.ActorID) []Notification {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h := w.history[id]
	out := make([]Notification, len(h))
	copy(out, h)
	return out
}

// Messages returns only the chat messages delivered to id.
func (w *World) Messages(id host.ActorID) []string {
	var out []string
	for _, n := range w.History(id) {
		if n.Kind == KindMessage {
			out = append(out, n.Text)
		}
	}
	return out
}

func (w *World) deliver(id host.ActorID, n Notification) {
	n.At = time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok || !a.online {
		return
	}
	h := append(w.history[id], n)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	w.history[id] = h
	for _, ch := range w.subs[id] {
		select {
		case ch <- n:
		default:
		}
	}
}
