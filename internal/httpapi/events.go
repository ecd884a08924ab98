package httpapi

import (
	"sync"

	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/session"
)

// EventHub fans lifecycle events out to websocket subscribers. Publish is
// installed as the controller's Listener and never blocks.
type EventHub struct {
	mu     sync.Mutex
	subs   map[host.ActorID]map[int]chan session.Event
	nextID int
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[host.ActorID]map[int]chan session.Event)}
}

// Publish delivers ev to subscribers of its observer and subject. Full
// subscriber buffers drop the event.
func (h *EventHub) Publish(ev session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(ev.Observer, ev)
	if ev.Subject != "" && ev.Subject != ev.Observer {
		h.deliverLocked(ev.Subject, ev)
	}
}

func (h *EventHub) deliverLocked(actor host.ActorID, ev session.Event) {
	for _, ch := range h.subs[actor] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *EventHub) Subscribe(actor host.ActorID) (<-chan session.Event, func()) {
	ch := make(chan session.Event, 32)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[actor] == nil {
		h.subs[actor] = make(map[int]chan session.Event)
	}
	h.subs[actor][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[actor], id)
			if len(h.subs[actor]) == 0 {
				delete(h.subs, actor)
			}
			close(ch)
		})
	}
}
