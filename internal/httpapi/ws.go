package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/peek/internal/command"
	"github.com/antoniostano/peek/internal/host/sim"
	"github.com/antoniostano/peek/internal/protocol"
	"github.com/antoniostano/peek/internal/session"
)

// handleActorWS attaches a client to an actor: notifications and lifecycle
// events stream out, commands and completion requests come in.
func (s *Server) handleActorWS(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	if !s.host.IsOnline(id) {
		respondError(w, http.StatusNotFound, "actor_offline", "actor is not online")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.countEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	notes, stopNotes := s.host.Subscribe(id)
	defer stopNotes()
	events, stopEvents := s.events.Subscribe(id)
	defer stopEvents()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notes:
				if !ok {
					return
				}
				s.enqueue(outbound, notificationMessage(n))
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.enqueue(outbound, sessionEventMessage(ev))
			}
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					if s.metrics != nil {
						s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
					}
					cancel()
					return
				}
				if t, ok := protocol.TypeOf(msg); ok && s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	sender := command.Sender{ID: id, Player: true}
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := protocol.TypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.ClientCommand:
			s.enqueue(outbound, s.runClientCommand(ctx, sender, msg))
		case protocol.ClientComplete:
			s.enqueue(outbound, protocol.Completions{
				Type:      protocol.TypeCompletions,
				RequestID: msg.RequestID,
				Options:   nonNil(s.commands.Complete(sender, msg.Args)),
			})
		}
	}

	cancel()
	<-pumpDone
	<-writerDone
	s.countEvent("ws_disconnected")
}

func (s *Server) runClientCommand(ctx context.Context, sender command.Sender, msg protocol.ClientCommand) any {
	reply, err := s.commands.Execute(ctx, sender, msg.Args)
	if err != nil {
		log.Printf("httpapi: ws command for %s failed: %v", sender.ID, err)
		_, code := statusFor(err)
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			RequestID: msg.RequestID,
			Code:      code,
			Source:    "controller",
			Retryable: code == "shutting_down",
			Detail:    err.Error(),
		}
	}
	out := protocol.CommandResult{
		Type:      protocol.TypeCommandResult,
		RequestID: msg.RequestID,
		Outcome:   reply.Outcome,
		Text:      reply.Text,
	}
	if reply.Session != nil {
		out.SessionID = reply.Session.SessionID
	}
	return out
}

// enqueue keeps websocket writes single-threaded; a saturated queue drops
// the message.
func (s *Server) enqueue(outbound chan<- any, msg any) {
	t, _ := protocol.TypeOf(msg)
	select {
	case outbound <- msg:
		s.metrics.ObserveOutboundMessage(string(t), "queued")
	default:
		s.metrics.ObserveOutboundMessage(string(t), "drop_full")
	}
}

func (s *Server) countEvent(name string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func notificationMessage(n sim.Notification) protocol.Notification {
	return protocol.Notification{
		Type: protocol.TypeNotification,
		Kind: string(n.Kind),
		Text: n.Text,
		TSMs: n.At.UnixMilli(),
	}
}

func sessionEventMessage(ev session.Event) protocol.SessionEvent {
	return protocol.SessionEvent{
		Type:      protocol.TypeSessionEvent,
		Event:     string(ev.Type),
		SessionID: ev.SessionID,
		Observer:  string(ev.Observer),
		Subject:   string(ev.Subject),
		Reason:    string(ev.Reason),
		TSMs:      ev.At.UnixMilli(),
	}
}
