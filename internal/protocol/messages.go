package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientCommand  MessageType = "client_command"
	TypeClientComplete MessageType = "client_complete"
	TypeNotification   MessageType = "notification"
	TypeCommandResult  MessageType = "command_result"
	TypeCompletions    MessageType = "completions"
	TypeSessionEvent   MessageType = "session_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientCommand is one /peek invocation typed by the connected actor.
type ClientCommand struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Args      []string    `json:"args"`
}

// ClientComplete asks for tab completions of the partial Args.
type ClientComplete struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Args      []string    `json:"args"`
}

// Notification mirrors one message, action bar or sound cue delivered to
// the actor.
type Notification struct {
	Type MessageType `json:"type"`
	Kind string      `json:"kind"`
	Text string      `json:"text"`
	TSMs int64       `json:"ts_ms"`
}

type CommandResult struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Outcome   string      `json:"outcome"`
	SessionID string      `json:"session_id,omitempty"`
	Text      string      `json:"text,omitempty"`
}

type Completions struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Options   []string    `json:"options"`
}

type SessionEvent struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event"`
	SessionID string      `json:"session_id,omitempty"`
	Observer  string      `json:"observer"`
	Subject   string      `json:"subject,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	TSMs      int64       `json:"ts_ms"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientCommand:
		var msg ClientCommand
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Args = trimArgs(msg.Args)
		return msg, nil
	case TypeClientComplete:
		var msg ClientComplete
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if len(msg.Args) > 8 {
			return nil, errors.New("invalid client_complete")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// trimArgs drops blank arguments so that "/peek  bob" and "/peek bob"
// dispatch the same way.
func trimArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// TypeOf reports the MessageType carried by a protocol value.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientCommand:
		return m.Type, true
	case ClientComplete:
		return m.Type, true
	case Notification:
		return m.Type, true
	case CommandResult:
		return m.Type, true
	case Completions:
		return m.Type, true
	case SessionEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
