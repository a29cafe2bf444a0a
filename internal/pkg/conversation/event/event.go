// Package event normalizes the heterogeneous frames carried by the live
// channel into one tagged-variant Event consumed by the engine. Downstream
// code switches on Event.Kind, never on raw frame shape.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-deskline/internal/pkg/conversation/domain"
)

// Frame type tags as they appear on the wire.
const (
	TypeUserMessage         = "user_message"
	TypeUserMessageForAgent = "user_message_for_agent"
	TypeAgentMessage        = "agent_message"
	TypeBotMessage          = "bot_message"
	TypeInternalNote        = "internal_note"
	TypeAgentConnected      = "agent_connected"
	TypeAgentDisconnected   = "agent_disconnected"
	TypeStatusChanged       = "status_changed"
	TypeTyping              = "typing"
	TypeAgentAnnounce       = "agent_announce"
)

// Kind is the normalized variant tag.
type Kind int

const (
	KindMessage Kind = iota
	KindPresence
	KindTyping
	KindAnnounce
)

// ErrMalformed marks an inbound frame that failed normalization. It is
// swallowed at the channel boundary: logged, never surfaced to the UI, never
// blocking subsequent events.
var ErrMalformed = errors.New("event: malformed frame")

// Frame is the raw wire shape. Every inbound variant is a superset of this;
// unknown fields are ignored.
type Frame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	// TimestampMs is client-stamped on live sends, server-stamped on replays.
	TimestampMs int64  `json:"ts,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status,omitempty"`
	Attachment  *struct {
		Kind string `json:"kind"`
		URL  string `json:"url"`
	} `json:"attachment,omitempty"`
}

// PresenceChange is the normalized presence variant payload.
type PresenceChange struct {
	UserID      string
	DisplayName string
	// Connected/Disconnected tell which flag the broadcast flips; a pure
	// status change leaves connectivity untouched.
	Connected    bool
	Disconnected bool
	Status       domain.PresenceStatus
}

// TypingPing is the normalized typing variant payload.
type TypingPing struct {
	SessionID   string
	UserID      string
	DisplayName string
	Role        domain.Sender
}

// Announce is an idempotent agent-identity announcement on a session topic.
type Announce struct {
	SessionID string
	AgentID   string
	AgentName string
}

// Event is the single shape the merge engine and presence tracker consume.
type Event struct {
	Kind      Kind
	SessionID string

	Message  domain.Message // KindMessage
	Presence PresenceChange // KindPresence
	Typing   TypingPing     // KindTyping
	Announce Announce       // KindAnnounce
}

// Normalize parses a raw frame into an Event. Frames that do not carry
// enough to act on return ErrMalformed (wrapped with the offending type tag).
func Normalize(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeUserMessage, TypeUserMessageForAgent:
		return normalizeMessage(f, domain.SenderUser)
	case TypeAgentMessage:
		return normalizeMessage(f, domain.SenderAgent)
	case TypeBotMessage:
		return normalizeMessage(f, domain.SenderBot)
	case TypeInternalNote:
		return normalizeMessage(f, domain.SenderInternal)
	case TypeAgentConnected:
		return presenceEvent(f, PresenceChange{UserID: f.UserID, DisplayName: f.DisplayName, Connected: true, Status: domain.PresenceOnline})
	case TypeAgentDisconnected:
		return presenceEvent(f, PresenceChange{UserID: f.UserID, DisplayName: f.DisplayName, Disconnected: true})
	case TypeStatusChanged:
		status := domain.PresenceStatus(f.Status)
		if status != domain.PresenceOnline && status != domain.PresenceAway {
			return Event{}, fmt.Errorf("%w: status_changed with status %q", ErrMalformed, f.Status)
		}
		return presenceEvent(f, PresenceChange{UserID: f.UserID, DisplayName: f.DisplayName, Status: status})
	case TypeTyping:
		if f.SessionID == "" || f.DisplayName == "" {
			return Event{}, fmt.Errorf("%w: typing without session or name", ErrMalformed)
		}
		return Event{
			Kind:      KindTyping,
			SessionID: f.SessionID,
			Typing:    TypingPing{SessionID: f.SessionID, UserID: f.UserID, DisplayName: f.DisplayName, Role: domain.Sender(f.Role)},
		}, nil
	case TypeAgentAnnounce:
		if f.SessionID == "" || f.AgentID == "" {
			return Event{}, fmt.Errorf("%w: announce without session or agent", ErrMalformed)
		}
		return Event{
			Kind:      KindAnnounce,
			SessionID: f.SessionID,
			Announce:  Announce{SessionID: f.SessionID, AgentID: f.AgentID, AgentName: f.AgentName},
		}, nil
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, f.Type)
	}
}

func normalizeMessage(f Frame, sender domain.Sender) (Event, error) {
	if f.SessionID == "" {
		return Event{}, fmt.Errorf("%w: %s without session", ErrMalformed, f.Type)
	}
	msg := domain.Message{
		Sender:    sender,
		Text:      f.Text,
		Timestamp: msToTime(f.TimestampMs),
		AgentID:   f.AgentID,
	}
	if f.Attachment != nil {
		msg.Attachment = &domain.Attachment{Kind: domain.AttachmentKind(f.Attachment.Kind), URL: f.Attachment.URL}
	}
	if !msg.Valid() {
		return Event{}, fmt.Errorf("%w: %s without text or attachment", ErrMalformed, f.Type)
	}
	return Event{Kind: KindMessage, SessionID: f.SessionID, Message: msg}, nil
}

func presenceEvent(f Frame, p PresenceChange) (Event, error) {
	if p.UserID == "" {
		return Event{}, fmt.Errorf("%w: %s without user", ErrMalformed, f.Type)
	}
	return Event{Kind: KindPresence, SessionID: f.SessionID, Presence: p}, nil
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// EncodeMessage renders a message as the wire frame matching its sender.
// System messages live only in the historical store and have no wire shape.
func EncodeMessage(sessionID string, m domain.Message) ([]byte, error) {
	t := messageType(m.Sender)
	if t == "" {
		return nil, fmt.Errorf("event: sender %q has no wire frame", m.Sender)
	}
	f := Frame{
		Type:        t,
		SessionID:   sessionID,
		Text:        m.Text,
		TimestampMs: m.Timestamp.UnixMilli(),
		AgentID:     m.AgentID,
	}
	if m.Attachment != nil {
		f.Attachment = &struct {
			Kind string `json:"kind"`
			URL  string `json:"url"`
		}{Kind: string(m.Attachment.Kind), URL: m.Attachment.URL}
	}
	return json.Marshal(f)
}

func messageType(s domain.Sender) string {
	switch s {
	case domain.SenderAgent:
		return TypeAgentMessage
	case domain.SenderBot:
		return TypeBotMessage
	case domain.SenderInternal:
		return TypeInternalNote
	case domain.SenderUser:
		return TypeUserMessage
	default:
		return ""
	}
}

// EncodeTyping renders an outbound typing frame.
func EncodeTyping(sessionID, userID, displayName string, role domain.Sender) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeTyping, SessionID: sessionID, UserID: userID, DisplayName: displayName, Role: string(role)})
}

// EncodePresence renders a presence broadcast for the admin-wide topic.
func EncodePresence(frameType, userID, displayName string, status domain.PresenceStatus) ([]byte, error) {
	return json.Marshal(Frame{Type: frameType, UserID: userID, DisplayName: displayName, Status: string(status)})
}

// EncodeAnnounce renders the idempotent agent-identity announcement.
func EncodeAnnounce(sessionID, agentID, agentName string) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeAgentAnnounce, SessionID: sessionID, AgentID: agentID, AgentName: agentName})
}
