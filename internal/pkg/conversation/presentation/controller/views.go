package controller

import (
	"encoding/json"
	"time"

	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/engine"
)

// View payloads streamed down the console socket. One frame type per engine
// callback so the client patches only the surface that changed.

type messageView struct {
	Sender     string          `json:"sender"`
	Text       string          `json:"text,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	AgentID    string          `json:"agent_id,omitempty"`
	Attachment *attachmentView `json:"attachment,omitempty"`
}

type attachmentView struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type sessionView struct {
	SessionID         string `json:"session_id"`
	Status            string `json:"status"`
	AssignedAgentID   string `json:"assigned_agent_id,omitempty"`
	AssignedAgentName string `json:"assigned_agent_name,omitempty"`
	NeedsHuman        bool   `json:"needs_human"`
}

type typingView struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type agentView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

type suggestionView struct {
	Shortcut string `json:"shortcut"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}

func toMessageViews(msgs []domain.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{
			Sender:    string(m.Sender),
			Text:      m.Text,
			Timestamp: m.Timestamp,
			AgentID:   m.AgentID,
		}
		if m.Attachment != nil {
			v.Attachment = &attachmentView{Kind: string(m.Attachment.Kind), URL: m.Attachment.URL}
		}
		out = append(out, v)
	}
	return out
}

func toSessionView(s domain.Session) sessionView {
	return sessionView{
		SessionID:         s.SessionID,
		Status:            string(s.Status),
		AssignedAgentID:   s.AssignedAgentID,
		AssignedAgentName: s.AssignedAgentName,
		NeedsHuman:        s.NeedsHuman(),
	}
}

// consoleListener forwards engine callbacks down the console socket as typed
// JSON frames.
type consoleListener struct {
	conn *realtime.Connection
}

var _ engine.Listener = (*consoleListener)(nil)

func (l *consoleListener) OnMessagesChanged(msgs []domain.Message) {
	l.send(map[string]any{"type": "messages", "messages": toMessageViews(msgs)})
}

func (l *consoleListener) OnSessionChanged(s domain.Session) {
	l.send(map[string]any{"type": "session", "session": toSessionView(s)})
}

func (l *consoleListener) OnTypingChanged(sig *domain.TypingSignal) {
	if sig == nil {
		l.send(map[string]any{"type": "typing", "typing": nil})
		return
	}
	l.send(map[string]any{"type": "typing", "typing": typingView{
		SessionID:   sig.SessionID,
		DisplayName: sig.DisplayName,
		Role:        string(sig.Role),
	}})
}

func (l *consoleListener) OnAssignableAgentsChanged(agents []domain.AgentPresenceEntry) {
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView{UserID: a.UserID, DisplayName: a.DisplayName, Status: string(a.Status)})
	}
	l.send(map[string]any{"type": "agents", "agents": views})
}

func (l *consoleListener) send(frame map[string]any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = l.conn.Send(payload)
	}
}

func sendSuggestions(conn *realtime.Connection, s *engine.Suggestor, result engine.Action) {
	views := make([]suggestionView, 0, len(s.Results()))
	for _, r := range s.Results() {
		views = append(views, suggestionView{Shortcut: r.Shortcut, Category: r.Category, Content: r.Content})
	}
	frame := map[string]any{
		"type":        "suggestions",
		"visible":     s.Visible(),
		"results":     views,
		"selected":    s.Selected(),
		"buffer":      s.Buffer(),
		"caret":       s.Caret(),
		"last_action": actionString(result),
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func actionString(a engine.Action) string {
	switch a {
	case engine.ActionCommitted:
		return "committed"
	case engine.ActionDismissed:
		return "dismissed"
	case engine.ActionSubmit:
		return "submit"
	case engine.ActionNewline:
		return "newline"
	default:
		return "none"
	}
}
