package task

import (
	"context"
	"encoding/json"
	"time"

	"go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/application/usecase"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
	storeport "go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// DispatchMessageTaskType is the queue task name for delivering an accepted
// outbound message: persist to the store of record, then fan out on the
// session topic.
const DispatchMessageTaskType = "conversation:dispatch_message"

// DispatchMessagePayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type DispatchMessagePayload struct {
	SessionID      string `json:"sessionId"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	TimestampMs    int64  `json:"ts"`
	AgentID        string `json:"agentId,omitempty"`
	AttachmentKind string `json:"attachmentKind,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	DedupeKey      string `json:"dedupeKey,omitempty"`
}

// NewDispatchTask packages a message for the queue.
func NewDispatchTask(sessionID string, m domain.Message, dedupeKey string) (port.Task, error) {
	p := DispatchMessagePayload{
		SessionID:   sessionID,
		Sender:      string(m.Sender),
		Text:        m.Text,
		TimestampMs: m.Timestamp.UnixMilli(),
		AgentID:     m.AgentID,
		DedupeKey:   dedupeKey,
	}
	if m.Attachment != nil {
		p.AttachmentKind = string(m.Attachment.Kind)
		p.AttachmentURL = m.Attachment.URL
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return port.Task{}, err
	}
	return port.Task{Type: DispatchMessageTaskType, Payload: payload}, nil
}

// RegisterDispatchMessageTask binds the handler to the provided server. The
// handler persists through SendMessageUseCase and broadcasts the resulting
// frame; it is idempotent at the transcript level because every consumer
// deduplicates by fingerprint.
func RegisterDispatchMessageTask(srv port.Server, store storeport.MessageStore, router *realtime.Router) {
	uc := usecase.NewSendMessageUseCase(store)

	srv.Register(DispatchMessageTaskType, func(ctx context.Context, t port.Task) error {
		var p DispatchMessagePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: retrying will not help
			return err
		}

		msg := domain.Message{
			Sender:    domain.Sender(p.Sender),
			Text:      p.Text,
			Timestamp: time.UnixMilli(p.TimestampMs).UTC(),
			AgentID:   p.AgentID,
		}
		if p.AttachmentURL != "" {
			msg.Attachment = &domain.Attachment{Kind: domain.AttachmentKind(p.AttachmentKind), URL: p.AttachmentURL}
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		saved, err := uc.Execute(ctx, usecase.SendMessageInput{SessionID: p.SessionID, Message: msg})
		if err != nil {
			// persistence errors are retried per server policy
			return err
		}

		frame, err := event.EncodeMessage(p.SessionID, saved)
		if err != nil {
			return err
		}
		router.Broadcast(realtime.TopicSession(p.SessionID), frame, "")
		if saved.Sender != domain.SenderInternal {
			// private notes stay off the end-user topic
			router.Broadcast(realtime.TopicSessionUser(p.SessionID), frame, "")
		}
		return nil
	})
}
