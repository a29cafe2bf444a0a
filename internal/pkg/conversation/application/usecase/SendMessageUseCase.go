package usecase

import (
	"context"
	"fmt"

	"go-deskline/internal/pkg/conversation/domain"
	repository "go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// SendMessageInput carries a validated-at-the-edge message for persistence.
type SendMessageInput struct {
	SessionID string
	Message   domain.Message
}

// SendMessageUseCase persists an outbound message to the store of record.
// Hexagonal: depends on the repository port, returns the stamped message.
// One use case per file.
type SendMessageUseCase struct {
	Store repository.MessageStore
}

func NewSendMessageUseCase(store repository.MessageStore) *SendMessageUseCase {
	return &SendMessageUseCase{Store: store}
}

// Execute validates and saves the message, defaulting a zero timestamp.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (domain.Message, error) {
	if in.SessionID == "" {
		return domain.Message{}, fmt.Errorf("sessionId is required")
	}
	m := in.Message
	if !m.Valid() {
		return domain.Message{}, fmt.Errorf("message must carry a sender and a body or attachment")
	}
	if m.Timestamp.IsZero() {
		return domain.Message{}, fmt.Errorf("message timestamp is required")
	}

	if _, err := uc.Store.SaveMessage(ctx, in.SessionID, m); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return m, nil
}
