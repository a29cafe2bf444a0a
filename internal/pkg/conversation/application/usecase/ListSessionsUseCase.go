package usecase

import (
	"context"
	"fmt"

	"go-deskline/internal/pkg/conversation/domain"
	repository "go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// SessionSummary is one row of the conversation list, with the derived
// needs-human signal the list surfaces next to raw status.
type SessionSummary struct {
	domain.Session
	NeedsHuman bool
}

// ListSessionsUseCase fetches the session list for the console entry screen.
// One use case per file.
type ListSessionsUseCase struct {
	Store repository.SessionStore
}

func NewListSessionsUseCase(store repository.SessionStore) *ListSessionsUseCase {
	return &ListSessionsUseCase{Store: store}
}

// Execute lists sessions, newest state as the store reports it.
func (uc *ListSessionsUseCase) Execute(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := uc.Store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{Session: s, NeedsHuman: s.NeedsHuman()})
	}
	return out, nil
}
