package usecase

import (
	"context"
	"errors"
	"testing"

	"go-deskline/internal/pkg/conversation/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessionStore struct {
	sessions []domain.Session
	err      error
}

func (s *stubSessionStore) Sessions(context.Context) ([]domain.Session, error) {
	return s.sessions, s.err
}

func (s *stubSessionStore) Session(context.Context, string) (domain.Session, error) {
	return domain.Session{}, nil
}

func (s *stubSessionStore) Assign(context.Context, string, string, string) error { return nil }
func (s *stubSessionStore) Close(context.Context, string) error                  { return nil }

func TestListSessionsDerivesNeedsHuman(t *testing.T) {
	store := &stubSessionStore{sessions: []domain.Session{
		{SessionID: "s1", Status: domain.StatusActive},
		{SessionID: "s2", Status: domain.StatusAssigned, AssignedAgentID: "a1"},
		{SessionID: "s3", Status: domain.StatusClosed},
	}}
	uc := NewListSessionsUseCase(store)

	out, err := uc.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, out[0].NeedsHuman)
	assert.False(t, out[1].NeedsHuman)
	assert.False(t, out[2].NeedsHuman)
}

func TestListSessionsWrapsStoreError(t *testing.T) {
	uc := NewListSessionsUseCase(&stubSessionStore{err: errors.New("db down")})

	_, err := uc.Execute(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}
