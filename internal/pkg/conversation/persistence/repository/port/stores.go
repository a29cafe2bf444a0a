package port

import (
	"context"

	"go-deskline/internal/pkg/conversation/domain"
)

// MessageStore is the paginated historical source of past messages and the
// store of record for new ones.
//
// Offset counts messages back from the newest one (offset 0 with limit n is
// the most recent page); items come back in ascending time order. total is
// the server-side count for the whole session at fetch time.
type MessageStore interface {
	Messages(ctx context.Context, sessionID string, limit, offset int) (items []domain.Message, total int, err error)
	SaveMessage(ctx context.Context, sessionID string, m domain.Message) (id string, err error)
}

// SessionStore owns session lifecycle state. Assign and Close persist the
// transition; Session re-reads current state so callers can reconcile to
// whatever the store reports rather than their own optimistic guess.
type SessionStore interface {
	Sessions(ctx context.Context) ([]domain.Session, error)
	Session(ctx context.Context, sessionID string) (domain.Session, error)
	Assign(ctx context.Context, sessionID, agentID, agentName string) error
	Close(ctx context.Context, sessionID string) error
}

// AgentDirectory lists known agents with their last recorded connectivity.
type AgentDirectory interface {
	Agents(ctx context.Context) ([]domain.AgentPresenceEntry, error)
}

// AttachmentStore uploads a binary blob before an attachment-bearing message
// is dispatched and returns its public URL.
type AttachmentStore interface {
	Upload(ctx context.Context, name string, data []byte) (url string, err error)
}

// CannedDirectory serves the shortcut dictionary, loaded once per view
// session.
type CannedDirectory interface {
	Responses(ctx context.Context) ([]domain.CannedResponse, error)
}
