package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-deskline/internal/pkg/conversation/domain"
)

// ErrSessionNotFound marks a read of an unknown session ID.
var ErrSessionNotFound = errors.New("session store: not found")

// PgSessionStore owns session lifecycle rows.
type PgSessionStore struct {
	pool *pgxpool.Pool
}

func NewPgSessionStore(pool *pgxpool.Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool}
}

func (r *PgSessionStore) Sessions(ctx context.Context) ([]domain.Session, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgSessionStore: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, status, COALESCE(assigned_agent_id::text, ''), COALESCE(assigned_agent_name, '')
		FROM desk.session
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.SessionID, &s.Status, &s.AssignedAgentID, &s.AssignedAgentName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PgSessionStore) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	if r == nil || r.pool == nil {
		return domain.Session{}, errors.New("PgSessionStore: nil pool")
	}
	var s domain.Session
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, status, COALESCE(assigned_agent_id::text, ''), COALESCE(assigned_agent_name, '')
		FROM desk.session
		WHERE id = $1::uuid
	`, sessionID).Scan(&s.SessionID, &s.Status, &s.AssignedAgentID, &s.AssignedAgentName)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrSessionNotFound
	}
	return s, err
}

// Assign writes the new owner. Concurrent assigns race at the store; last
// write wins and callers reconcile by re-reading.
func (r *PgSessionStore) Assign(ctx context.Context, sessionID, agentID, agentName string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgSessionStore: nil pool")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE desk.session
		SET status = $2, assigned_agent_id = $3::uuid, assigned_agent_name = $4, updated_at = now()
		WHERE id = $1::uuid AND status <> $5
	`, sessionID, domain.StatusAssigned, agentID, agentName, domain.StatusClosed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PgSessionStore) Close(ctx context.Context, sessionID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgSessionStore: nil pool")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE desk.session
		SET status = $2, updated_at = now()
		WHERE id = $1::uuid
	`, sessionID, domain.StatusClosed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
