package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-deskline/internal/pkg/conversation/domain"
)

// PgAgentDirectory lists known agents with their last recorded connectivity.
// This is only the roster seed; live truth arrives via presence broadcasts.
type PgAgentDirectory struct {
	pool *pgxpool.Pool
}

func NewPgAgentDirectory(pool *pgxpool.Pool) *PgAgentDirectory {
	return &PgAgentDirectory{pool: pool}
}

func (r *PgAgentDirectory) Agents(ctx context.Context) ([]domain.AgentPresenceEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgAgentDirectory: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id::text, name, connected, status
		FROM desk.agent
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AgentPresenceEntry
	for rows.Next() {
		var e domain.AgentPresenceEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Connected, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
