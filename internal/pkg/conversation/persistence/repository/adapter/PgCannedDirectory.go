package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-deskline/internal/pkg/conversation/domain"
)

// PgCannedDirectory serves the shortcut dictionary in its stored order.
type PgCannedDirectory struct {
	pool *pgxpool.Pool
}

func NewPgCannedDirectory(pool *pgxpool.Pool) *PgCannedDirectory {
	return &PgCannedDirectory{pool: pool}
}

func (r *PgCannedDirectory) Responses(ctx context.Context) ([]domain.CannedResponse, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgCannedDirectory: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT shortcut, COALESCE(category, ''), content
		FROM desk.canned_response
		ORDER BY position, shortcut
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CannedResponse
	for rows.Next() {
		var c domain.CannedResponse
		if err := rows.Scan(&c.Shortcut, &c.Category, &c.Content); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
