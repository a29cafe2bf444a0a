package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-deskline/internal/pkg/conversation/domain"
)

// PgMessageStore is the historical message store over the desk database.
type PgMessageStore struct {
	pool *pgxpool.Pool
}

func NewPgMessageStore(pool *pgxpool.Pool) *PgMessageStore {
	return &PgMessageStore{pool: pool}
}

// Messages fetches one page counted back from the newest message and returns
// it in ascending time order together with the session's total count.
func (r *PgMessageStore) Messages(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New("PgMessageStore: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM desk.message WHERE session_id = $1::uuid",
		sessionID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT sender, text, created_at, agent_id, attachment_kind, attachment_url
		FROM desk.message
		WHERE session_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var page []domain.Message
	for rows.Next() {
		var (
			m              domain.Message
			agentID        *string
			attachmentKind *string
			attachmentURL  *string
		)
		if err := rows.Scan(&m.Sender, &m.Text, &m.Timestamp, &agentID, &attachmentKind, &attachmentURL); err != nil {
			return nil, 0, err
		}
		if agentID != nil {
			m.AgentID = *agentID
		}
		if attachmentURL != nil {
			kind := domain.AttachmentText
			if attachmentKind != nil {
				kind = domain.AttachmentKind(*attachmentKind)
			}
			m.Attachment = &domain.Attachment{Kind: kind, URL: *attachmentURL}
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// DESC paging, ascending contract: reverse in place.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, total, nil
}

// SaveMessage appends to the session transcript, letting the DB generate the ID.
func (r *PgMessageStore) SaveMessage(ctx context.Context, sessionID string, m domain.Message) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgMessageStore: nil pool")
	}
	var (
		agentID        *string
		attachmentKind *string
		attachmentURL  *string
	)
	if m.AgentID != "" {
		agentID = &m.AgentID
	}
	if m.Attachment != nil {
		k := string(m.Attachment.Kind)
		attachmentKind = &k
		attachmentURL = &m.Attachment.URL
	}

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO desk.message (session_id, sender, text, created_at, agent_id, attachment_kind, attachment_url)
		VALUES ($1::uuid, $2, $3, $4, $5::uuid, $6, $7)
		RETURNING id::text
	`, sessionID, m.Sender, m.Text, m.Timestamp, agentID, attachmentKind, attachmentURL).Scan(&id)
	return id, err
}
