package adapter

import (
	"context"
	"encoding/json"
	"errors"

	chat "devrelay/internal/pkg/chat/application/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if r == nil || r.pool == nil {
		return chat.Message{}, errors.New("PgMessageRepository: nil pool")
	}

	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return chat.Message{}, err
	}

	// seq is a BIGSERIAL: same-instant inserts (placeholder vs. result)
	// still have a total order for history fetches.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO chat.message (
			project_id, sender_id, sender_name, sender_type, body, attachments, created_at, edited, deleted
		) VALUES ($1::uuid, NULLIF($2, '')::uuid, $3, $4, $5, $6::jsonb, $7, $8, $9)
		RETURNING id::text, seq, created_at
	`, m.ProjectID, deref(m.SenderID), m.SenderName, string(m.SenderType), m.Text, attachments,
		m.CreatedAt, m.Edited, m.Deleted,
	).Scan(&m.ID, &m.Seq, &m.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (r *PgMessageRepository) RecentByProject(ctx context.Context, projectID string, limit int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, project_id::text, sender_id::text, sender_name, sender_type, body, attachments, seq, created_at, edited, deleted
		FROM chat.message
		WHERE project_id = $1::uuid
		ORDER BY seq DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			msg         chat.Message
			senderID    *string
			senderType  string
			attachments []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ProjectID, &senderID, &msg.SenderName, &senderType,
			&msg.Text, &attachments, &msg.Seq, &msg.CreatedAt, &msg.Edited, &msg.Deleted); err != nil {
			return nil, err
		}
		msg.SenderID = senderID
		msg.SenderType = chat.SenderType(senderType)
		msg.Attachments = []chat.Attachment{}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
