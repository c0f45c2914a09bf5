package repository

import (
	"context"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

// ArchiveRepository is the ClickHouse reporting copy of the message
// log. Writes are best-effort (the MySQL log is the source of truth);
// reads back the admin reports endpoint.
type ArchiveRepository interface {
	Insert(ctx context.Context, m model.Message) error
	List(ctx context.Context, phone string, direction model.Direction, limit, offset int) ([]model.Message, error)
}

type archiveRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewArchiveRepository(ch *sqlx.DB) ArchiveRepository {
	return &archiveRepository{ch: ch}
}

func (r *archiveRepository) Insert(ctx context.Context, m model.Message) error {
	const q = `
		INSERT INTO smshub.message_archive (id, phone, body, direction, sent_at, sent_by, provider_sid)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q,
		m.ID, m.Phone, m.Body, string(m.Direction), m.SentAt, deref(m.SentBy), deref(m.ProviderSID),
	)
	return err
}

func (r *archiveRepository) List(ctx context.Context, phone string, direction model.Direction, limit, offset int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, phone, body, direction, sent_at, sent_by, provider_sid
		FROM smshub.message_archive
		WHERE 1 = 1
	`
	args := []any{}

	if phone != "" {
		q += " AND phone = ?"
		args = append(args, phone)
	}
	if direction != "" {
		q += " AND direction = ?"
		args = append(args, string(direction))
	}

	q += " ORDER BY sent_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Message
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
