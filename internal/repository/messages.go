package repository

import (
	"context"
	"time"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/util"
	"github.com/jmoiron/sqlx"
)

// MessagesRepository is the append-only, per-conversation message log.
// No update or delete is exposed; corrections are new messages.
type MessagesRepository interface {
	// Append assigns id and sent_at at write time and inserts the row.
	// When the message carries a provider sid already present in the
	// log (a provider webhook retry) nothing is written and inserted
	// is false.
	Append(ctx context.Context, tx *sqlx.Tx, m model.Message) (model.Message, bool, error)
	ListByConversation(ctx context.Context, phone string, limit int) ([]model.Message, error)
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

func (r *MessagesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *MessagesRepositoryImpl) Append(ctx context.Context, tx *sqlx.Tx, m model.Message) (model.Message, bool, error) {
	if m.ID == "" {
		m.ID = util.NewID()
	}
	m.SentAt = time.Now().UTC()

	// provider_sid has a unique index; the no-op update turns a retry
	// of the same physical message into zero affected rows.
	const q = `
		INSERT INTO messages (id, phone, body, direction, sent_at, sent_by, provider_sid)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`

	inserted := false
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			m.ID, m.Phone, m.Body, string(m.Direction), m.SentAt, m.SentBy, m.ProviderSID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return model.Message{}, false, err
	}
	return m, inserted, nil
}

// ListByConversation returns the chronological history for one phone,
// oldest first. The id tiebreak keeps ordering stable for messages
// written within the same millisecond (ULIDs sort by time).
func (r *MessagesRepositoryImpl) ListByConversation(ctx context.Context, phone string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var out []model.Message
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, phone, body, direction, sent_at, sent_by, provider_sid
		  FROM messages
		 WHERE phone = ?
		 ORDER BY sent_at ASC, id ASC
		 LIMIT ?
	`, phone, limit)
	return out, err
}
