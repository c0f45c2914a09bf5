package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

// ConversationsRepository is the keyed store of conversation
// aggregates, one row per canonical phone number. Upsert is a
// field-level merge; RecordInbound and MarkRead are single-statement
// atomic updates — the unread counter is never read-then-written.
type ConversationsRepository interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, phone string, patch model.ConversationPatch) error
	RecordInbound(ctx context.Context, phone string, preview model.MessagePreview) error
	MarkRead(ctx context.Context, phone string) error
	ClearAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, phone string) error
	Get(ctx context.Context, phone string) (*model.Conversation, error)
	ListByRecency(ctx context.Context) ([]model.Conversation, error)
	List(ctx context.Context) ([]model.Conversation, error)
}

type ConversationsRepositoryImpl struct {
	db *sqlx.DB
}

var _ ConversationsRepository = (*ConversationsRepositoryImpl)(nil)

func NewConversationsRepository(db *sqlx.DB) *ConversationsRepositoryImpl {
	return &ConversationsRepositoryImpl{db: db}
}

func (r *ConversationsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

// Upsert merges the non-nil patch fields into the row for phone,
// creating it (status=pending) if absent. Concurrent callers for the
// same phone are safe: each field is last-write-wins independently.
func (r *ConversationsRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, phone string, p model.ConversationPatch) error {
	now := time.Now().UTC()

	cols := []string{"phone", "created_at", "updated_at"}
	args := []any{phone, now, now}
	set := []string{"updated_at = VALUES(updated_at)"}

	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
		set = append(set, col+" = VALUES("+col+")")
	}

	if p.ContactName != nil {
		add("contact_name", *p.ContactName)
	}
	if p.ContactType != nil {
		add("contact_type", string(*p.ContactType))
	}
	if p.RegistrationID != nil {
		add("registration_id", *p.RegistrationID)
	}
	if p.VolunteerID != nil {
		add("volunteer_id", *p.VolunteerID)
	}
	if p.AssignedVolunteerID != nil {
		add("assigned_volunteer_id", *p.AssignedVolunteerID)
	}
	if p.AssignedVolunteerName != nil {
		add("assigned_volunteer_name", *p.AssignedVolunteerName)
	}
	if p.AssignedFamilies != nil {
		add("assigned_families", *p.AssignedFamilies)
	}
	if p.LastMessage != nil {
		add("last_message", *p.LastMessage)
	}
	if p.LastMessageDirection != nil {
		add("last_message_direction", string(*p.LastMessageDirection))
	}
	if p.LastMessageAt != nil {
		add("last_message_at", *p.LastMessageAt)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}

	q := "INSERT INTO conversations (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") +
		") ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")

	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

// RecordInbound bumps unread_count by exactly one and sets the preview
// fields in the same statement. MySQL applies the whole row update
// atomically, so concurrent inbound bursts cannot lose increments.
func (r *ConversationsRepositoryImpl) RecordInbound(ctx context.Context, phone string, p model.MessagePreview) error {
	const q = `
		INSERT INTO conversations
		    (phone, last_message, last_message_direction, last_message_at,
		     unread_count, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, 1, 'active', NOW(3), NOW(3))
		ON DUPLICATE KEY UPDATE
		    last_message           = VALUES(last_message),
		    last_message_direction = VALUES(last_message_direction),
		    last_message_at        = VALUES(last_message_at),
		    unread_count           = unread_count + 1,
		    status                 = 'active',
		    updated_at             = NOW(3)
	`
	_, err := r.db.ExecContext(ctx, q, phone, p.Body, string(p.Direction), p.SentAt)
	return err
}

func (r *ConversationsRepositoryImpl) MarkRead(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET unread_count = 0, updated_at = NOW(3) WHERE phone = ?
	`, phone)
	return err
}

// ClearAssignedVolunteer drops the volunteer mirror from a family
// conversation (unmatch path, inside the match transaction).
func (r *ConversationsRepositoryImpl) ClearAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, phone string) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE conversations
			   SET assigned_volunteer_id = NULL,
			       assigned_volunteer_name = NULL,
			       updated_at = NOW(3)
			 WHERE phone = ?
		`, phone)
		return err
	})
}

const conversationCols = `
	phone, contact_name, contact_type, registration_id, volunteer_id,
	assigned_volunteer_id, assigned_volunteer_name, assigned_families,
	last_message, last_message_direction, last_message_at,
	unread_count, status, created_at, updated_at
`

func (r *ConversationsRepositoryImpl) Get(ctx context.Context, phone string) (*model.Conversation, error) {
	var c model.Conversation
	err := r.db.GetContext(ctx, &c, `
		SELECT `+conversationCols+` FROM conversations WHERE phone = ? LIMIT 1
	`, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByRecency orders by last message, newest first. Rows that have
// never seen a message (linkage-only conversations) have a NULL
// last_message_at and sort after everything else rather than being
// filtered out.
func (r *ConversationsRepositoryImpl) ListByRecency(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+conversationCols+`
		  FROM conversations
		 ORDER BY (last_message_at IS NULL), last_message_at DESC, phone
	`)
	return out, err
}

// List is the unordered scan used as the degraded read path when the
// ordered query fails.
func (r *ConversationsRepositoryImpl) List(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+conversationCols+` FROM conversations
	`)
	return out, err
}
