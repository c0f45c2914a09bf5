package repository

import (
	"context"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

type ContactsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, c model.Contact) error
}

type ContactsRepositoryImpl struct {
	db *sqlx.DB
}

var _ ContactsRepository = (*ContactsRepositoryImpl)(nil)

func NewContactsRepository(db *sqlx.DB) *ContactsRepositoryImpl {
	return &ContactsRepositoryImpl{db: db}
}

func (r *ContactsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.Contact) error {
	const q = `
		INSERT INTO contacts (id, name, phone, email, message, created_at)
		VALUES (?, ?, ?, ?, ?, NOW(3))
	`
	_, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.Phone, c.Email, c.Message)
	return err
}
