package repository

import (
	"context"
	"database/sql"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

type VolunteersRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, v model.Volunteer) error
	Get(ctx context.Context, id string) (*model.Volunteer, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Volunteer, error)
}

type VolunteersRepositoryImpl struct {
	db *sqlx.DB
}

var _ VolunteersRepository = (*VolunteersRepositoryImpl)(nil)

func NewVolunteersRepository(db *sqlx.DB) *VolunteersRepositoryImpl {
	return &VolunteersRepositoryImpl{db: db}
}

const volunteerCols = `id, name, phone, email, city, skills, status, created_at, updated_at`

func (r *VolunteersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, v model.Volunteer) error {
	const q = `
		INSERT INTO volunteers (id, name, phone, email, city, skills, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW(3), NOW(3))
	`
	_, err := tx.ExecContext(ctx, q, v.ID, v.Name, v.Phone, v.Email, v.City, v.Skills, v.Status)
	return err
}

func (r *VolunteersRepositoryImpl) Get(ctx context.Context, id string) (*model.Volunteer, error) {
	var v model.Volunteer
	err := r.db.GetContext(ctx, &v, `
		SELECT `+volunteerCols+` FROM volunteers WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VolunteersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Volunteer, error) {
	var v model.Volunteer
	err := tx.GetContext(ctx, &v, `
		SELECT `+volunteerCols+` FROM volunteers WHERE id = ? FOR UPDATE
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
