package repository

import (
	"context"
	"database/sql"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

type RegistrationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, r model.Registration) error
	Get(ctx context.Context, id string) (*model.Registration, error)
	// GetForUpdate locks the row inside the match transaction.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Registration, error)
	SetAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, id, volunteerID, volunteerName string) error
	ClearAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, id string) error
}

type RegistrationsRepositoryImpl struct {
	db *sqlx.DB
}

var _ RegistrationsRepository = (*RegistrationsRepositoryImpl)(nil)

func NewRegistrationsRepository(db *sqlx.DB) *RegistrationsRepositoryImpl {
	return &RegistrationsRepositoryImpl{db: db}
}

const registrationCols = `
	id, mother_name, phone, email, city, needs,
	assigned_volunteer_id, assigned_volunteer_name, status, created_at, updated_at
`

func (r *RegistrationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, reg model.Registration) error {
	const q = `
		INSERT INTO registrations
		    (id, mother_name, phone, email, city, needs, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, NOW(3), NOW(3))
	`
	_, err := tx.ExecContext(ctx, q,
		reg.ID, reg.MotherName, reg.Phone, reg.Email, reg.City, reg.Needs, reg.Status,
	)
	return err
}

func (r *RegistrationsRepositoryImpl) Get(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.GetContext(ctx, &reg, `
		SELECT `+registrationCols+` FROM registrations WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *RegistrationsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Registration, error) {
	var reg model.Registration
	err := tx.GetContext(ctx, &reg, `
		SELECT `+registrationCols+` FROM registrations WHERE id = ? FOR UPDATE
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *RegistrationsRepositoryImpl) SetAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, id, volunteerID, volunteerName string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE registrations
		   SET assigned_volunteer_id = ?, assigned_volunteer_name = ?, updated_at = NOW(3)
		 WHERE id = ?
	`, volunteerID, volunteerName, id)
	return err
}

func (r *RegistrationsRepositoryImpl) ClearAssignedVolunteer(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE registrations
		   SET assigned_volunteer_id = NULL, assigned_volunteer_name = NULL, updated_at = NOW(3)
		 WHERE id = ?
	`, id)
	return err
}
