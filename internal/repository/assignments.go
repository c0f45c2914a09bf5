package repository

import (
	"context"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/jmoiron/sqlx"
)

// AssignmentsRepository holds volunteer↔family match rows. All writes
// happen inside the match transaction; the volunteer conversation's
// assigned_families mirror is recomputed from ListByVolunteer in the
// same transaction.
type AssignmentsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, a model.Assignment) error
	Delete(ctx context.Context, tx *sqlx.Tx, volunteerID, registrationID string) error
	ListByVolunteer(ctx context.Context, tx *sqlx.Tx, volunteerID string) ([]model.Assignment, error)
}

type AssignmentsRepositoryImpl struct {
	db *sqlx.DB
}

var _ AssignmentsRepository = (*AssignmentsRepositoryImpl)(nil)

func NewAssignmentsRepository(db *sqlx.DB) *AssignmentsRepositoryImpl {
	return &AssignmentsRepositoryImpl{db: db}
}

// Insert is idempotent: re-matching an existing pair refreshes the
// display names but does not duplicate the row.
func (r *AssignmentsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, a model.Assignment) error {
	const q = `
		INSERT INTO assignments (volunteer_id, registration_id, volunteer_name, family_name, created_at)
		VALUES (?, ?, ?, ?, NOW(3))
		ON DUPLICATE KEY UPDATE
		    volunteer_name = VALUES(volunteer_name),
		    family_name    = VALUES(family_name)
	`
	_, err := tx.ExecContext(ctx, q, a.VolunteerID, a.RegistrationID, a.VolunteerName, a.FamilyName)
	return err
}

func (r *AssignmentsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, volunteerID, registrationID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM assignments WHERE volunteer_id = ? AND registration_id = ?
	`, volunteerID, registrationID)
	return err
}

func (r *AssignmentsRepositoryImpl) ListByVolunteer(ctx context.Context, tx *sqlx.Tx, volunteerID string) ([]model.Assignment, error) {
	var out []model.Assignment
	err := tx.SelectContext(ctx, &out, `
		SELECT volunteer_id, registration_id, volunteer_name, family_name, created_at
		  FROM assignments
		 WHERE volunteer_id = ?
		 ORDER BY created_at, registration_id
	`, volunteerID)
	return out, err
}
