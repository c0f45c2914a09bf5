package model

import "time"

// Registration is a family intake record.
type Registration struct {
	ID                    string    `db:"id" json:"id"`
	MotherName            string    `db:"mother_name" json:"mother_name"`
	Phone                 string    `db:"phone" json:"phone"`
	Email                 string    `db:"email" json:"email"`
	City                  string    `db:"city" json:"city"`
	Needs                 string    `db:"needs" json:"needs"`
	AssignedVolunteerID   *string   `db:"assigned_volunteer_id" json:"assigned_volunteer_id,omitempty"`
	AssignedVolunteerName *string   `db:"assigned_volunteer_name" json:"assigned_volunteer_name,omitempty"`
	Status                string    `db:"status" json:"status"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

type Volunteer struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	City      string    `db:"city" json:"city"`
	Skills    string    `db:"skills" json:"skills"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Assignment links a volunteer to a family registration. It is the
// relational source of truth for a match; the conversation rows carry
// denormalized mirrors of it.
type Assignment struct {
	VolunteerID    string    `db:"volunteer_id" json:"volunteer_id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	VolunteerName  string    `db:"volunteer_name" json:"volunteer_name"`
	FamilyName     string    `db:"family_name" json:"family_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Contact is a generic contact-form submission.
type Contact struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
