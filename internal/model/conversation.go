package model

import "time"

type ContactType string

const (
	ContactTypeUnset     ContactType = ""
	ContactTypeFamily    ContactType = "family"
	ContactTypeVolunteer ContactType = "volunteer"
	ContactTypeContact   ContactType = "contact"
)

func (t ContactType) String() string { return string(t) }

func (t ContactType) Valid() bool {
	return t == ContactTypeUnset || t == ContactTypeFamily ||
		t == ContactTypeVolunteer || t == ContactTypeContact
}

type ConversationStatus string

const (
	ConversationPending ConversationStatus = "pending"
	ConversationActive  ConversationStatus = "active"
)

// Conversation is the one-row-per-phone aggregate: preview fields,
// unread counter and denormalized entity linkage. The full history
// lives in the messages table.
type Conversation struct {
	Phone                 string             `db:"phone" json:"phone_number"`
	ContactName           *string            `db:"contact_name" json:"contact_name,omitempty"`
	ContactType           ContactType        `db:"contact_type" json:"contact_type,omitempty"`
	RegistrationID        *string            `db:"registration_id" json:"registration_id,omitempty"`
	VolunteerID           *string            `db:"volunteer_id" json:"volunteer_id,omitempty"`
	AssignedVolunteerID   *string            `db:"assigned_volunteer_id" json:"assigned_volunteer_id,omitempty"`
	AssignedVolunteerName *string            `db:"assigned_volunteer_name" json:"assigned_volunteer_name,omitempty"`
	AssignedFamilies      *string            `db:"assigned_families" json:"assigned_families,omitempty"` // JSON array of FamilyRef
	LastMessage           *string            `db:"last_message" json:"last_message,omitempty"`
	LastMessageDirection  *Direction         `db:"last_message_direction" json:"last_message_direction,omitempty"`
	LastMessageAt         *time.Time         `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount           int64              `db:"unread_count" json:"unread_count"`
	Status                ConversationStatus `db:"status" json:"status"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// FamilyRef is one element of a volunteer conversation's
// assigned_families JSON mirror.
type FamilyRef struct {
	RegistrationID string `json:"registration_id"`
	FamilyName     string `json:"family_name"`
}

// ConversationPatch is a field-level merge: nil fields are left
// untouched, non-nil fields win (last writer per field, not per row).
type ConversationPatch struct {
	ContactName           *string
	ContactType           *ContactType
	RegistrationID        *string
	VolunteerID           *string
	AssignedVolunteerID   *string
	AssignedVolunteerName *string
	AssignedFamilies      *string
	LastMessage           *string
	LastMessageDirection  *Direction
	LastMessageAt         *time.Time
	Status                *ConversationStatus
}

// MessagePreview carries the fields cached on the aggregate for list
// rendering without reading the message log.
type MessagePreview struct {
	Body      string
	Direction Direction
	SentAt    time.Time
}
