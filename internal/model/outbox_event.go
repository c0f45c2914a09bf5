package model

import "time"

type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // e.g. "registration"
	AggregateID string    `db:"aggregate_id"` // entity id
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	Attempts    int       `db:"attempts"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// WelcomeEvent is the outbox/Kafka payload that asks the welcome
// worker to text a newly registered volunteer or family.
type WelcomeEvent struct {
	Kind  ContactType `json:"kind"` // family | volunteer
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"` // canonical
}
