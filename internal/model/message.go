package model

import "time"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) String() string { return string(d) }

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Message is one immutable entry of the append-only per-conversation
// log. SentAt is assigned at write time by the store, never by the
// caller, so ordering within a phone partition is monotonic.
type Message struct {
	ID          string    `db:"id" json:"id"`
	Phone       string    `db:"phone" json:"phone_number"`
	Body        string    `db:"body" json:"body"`
	Direction   Direction `db:"direction" json:"direction"`
	SentAt      time.Time `db:"sent_at" json:"sent_at"`
	SentBy      *string   `db:"sent_by" json:"sent_by,omitempty"`
	ProviderSID *string   `db:"provider_sid" json:"provider_sid,omitempty"`
}
