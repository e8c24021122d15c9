// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import "time"

// MovementsQueue is the durable queue movement events are published to.
const MovementsQueue = "spinsa.movements"

// Operations carried by MovementEvent.Operation.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MovementEvent is published after every successful mutation of a piece,
// inventory, production or user.  It carries enough for downstream
// consumers to audit the change without querying the database.
type MovementEvent struct {
	EventID    string    `json:"event_id"`
	Entity     string    `json:"entity"`
	Operation  string    `json:"operation"`
	EntityID   int64     `json:"entity_id"`
	BrandID    *int64    `json:"brand_id,omitempty"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
