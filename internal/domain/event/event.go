// Package event describes the domain events emitted after state changes.
package event

import (
	"context"
	"time"
)

// Kind names a domain event.
type Kind string

const (
	OrderCreated    Kind = "order.created"
	OrderCompleted  Kind = "order.completed"
	OrderCanceled   Kind = "order.canceled"
	DiscountCreated Kind = "discount.created"
	DiscountApplied Kind = "discount.applied"
	RatingSubmitted Kind = "rating.submitted"
	RatingUpdated   Kind = "rating.updated"
)

// Event is a fact about something that already happened.
// Key selects the partition so events of one aggregate stay ordered.
type Event struct {
	Kind   Kind
	Key    string
	UserID string
	At     time.Time
	Attrs  map[string]string
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
