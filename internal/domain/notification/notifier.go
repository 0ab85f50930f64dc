package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindBorrowed Kind = "borrowed"
	KindReturned Kind = "returned"
	KindOverdue  Kind = "overdue"
)

// Event is what the lending core tells the outside world after a committed change.
type Event struct {
	EventID    string          `json:"event_id"`
	Kind       Kind            `json:"kind"`
	LoanID     string          `json:"loan_id"`
	UserID     string          `json:"user_id"`
	BookID     string          `json:"book_id"`
	DueAt      time.Time       `json:"due_at"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
	FineAmount decimal.Decimal `json:"fine_amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notifier delivers events best-effort. Callers log its errors and never roll back on them.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
