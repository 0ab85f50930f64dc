package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateActive   State = "active"
	StateReturned State = "returned"
)

// DisplayState is a read-only projection over {state, due_at, now}; it is never stored.
type DisplayState string

const (
	DisplayActive   DisplayState = "active"
	DisplayOverdue  DisplayState = "overdue"
	DisplayReturned DisplayState = "returned"
)

type Loan struct {
	ID             uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID         string          `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	UserID         string          `gorm:"size:32;index:idx_loans_user_state" json:"user_id"`
	BookID         string          `gorm:"size:32;index:idx_loans_book_state" json:"book_id"`
	BorrowedAt     time.Time       `gorm:"not null" json:"borrowed_at"`
	DueAt          time.Time       `gorm:"not null;index" json:"due_at"`
	ReturnedAt     *time.Time      `json:"returned_at,omitempty"`
	FineAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"fine_amount"`
	State          State           `gorm:"type:varchar(16);not null;default:'active';index:idx_loans_user_state;index:idx_loans_book_state" json:"state"`
	ExtensionCount int             `gorm:"not null;default:0" json:"extension_count"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

func (l *Loan) IsActive() bool { return l.State == StateActive }

// IsOverdue reports state=active and now strictly after due_at.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsActive() && now.After(l.DueAt)
}

func (l *Loan) DisplayState(now time.Time) DisplayState {
	switch {
	case l.State == StateReturned:
		return DisplayReturned
	case l.IsOverdue(now):
		return DisplayOverdue
	default:
		return DisplayActive
	}
}
