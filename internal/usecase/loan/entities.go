package loan

import (
	"time"

	"library-backend/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type BorrowInput struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}

type LoanDTO struct {
	LoanID         string            `json:"loan_id"`
	UserID         string            `json:"user_id"`
	BookID         string            `json:"book_id"`
	BorrowedAt     time.Time         `json:"borrowed_at"`
	DueAt          time.Time         `json:"due_at"`
	ReturnedAt     *time.Time        `json:"returned_at,omitempty"`
	FineAmount     decimal.Decimal   `json:"fine_amount"`
	State          string            `json:"state"`
	Status         loan.DisplayState `json:"status"` // active | overdue | returned, as of now
	ExtensionCount int               `json:"extension_count"`
}

func toDTO(l *loan.Loan, now time.Time) *LoanDTO {
	return &LoanDTO{
		LoanID:         l.LoanID,
		UserID:         l.UserID,
		BookID:         l.BookID,
		BorrowedAt:     l.BorrowedAt,
		DueAt:          l.DueAt,
		ReturnedAt:     l.ReturnedAt,
		FineAmount:     l.FineAmount,
		State:          string(l.State),
		Status:         l.DisplayState(now),
		ExtensionCount: l.ExtensionCount,
	}
}

// ToDTOs projects loans for the read side; statistics reuses it.
func ToDTOs(ls []loan.Loan, now time.Time) []LoanDTO {
	out := make([]LoanDTO, 0, len(ls))
	for i := range ls {
		out = append(out, *toDTO(&ls[i], now))
	}
	return out
}
