package loan

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	Save(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// Locks the loan row until the surrounding transaction ends.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)

	CountActiveByUser(ctx context.Context, userID string) (int64, error)
	CountActiveByUserAndBook(ctx context.Context, userID, bookID string) (int64, error)

	ListByUser(ctx context.Context, userID string) ([]Loan, error)
	ListByBook(ctx context.Context, bookID string) ([]Loan, error)
	ListActive(ctx context.Context) ([]Loan, error)
	ListOverdue(ctx context.Context, now time.Time) ([]Loan, error)

	// Scan visits every loan in primary-key order, batchSize rows at a time. Read only.
	Scan(ctx context.Context, batchSize int, fn func(batch []Loan) error) error
}
