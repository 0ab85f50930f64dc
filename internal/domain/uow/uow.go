package uow

import (
	"context"
	"errors"

	"library-backend/internal/domain/book"
	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/user"
)

// ErrTransient marks storage failures worth retrying (deadlocks, lock timeouts, busy database).
var ErrTransient = errors.New("transient storage error")

// Repos are bound to one transaction.
type Repos struct {
	Loans loan.Repository
	Books book.Repository
	Users user.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
