package uowmock

import (
	"context"
	"errors"
	"sync"

	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed uow.UnitOfWork; unset functions return errUnimplemented.
// Every call is recorded, so a test can assert that a flow never opened a transaction.
type UoW struct {
	WithinTxFn     func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn func(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error

	mu      sync.Mutex
	txCalls int
	loanIDs []string
}

func New() *UoW { return &UoW{} }

func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}

func (m *UoW) WithWithinLoanTx(fn func(context.Context, string, func(uow.Repos, *loan.Loan) error) error) *UoW {
	m.WithinLoanTxFn = fn
	return m
}

// Passthrough runs every body directly against repos, with no rollback.
// WithinLoanTx loads the loan through repos.Loans.GetByLoanIDForUpdate first, like the real one.
func Passthrough(repos uow.Repos) *UoW {
	return New().
		WithWithinTx(func(_ context.Context, fn func(uow.Repos) error) error {
			return fn(repos)
		}).
		WithWithinLoanTx(func(ctx context.Context, loanID string, fn func(uow.Repos, *loan.Loan) error) error {
			l, err := repos.Loans.GetByLoanIDForUpdate(ctx, loanID)
			if err != nil {
				return err
			}
			return fn(repos, l)
		})
}

// Calls reports how many WithinTx and WithinLoanTx calls were made.
func (m *UoW) Calls() (tx, loanTx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCalls, len(m.loanIDs)
}

// LoanIDs lists the loan ids passed to WithinLoanTx, in call order.
func (m *UoW) LoanIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loanIDs...)
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	m.mu.Lock()
	m.txCalls++
	m.mu.Unlock()

	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	m.mu.Lock()
	m.loanIDs = append(m.loanIDs, loanID)
	m.mu.Unlock()

	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}
