package loanmock

import (
	"context"
	"time"

	domain "library-backend/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to a nil error; reads default to context.Canceled so a missing stub is loud.
type Repo struct {
	CreateFn                   func(ctx context.Context, l *domain.Loan) error
	SaveFn                     func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn              func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn     func(ctx context.Context, loanID string) (*domain.Loan, error)
	CountActiveByUserFn        func(ctx context.Context, userID string) (int64, error)
	CountActiveByUserAndBookFn func(ctx context.Context, userID, bookID string) (int64, error)
	ListByUserFn               func(ctx context.Context, userID string) ([]domain.Loan, error)
	ListByBookFn               func(ctx context.Context, bookID string) ([]domain.Loan, error)
	ListActiveFn               func(ctx context.Context) ([]domain.Loan, error)
	ListOverdueFn              func(ctx context.Context, now time.Time) ([]domain.Loan, error)
	ScanFn                     func(ctx context.Context, batchSize int, fn func([]domain.Loan) error) error
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	if m.CountActiveByUserFn != nil {
		return m.CountActiveByUserFn(ctx, userID)
	}
	return 0, context.Canceled
}

func (m *Repo) CountActiveByUserAndBook(ctx context.Context, userID, bookID string) (int64, error) {
	if m.CountActiveByUserAndBookFn != nil {
		return m.CountActiveByUserAndBookFn(ctx, userID, bookID)
	}
	return 0, context.Canceled
}

func (m *Repo) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, userID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByBook(ctx context.Context, bookID string) ([]domain.Loan, error) {
	if m.ListByBookFn != nil {
		return m.ListByBookFn(ctx, bookID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListActive(ctx context.Context) ([]domain.Loan, error) {
	if m.ListActiveFn != nil {
		return m.ListActiveFn(ctx)
	}
	return nil, context.Canceled
}

func (m *Repo) ListOverdue(ctx context.Context, now time.Time) ([]domain.Loan, error) {
	if m.ListOverdueFn != nil {
		return m.ListOverdueFn(ctx, now)
	}
	return nil, context.Canceled
}

func (m *Repo) Scan(ctx context.Context, batchSize int, fn func([]domain.Loan) error) error {
	if m.ScanFn != nil {
		return m.ScanFn(ctx, batchSize, fn)
	}
	return context.Canceled
}
