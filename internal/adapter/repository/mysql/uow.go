package mysql

import (
	"context"
	"fmt"

	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/uow"
	"library-backend/internal/infrastructure/db"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func bind(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans: &LoanRepository{db: tx},
		Books: &BookRepository{db: tx},
		Users: &UserRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(bind(tx))
	})
	return classify(err)
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := bind(tx)
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
	return classify(err)
}

// classify tags deadlocks and busy errors so callers can retry the whole transaction.
func classify(err error) error {
	if err != nil && db.IsTransient(err) {
		return fmt.Errorf("%w: %w", uow.ErrTransient, err)
	}
	return err
}
