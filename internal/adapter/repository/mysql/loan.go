package mysql

import (
	"context"
	"database/sql"
	"time"

	loanDomain "library-backend/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// sqlite has no row locks; the clause is dropped by its dialect and the single writer serializes instead.
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LoanRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("user_id = ? AND state = ?", userID, loanDomain.StateActive).
		Count(&n).Error
	return n, err
}

func (r *LoanRepository) CountActiveByUserAndBook(ctx context.Context, userID, bookID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("user_id = ? AND book_id = ? AND state = ?", userID, bookID, loanDomain.StateActive).
		Count(&n).Error
	return n, err
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("borrowed_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *LoanRepository) ListByBook(ctx context.Context, bookID string) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("borrowed_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *LoanRepository) ListActive(ctx context.Context) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	err := r.db.WithContext(ctx).
		Where("state = ?", loanDomain.StateActive).
		Order("due_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListOverdue returns active loans whose due date is strictly before now.
func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	err := r.db.WithContext(ctx).
		Where("state = ? AND due_at < ?", loanDomain.StateActive, now.UTC()).
		Order("due_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// snapshotTx gives every batch of a Scan the same consistent read on InnoDB.
var snapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func (r *LoanRepository) Scan(ctx context.Context, batchSize int, fn func(batch []loanDomain.Loan) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []loanDomain.Loan
		return tx.FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
	}, snapshotTx)
}
