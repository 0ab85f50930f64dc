package mysql

import (
	"context"

	bookDomain "library-backend/internal/domain/book"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookRepository struct{ db *gorm.DB }

func NewBookRepository(db *gorm.DB) *BookRepository { return &BookRepository{db: db} }

func (r *BookRepository) Create(ctx context.Context, b *bookDomain.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookRepository) GetByBookID(ctx context.Context, bookID string) (*bookDomain.Book, error) {
	var out bookDomain.Book
	if err := r.db.WithContext(ctx).Where("book_id = ?", bookID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BookRepository) GetByBookIDForUpdate(ctx context.Context, bookID string) (*bookDomain.Book, error) {
	var out bookDomain.Book
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ?", bookID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BookRepository) Exists(ctx context.Context, bookID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&bookDomain.Book{}).Where("book_id = ?", bookID).Count(&n).Error
	return n > 0, err
}

// AdjustAvailable guards the counter in the WHERE clause so two writers can never
// push it below zero or above total_copies, whatever they read earlier.
func (r *BookRepository) AdjustAvailable(ctx context.Context, bookID string, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookDomain.Book{}).
		Where("book_id = ?", bookID).
		Where("available_copies + ? >= 0 AND available_copies + ? <= total_copies", delta, delta).
		Update("available_copies", gorm.Expr("available_copies + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
