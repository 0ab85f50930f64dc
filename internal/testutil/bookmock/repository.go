package bookmock

import (
	"context"

	domain "library-backend/internal/domain/book"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn               func(ctx context.Context, b *domain.Book) error
	GetByBookIDFn          func(ctx context.Context, bookID string) (*domain.Book, error)
	GetByBookIDForUpdateFn func(ctx context.Context, bookID string) (*domain.Book, error)
	ExistsFn               func(ctx context.Context, bookID string) (bool, error)
	AdjustAvailableFn      func(ctx context.Context, bookID string, delta int) (bool, error)
}

func (m *Repo) Create(ctx context.Context, b *domain.Book) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, b)
	}
	return nil
}

func (m *Repo) GetByBookID(ctx context.Context, bookID string) (*domain.Book, error) {
	if m.GetByBookIDFn != nil {
		return m.GetByBookIDFn(ctx, bookID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByBookIDForUpdate(ctx context.Context, bookID string) (*domain.Book, error) {
	if m.GetByBookIDForUpdateFn != nil {
		return m.GetByBookIDForUpdateFn(ctx, bookID)
	}
	return nil, context.Canceled
}

func (m *Repo) Exists(ctx context.Context, bookID string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, bookID)
	}
	return false, context.Canceled
}

// AdjustAvailable succeeds by default.
func (m *Repo) AdjustAvailable(ctx context.Context, bookID string, delta int) (bool, error) {
	if m.AdjustAvailableFn != nil {
		return m.AdjustAvailableFn(ctx, bookID, delta)
	}
	return true, nil
}
