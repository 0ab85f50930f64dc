package book

import "context"

type Repository interface {
	Create(ctx context.Context, b *Book) error
	GetByBookID(ctx context.Context, bookID string) (*Book, error)
	// Locks the book row (and with it the availability counter) until the transaction ends.
	GetByBookIDForUpdate(ctx context.Context, bookID string) (*Book, error)
	Exists(ctx context.Context, bookID string) (bool, error)

	// AdjustAvailable applies delta to available_copies in a single conditional UPDATE.
	// It reports false, without error, when the result would leave [0, total_copies].
	AdjustAvailable(ctx context.Context, bookID string, delta int) (bool, error)
}
