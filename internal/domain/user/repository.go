package user

import "context"

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*User, error)
	// GetByUserIDForUpdate reads the user and holds its row lock until the transaction ends.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*User, error)
	RoleOf(ctx context.Context, userID string) (Role, error)
}
