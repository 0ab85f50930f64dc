package usermock

import (
	"context"

	domain "library-backend/internal/domain/user"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	GetByUserIDFn          func(ctx context.Context, userID string) (*domain.User, error)
	GetByUserIDForUpdateFn func(ctx context.Context, userID string) (*domain.User, error)
	RoleOfFn               func(ctx context.Context, userID string) (domain.Role, error)
}

// WithRole stubs both lookups for a single user.
func WithRole(userID string, role domain.Role) *Repo {
	u := &domain.User{UserID: userID, Role: role}
	return &Repo{
		GetByUserIDFn: func(_ context.Context, id string) (*domain.User, error) {
			if id != userID {
				return nil, context.Canceled
			}
			return u, nil
		},
		RoleOfFn: func(_ context.Context, id string) (domain.Role, error) {
			if id != userID {
				return "", context.Canceled
			}
			return role, nil
		},
	}
}

func (m *Repo) GetByUserID(ctx context.Context, userID string) (*domain.User, error) {
	if m.GetByUserIDFn != nil {
		return m.GetByUserIDFn(ctx, userID)
	}
	return nil, context.Canceled
}

// GetByUserIDForUpdate falls back to GetByUserIDFn when no locked read is stubbed.
func (m *Repo) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.User, error) {
	if m.GetByUserIDForUpdateFn != nil {
		return m.GetByUserIDForUpdateFn(ctx, userID)
	}
	return m.GetByUserID(ctx, userID)
}

func (m *Repo) RoleOf(ctx context.Context, userID string) (domain.Role, error) {
	if m.RoleOfFn != nil {
		return m.RoleOfFn(ctx, userID)
	}
	return "", context.Canceled
}
