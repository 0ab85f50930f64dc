package mysql

import (
	"context"
	"errors"
	"testing"

	userDomain "library-backend/internal/domain/user"

	"gorm.io/gorm"
)

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &userDomain.User{UserID: "11111111111111111111111111111111", Name: "Ada", Email: "ada@example.com", Role: userDomain.RoleFaculty}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByUserID(ctx, u.UserID)
	if err != nil || got.Email != "ada@example.com" {
		t.Fatalf("GetByUserID = %+v, %v", got, err)
	}

	locked, err := repo.GetByUserIDForUpdate(ctx, u.UserID)
	if err != nil || locked.Role != userDomain.RoleFaculty {
		t.Fatalf("GetByUserIDForUpdate = %+v, %v", locked, err)
	}
	if _, err := repo.GetByUserIDForUpdate(ctx, "99999999999999999999999999999999"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByUserIDForUpdate(missing): want ErrRecordNotFound, got %v", err)
	}

	role, err := repo.RoleOf(ctx, u.UserID)
	if err != nil || role != userDomain.RoleFaculty {
		t.Fatalf("RoleOf = %q, %v", role, err)
	}

	if _, err := repo.RoleOf(ctx, "99999999999999999999999999999999"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("RoleOf(missing): want ErrRecordNotFound, got %v", err)
	}
	if _, err := repo.GetByUserID(ctx, "99999999999999999999999999999999"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByUserID(missing): want ErrRecordNotFound, got %v", err)
	}
}
