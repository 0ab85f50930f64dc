package user

import "time"

type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// User is the read model of the identity service.
type User struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"column:user_id;type:char(32);not null;uniqueIndex:ux_users_user_id" json:"user_id"`
	Name      string    `gorm:"column:name;size:100" json:"name"`
	Email     string    `gorm:"column:email;size:200" json:"email"`
	Role      Role      `gorm:"column:role;type:varchar(16);not null;default:'student'" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }
