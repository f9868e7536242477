package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleTrainer    Role = "TRAINER"
	RoleTrainee    Role = "TRAINEE"
)

// Rank orders roles so "trainer-or-above" style checks are a comparison.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 4
	case RoleSupervisor:
		return 3
	case RoleTrainer:
		return 2
	case RoleTrainee:
		return 1
	default:
		return 0
	}
}

func (r Role) AtLeast(min Role) bool { return r.Rank() >= min.Rank() && r.Rank() > 0 }

func (r Role) Valid() bool { return r.Rank() > 0 }

func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string    `gorm:"not null;column:password" json:"-"`
	FullName  string    `gorm:"not null;column:full_name" json:"fullName"`
	Role      Role      `gorm:"not null;index;column:role" json:"role"`
	IsActive  bool      `gorm:"not null;column:is_active;index" json:"isActive"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
