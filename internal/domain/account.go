package domain

import (
	"context"
	"time"
)

type AccountRepo interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByHandle(ctx context.Context, handle string) (*Account, error)
	Store(ctx context.Context, account Account) error
}

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Elevated reports whether the role may change lifecycle state of entities it
// does not own.
func (r Role) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Account owns posts and comments through their account_id column.
type Account struct {
	ID             string         `json:"id" gorm:"primaryKey;column:id"`
	Handle         string         `json:"handle" gorm:"column:handle;uniqueIndex"`
	Role           Role           `json:"role" gorm:"column:role;default:user"`
	LifecycleState LifecycleState `json:"lifecycle_state" gorm:"column:lifecycle_state;index;default:active"`
	DeactivatedAt  *time.Time     `json:"deactivated_at,omitempty" gorm:"column:deactivated_at;index"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a Account) Entity() Entity {
	return Entity{
		Kind:      KindAccount,
		ID:        a.ID,
		OwnerID:   a.ID,
		State:     a.LifecycleState,
		DeletedAt: a.DeactivatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
