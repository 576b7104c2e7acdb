package domain

import (
	"context"
	"time"
)

type ContentRepo interface {
	StorePost(ctx context.Context, post Post) error
	StoreComment(ctx context.Context, comment Comment) error
	FindPost(ctx context.Context, id string) (*Post, error)
	FindComment(ctx context.Context, id string) (*Comment, error)
}

// Post and Comment share the content lifecycle columns. No gorm associations
// are declared: cascading changes are explicit bulk statements.
type Post struct {
	ID             string         `json:"id" gorm:"primaryKey;column:id"`
	AccountID      string         `json:"account_id" gorm:"column:account_id;index;not null"`
	Title          string         `json:"title" gorm:"column:title"`
	Body           string         `json:"body" gorm:"column:body;type:text"`
	LifecycleState LifecycleState `json:"lifecycle_state" gorm:"column:lifecycle_state;index;default:active"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p Post) Entity() Entity {
	return Entity{
		Kind:      KindPost,
		ID:        p.ID,
		OwnerID:   p.AccountID,
		State:     p.LifecycleState,
		DeletedAt: p.DeletedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type Comment struct {
	ID             string         `json:"id" gorm:"primaryKey;column:id"`
	AccountID      string         `json:"account_id" gorm:"column:account_id;index;not null"`
	PostID         string         `json:"post_id" gorm:"column:post_id;index"`
	Body           string         `json:"body" gorm:"column:body;type:text"`
	LifecycleState LifecycleState `json:"lifecycle_state" gorm:"column:lifecycle_state;index;default:active"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c Comment) Entity() Entity {
	return Entity{
		Kind:      KindComment,
		ID:        c.ID,
		OwnerID:   c.AccountID,
		State:     c.LifecycleState,
		DeletedAt: c.DeletedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
