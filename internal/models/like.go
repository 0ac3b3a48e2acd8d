package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TargetPost    = "post"
	TargetComment = "comment"
	TargetUser    = "user"
)

// Like 点赞，(user, target, type) 唯一
type Like struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_like_user_target" json:"user_id"`
	TargetID   string    `gorm:"size:36;not null;uniqueIndex:idx_like_user_target;index" json:"target_id"`
	TargetType string    `gorm:"size:10;not null;uniqueIndex:idx_like_user_target" json:"target_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	newID(&l.ID)
	return nil
}
