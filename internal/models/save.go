package models

import (
	"time"

	"gorm.io/gorm"
)

// Save 收藏
type Save struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_save_user_post" json:"user_id"`
	PostID    string    `gorm:"size:36;not null;uniqueIndex:idx_save_user_post;index" json:"post_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (s *Save) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
