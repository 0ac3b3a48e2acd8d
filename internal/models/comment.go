package models

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	PostID       string    `gorm:"size:36;not null;index" json:"post_id"`
	AuthorID     string    `gorm:"size:36;not null;index" json:"author_id"`
	ParentID     *string   `gorm:"size:36;index" json:"parent_id"` // 为空表示顶层评论，只支持一层回复
	Content      string    `gorm:"type:text;not null" json:"content"`
	LikesCount   int       `gorm:"not null;default:0" json:"likes_count"`
	RepliesCount int       `gorm:"not null;default:0" json:"replies_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}
