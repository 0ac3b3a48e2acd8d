package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeFollow  NotificationType = "follow"
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeMention NotificationType = "mention"
)

type Notification struct {
	ID         string           `gorm:"primaryKey;size:36" json:"id"`
	UserID     string           `gorm:"size:36;not null;index" json:"user_id"` // Receiver
	Type       NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	FromUserID string           `gorm:"size:36;not null;index" json:"from_user_id"` // Sender
	PostID     *string          `gorm:"size:36;index" json:"post_id,omitempty"`
	CommentID  *string          `gorm:"size:36" json:"comment_id,omitempty"`
	Message    string           `gorm:"type:text" json:"message"`
	IsRead     bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	newID(&n.ID)
	return nil
}
