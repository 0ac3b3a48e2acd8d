package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation 两人私信会话。UserA < UserB，同一对用户只有一个会话
type Conversation struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserA         string     `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair" json:"user_a"`
	UserB         string     `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair;index" json:"user_b"`
	UnreadA       int        `gorm:"not null;default:0" json:"-"`
	UnreadB       int        `gorm:"not null;default:0" json:"-"`
	LastMessage   string     `gorm:"type:text" json:"last_message"`
	LastSenderID  string     `gorm:"size:36" json:"last_sender_id"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

// OrderedPair 返回排序后的参与者，保证会话查找与参与者顺序无关
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Conversation) Has(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

func (c *Conversation) Other(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

func (c *Conversation) UnreadFor(userID string) int {
	if c.UserA == userID {
		return c.UnreadA
	}
	return c.UnreadB
}

// UnreadColumn 对应参与者的未读计数列
func (c *Conversation) UnreadColumn(userID string) string {
	if c.UserA == userID {
		return "unread_a"
	}
	return "unread_b"
}

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index" json:"conversation_id"`
	SenderID       string    `gorm:"size:36;not null" json:"sender_id"`
	ReceiverID     string    `gorm:"size:36;not null;index" json:"receiver_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           string    `gorm:"size:10;not null;default:'text'" json:"type"`
	IsRead         bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	return nil
}
