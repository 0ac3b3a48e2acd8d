package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	VisibilityPublic    = "public"
	VisibilityFollowers = "followers"
)

type Post struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	AuthorID      string                      `gorm:"size:36;not null;index" json:"author_id"`
	Content       string                      `gorm:"type:text" json:"content"`
	Images        datatypes.JSONSlice[string] `json:"images"`
	Visibility    string                      `gorm:"size:20;not null;default:'public';index" json:"visibility"`
	Hashtags      datatypes.JSONSlice[string] `json:"hashtags"`
	Mentions      datatypes.JSONSlice[string] `json:"mentions"`
	LikesCount    int                         `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int                         `gorm:"not null;default:0" json:"comments_count"`
	SavesCount    int                         `gorm:"not null;default:0" json:"saves_count"`
	SharesCount   int                         `gorm:"not null;default:0" json:"shares_count"` // 预留，暂无分享操作
	CreatedAt     time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.Images == nil {
		p.Images = datatypes.JSONSlice[string]{}
	}
	if p.Hashtags == nil {
		p.Hashtags = datatypes.JSONSlice[string]{}
	}
	if p.Mentions == nil {
		p.Mentions = datatypes.JSONSlice[string]{}
	}
	return nil
}

func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityFollowers
}
