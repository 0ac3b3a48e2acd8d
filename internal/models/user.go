package models

import (
	"time"

	"github.com/jinzhu/copier"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string                    `gorm:"primaryKey;size:36" json:"id"`
	Email          string                    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username       string                    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Name           string                    `gorm:"size:100;not null" json:"name"`
	Password       string                    `gorm:"not null" json:"-"` // bcrypt hash
	Avatar         string                    `json:"avatar"`
	Banner         string                    `json:"banner"`
	Bio            string                    `gorm:"size:500" json:"bio"`
	Links          datatypes.JSONSlice[Link] `json:"links"`
	FollowersCount int                       `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int                       `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int                       `gorm:"not null;default:0" json:"posts_count"`
	IsPrivate      bool                      `gorm:"default:false" json:"is_private"`
	Role           string                    `gorm:"size:20;default:'user';not null" json:"role"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Links == nil {
		u.Links = datatypes.JSONSlice[Link]{}
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser 对外展示的用户信息，不含邮箱和密码
type PublicUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Avatar         string    `json:"avatar"`
	Banner         string    `json:"banner"`
	Bio            string    `json:"bio"`
	Links          []Link    `json:"links"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
	IsPrivate      bool      `json:"is_private"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	var p PublicUser
	_ = copier.Copy(&p, u)
	p.Links = append([]Link{}, u.Links...)
	return &p
}
