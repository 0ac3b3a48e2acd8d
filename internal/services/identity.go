package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"krafink/internal/events"
	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/security"
	"krafink/internal/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IdentityService struct {
	db     *gorm.DB
	tokens *security.TokenProvider
	graph  *GraphService
	online OnlineChecker
	events events.Publisher

	attempts    *utils.TTLCache[int]
	maxAttempts int
	window      time.Duration
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,username"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.Name = utils.SanitizeText(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	tx := s.db.WithContext(ctx)
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	if err := tx.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(in.Username)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:    in.Email,
		Username: in.Username,
		Name:     in.Name,
		Password: hash,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, conflict(err)
	}

	resp, err := s.issue(&user)
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.SubjectUserRegistered, map[string]string{
		"user_id":  user.ID,
		"username": user.Username,
	})
	logger.Info("User registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return resp, nil
}

// Login 校验邮箱和密码。clientKey 通常是客户端 IP，用于限制失败次数
func (s *IdentityService) Login(ctx context.Context, email, password, clientKey string) (*TokenResponse, error) {
	key := "login:" + clientKey
	if n, ok := s.attempts.Get(key); ok && n >= s.maxAttempts {
		return nil, ErrTooManyAttempts
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil || !security.CheckPasswordHash(password, user.Password) {
		n := s.attempts.Incr(key, s.window, func(v int) int { return v + 1 })
		if n == s.maxAttempts {
			logger.Warn("Login throttled", zap.String("client", clientKey))
		}
		return nil, ErrInvalidCredentials
	}

	s.attempts.Delete(key)
	return s.issue(&user)
}

func (s *IdentityService) issue(user *models.User) (*TokenResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// Authenticate 校验令牌并加载用户
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrUnauthorized
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, ErrUserGone)
	}
	return &user, nil
}

func (s *IdentityService) Me(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// ResolveUser 先按 ID 查找，找不到再按用户名
func (s *IdentityService) ResolveUser(ctx context.Context, ref string) (*models.User, error) {
	return findUser(s.db.WithContext(ctx), ref)
}

func findUser(tx *gorm.DB, ref string) (*models.User, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if ref == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	err := tx.Where("id = ?", ref).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = tx.Where("LOWER(username) = ?", strings.ToLower(ref)).First(&user).Error
	}
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// Profile 他人主页视图，附带当前访问者的关系
type Profile struct {
	*models.PublicUser
	IsFollowing bool `json:"is_following"`
	IsBlocked   bool `json:"is_blocked"`
	IsOnline    bool `json:"is_online"`
}

func (s *IdentityService) GetProfile(ctx context.Context, viewerID, ref string) (*Profile, error) {
	user, err := s.ResolveUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	p := &Profile{PublicUser: user.Public()}

	if viewerID != "" && viewerID != user.ID {
		if p.IsFollowing, err = s.graph.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
		if p.IsBlocked, err = s.graph.hasBlocked(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
	}
	if viewerID != "" && s.online != nil {
		online, err := s.online.Online(ctx, []string{user.ID})
		if err != nil {
			logger.Warn("Presence lookup failed", zap.Error(err))
		}
		p.IsOnline = online[user.ID]
	}
	return p, nil
}

type ProfileInput struct {
	Name      *string        `json:"name"`
	Bio       *string        `json:"bio"`
	Avatar    *string        `json:"avatar"`
	Banner    *string        `json:"banner"`
	Links     *[]models.Link `json:"links"`
	IsPrivate *bool          `json:"is_private"`
}

func (s *IdentityService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := utils.SanitizeText(*in.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		updates["name"] = name
	}
	if in.Bio != nil {
		bio := utils.SanitizeText(*in.Bio)
		if len([]rune(bio)) > 500 {
			return nil, ErrInvalidInput
		}
		updates["bio"] = bio
	}
	if in.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*in.Avatar)
	}
	if in.Banner != nil {
		updates["banner"] = strings.TrimSpace(*in.Banner)
	}
	if in.Links != nil {
		updates["links"] = datatypes.JSONSlice[models.Link](append([]models.Link{}, (*in.Links)...))
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}
