package services

import (
	"context"
	"errors"

	"krafink/internal/events"
	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/realtime"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GraphService 关注与拉黑关系，以及用户计数
type GraphService struct {
	db       *gorm.DB
	hub      Broadcaster
	notifier *NotificationService
	events   events.Publisher
}

type FollowResult struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followers_count"` // 被关注者的粉丝数
	FollowingCount int  `json:"following_count"` // 操作者的关注数
}

// FollowUpdate follow_updated 事件内容，推送给双方
type FollowUpdate struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
	FollowResult
}

func (s *GraphService) ToggleFollow(ctx context.Context, actorID, ref string) (*FollowResult, error) {
	target, err := findUser(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if target.ID == actorID {
		return nil, ErrSelfFollow
	}
	blocked, err := s.IsBlocked(ctx, actorID, target.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	res := &FollowResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", actorID, target.ID).First(&edge).Error
		switch {
		case err == nil:
			if err := dropPivot(tx, &edge,
				counter{&models.User{}, actorID, "following_count"},
				counter{&models.User{}, target.ID, "followers_count"},
			); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Follow{FollowerID: actorID, FollowingID: target.ID}).Error; err != nil {
				return conflict(err)
			}
			if err := bump(tx, &models.User{}, actorID, "following_count", 1); err != nil {
				return err
			}
			if err := bump(tx, &models.User{}, target.ID, "followers_count", 1); err != nil {
				return err
			}
			res.Following = true
		default:
			return err
		}

		var actor, followed models.User
		if err := tx.Select("id", "following_count").First(&actor, "id = ?", actorID).Error; err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if err := tx.Select("id", "followers_count").First(&followed, "id = ?", target.ID).Error; err != nil {
			return notFound(err, ErrUserNotFound)
		}
		res.FollowingCount = actor.FollowingCount
		res.FollowersCount = followed.FollowersCount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Following {
		s.notifier.Notify(ctx, &models.Notification{
			UserID:     target.ID,
			FromUserID: actorID,
			Type:       models.NotificationTypeFollow,
			Message:    "started following you",
		})
		s.events.Publish(events.SubjectFollowCreated, map[string]string{
			"follower_id":  actorID,
			"following_id": target.ID,
		})
	}
	update := FollowUpdate{FollowerID: actorID, FollowingID: target.ID, FollowResult: *res}
	s.hub.Emit(realtime.UserRoom(actorID), realtime.EventFollowUpdated, update)
	s.hub.Emit(realtime.UserRoom(target.ID), realtime.EventFollowUpdated, update)
	return res, nil
}

type BlockResult struct {
	Blocked bool `json:"blocked"`
}

// ToggleBlock 拉黑时同时解除双向关注并修正四个计数
func (s *GraphService) ToggleBlock(ctx context.Context, actorID, ref string) (*BlockResult, error) {
	target, err := findUser(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if target.ID == actorID {
		return nil, ErrSelfBlock
	}

	res := &BlockResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var block models.Block
		err := tx.Where("blocker_id = ? AND blocked_id = ?", actorID, target.ID).First(&block).Error
		if err == nil {
			return tx.Delete(&block).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&models.Block{BlockerID: actorID, BlockedID: target.ID}).Error; err != nil {
			return conflict(err)
		}
		res.Blocked = true

		for _, pair := range [][2]string{{actorID, target.ID}, {target.ID, actorID}} {
			del := tx.Where("follower_id = ? AND following_id = ?", pair[0], pair[1]).Delete(&models.Follow{})
			if del.Error != nil {
				return del.Error
			}
			if del.RowsAffected == 0 {
				continue
			}
			if err := bump(tx, &models.User{}, pair[0], "following_count", -1); err != nil {
				return err
			}
			if err := bump(tx, &models.User{}, pair[1], "followers_count", -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Blocked {
		s.events.Publish(events.SubjectUserBlocked, map[string]string{
			"blocker_id": actorID,
			"blocked_id": target.ID,
		})
		logger.Info("User blocked", zap.String("blocker_id", actorID), zap.String("blocked_id", target.ID))
	}
	return res, nil
}

// canView 作者本人总是可见；拉黑关系不可见；仅粉丝可见需要关注作者
func (s *GraphService) canView(ctx context.Context, viewerID string, post *models.Post) (bool, error) {
	if viewerID != "" && viewerID == post.AuthorID {
		return true, nil
	}
	if viewerID != "" {
		blocked, err := s.IsBlocked(ctx, viewerID, post.AuthorID)
		if err != nil || blocked {
			return false, err
		}
	}
	if post.Visibility == models.VisibilityPublic {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}
	return s.IsFollowing(ctx, viewerID, post.AuthorID)
}

// visiblePost 不存在或对 viewer 不可见都返回 ErrPostNotFound
func (s *GraphService) visiblePost(ctx context.Context, viewerID, postID string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	ok, err := s.canView(ctx, viewerID, &post)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPostNotFound
	}
	return &post, nil
}

func (s *GraphService) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// IsBlocked 任一方向存在拉黑
func (s *GraphService) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// hasBlocked 只看 blocker -> blocked 方向
func (s *GraphService) hasBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

// ExcludedIDs 我拉黑的人和拉黑我的人，feed 与搜索都要排除
func (s *GraphService) ExcludedIDs(ctx context.Context, viewerID string) ([]string, error) {
	if viewerID == "" {
		return nil, nil
	}
	var blocked, blockers []string
	tx := s.db.WithContext(ctx)
	if err := tx.Model(&models.Block{}).Where("blocker_id = ?", viewerID).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Block{}).Where("blocked_id = ?", viewerID).Pluck("blocker_id", &blockers).Error; err != nil {
		return nil, err
	}
	return funk.UniqString(append(blocked, blockers...)), nil
}

func (s *GraphService) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

func (s *GraphService) Followers(ctx context.Context, ref string, page Page) ([]*models.PublicUser, error) {
	return s.listEdge(ctx, ref, page, "follows.follower_id", "follows.following_id")
}

func (s *GraphService) Following(ctx context.Context, ref string, page Page) ([]*models.PublicUser, error) {
	return s.listEdge(ctx, ref, page, "follows.following_id", "follows.follower_id")
}

func (s *GraphService) listEdge(ctx context.Context, ref string, page Page, joinCol, whereCol string) ([]*models.PublicUser, error) {
	user, err := findUser(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	var users []models.User
	q := s.db.WithContext(ctx).Model(&models.User{}).Select("users.*").
		Joins("JOIN follows ON "+joinCol+" = users.id").
		Where(whereCol+" = ?", user.ID).
		Order("follows.created_at DESC")
	if err := page.apply(q).Find(&users).Error; err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

// BlockedUsers 我拉黑的用户
func (s *GraphService) BlockedUsers(ctx context.Context, userID string) ([]*models.PublicUser, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Model(&models.User{}).Select("users.*").
		Joins("JOIN blocks ON blocks.blocked_id = users.id").
		Where("blocks.blocker_id = ?", userID).
		Order("blocks.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

func publicUsers(users []models.User) []*models.PublicUser {
	out := make([]*models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// usersByID 批量加载用户
func usersByID(tx *gorm.DB, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	ids = funk.UniqString(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// excludeAuthors 空集合时不加条件，避免 NOT IN (NULL) 过滤掉全部数据
func excludeAuthors(q *gorm.DB, column string, ids []string) *gorm.DB {
	if len(ids) == 0 {
		return q
	}
	return q.Where(column+" NOT IN ?", ids)
}
