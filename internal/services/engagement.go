package services

import (
	"context"
	"errors"

	"krafink/internal/models"

	"gorm.io/gorm"
)

// EngagementService 点赞与收藏的切换
type EngagementService struct {
	db       *gorm.DB
	graph    *GraphService
	notifier *NotificationService
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type SaveResult struct {
	Saved      bool `json:"saved"`
	SavesCount int  `json:"saves_count"`
}

// ToggleLike 点赞/取消点赞帖子或评论，targetType 为空视为帖子
func (s *EngagementService) ToggleLike(ctx context.Context, actorID, targetID, targetType string) (*LikeResult, error) {
	if targetType == "" {
		targetType = models.TargetPost
	}

	var (
		model   interface{}
		ownerID string
		postID  string
		comment *string
		message string
	)
	tx := s.db.WithContext(ctx)
	switch targetType {
	case models.TargetPost:
		var post models.Post
		if err := tx.First(&post, "id = ?", targetID).Error; err != nil {
			return nil, notFound(err, ErrPostNotFound)
		}
		model, ownerID, postID, message = &models.Post{}, post.AuthorID, post.ID, "liked your post"
	case models.TargetComment:
		var c models.Comment
		if err := tx.First(&c, "id = ?", targetID).Error; err != nil {
			return nil, notFound(err, ErrCommentNotFound)
		}
		model, ownerID, postID, message = &models.Comment{}, c.AuthorID, c.PostID, "liked your comment"
		comment = &c.ID
	default:
		return nil, ErrInvalidTargetType
	}

	blocked, err := s.graph.IsBlocked(ctx, actorID, ownerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	// 评论点赞同样要求能看到所属帖子
	if _, err := s.graph.visiblePost(ctx, actorID, postID); err != nil {
		return nil, err
	}

	res := &LikeResult{}
	err = tx.Transaction(func(tx *gorm.DB) error {
		var like models.Like
		err := tx.Where("user_id = ? AND target_id = ? AND target_type = ?", actorID, targetID, targetType).First(&like).Error
		switch {
		case err == nil:
			if err := dropPivot(tx, &like, counter{model, targetID, "likes_count"}); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Like{UserID: actorID, TargetID: targetID, TargetType: targetType}).Error; err != nil {
				return conflict(err)
			}
			if err := bump(tx, model, targetID, "likes_count", 1); err != nil {
				return err
			}
			res.Liked = true
		default:
			return err
		}
		return tx.Model(model).Where("id = ?", targetID).Pluck("likes_count", &res.LikesCount).Error
	})
	if err != nil {
		return nil, err
	}

	if res.Liked {
		s.notifier.Notify(ctx, &models.Notification{
			UserID:     ownerID,
			FromUserID: actorID,
			Type:       models.NotificationTypeLike,
			PostID:     &postID,
			CommentID:  comment,
			Message:    message,
		})
	}
	return res, nil
}

// ToggleSave 收藏/取消收藏，不发通知
func (s *EngagementService) ToggleSave(ctx context.Context, actorID, postID string) (*SaveResult, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	blocked, err := s.graph.IsBlocked(ctx, actorID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	if ok, err := s.graph.canView(ctx, actorID, &post); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrPostNotFound
	}

	res := &SaveResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var save models.Save
		err := tx.Where("user_id = ? AND post_id = ?", actorID, postID).First(&save).Error
		switch {
		case err == nil:
			if err := dropPivot(tx, &save, counter{&models.Post{}, postID, "saves_count"}); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Save{UserID: actorID, PostID: postID}).Error; err != nil {
				return conflict(err)
			}
			if err := bump(tx, &models.Post{}, postID, "saves_count", 1); err != nil {
				return err
			}
			res.Saved = true
		default:
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("saves_count", &res.SavesCount).Error
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
