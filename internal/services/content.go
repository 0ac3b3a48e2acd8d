package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"krafink/internal/events"
	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxPostLength    = 5000
	maxCommentLength = 2000
	maxPostImages    = 10
)

// ContentService 帖子与评论
type ContentService struct {
	db       *gorm.DB
	graph    *GraphService
	notifier *NotificationService
	events   events.Publisher
}

type PostInput struct {
	Content    string   `json:"content"`
	Images     []string `json:"images"`
	Visibility string   `json:"visibility"`
}

type PostUpdate struct {
	Content    *string   `json:"content"`
	Images     *[]string `json:"images"`
	Visibility *string   `json:"visibility"`
}

func cleanImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}

func (s *ContentService) CreatePost(ctx context.Context, authorID string, in PostInput) (*FeedItem, error) {
	content := utils.SanitizeText(in.Content)
	images := cleanImages(in.Images)
	if content == "" && len(images) == 0 {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxPostLength || len(images) > maxPostImages {
		return nil, ErrInvalidInput
	}
	visibility := strings.ToLower(strings.TrimSpace(in.Visibility))
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !models.ValidVisibility(visibility) {
		return nil, ErrInvalidVisibility
	}

	post := models.Post{
		AuthorID:   authorID,
		Content:    content,
		Images:     datatypes.JSONSlice[string](images),
		Visibility: visibility,
		Hashtags:   datatypes.JSONSlice[string](utils.ExtractHashtags(content)),
		Mentions:   datatypes.JSONSlice[string](utils.ExtractMentions(content)),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return bump(tx, &models.User{}, authorID, "posts_count", 1)
	})
	if err != nil {
		return nil, err
	}

	s.notifyMentions(ctx, authorID, post.Mentions, &post.ID, nil)
	s.events.Publish(events.SubjectPostCreated, map[string]interface{}{
		"post_id":    post.ID,
		"author_id":  authorID,
		"visibility": post.Visibility,
		"hashtags":   post.Hashtags,
	})

	items, err := enrich(s.db.WithContext(ctx), authorID, []models.Post{post})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// notifyMentions 给被 @ 的用户发通知，跳过自己和有拉黑关系的人
func (s *ContentService) notifyMentions(ctx context.Context, authorID string, usernames []string, postID, commentID *string) {
	if len(usernames) == 0 {
		return
	}
	lowered := make([]string, 0, len(usernames))
	for _, u := range usernames {
		lowered = append(lowered, strings.ToLower(u))
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Find(&users).Error; err != nil {
		logger.Warn("Failed to resolve mentions", zap.Error(err))
		return
	}
	excluded, err := s.graph.ExcludedIDs(ctx, authorID)
	if err != nil {
		logger.Warn("Failed to load block list", zap.Error(err))
		return
	}
	for _, u := range users {
		if u.ID == authorID || containsID(excluded, u.ID) {
			continue
		}
		msg := "mentioned you in a post"
		if commentID != nil {
			msg = "mentioned you in a comment"
		}
		s.notifier.Notify(ctx, &models.Notification{
			UserID:     u.ID,
			FromUserID: authorID,
			Type:       models.NotificationTypeMention,
			PostID:     postID,
			CommentID:  commentID,
			Message:    msg,
		})
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// visiblePost 不存在或不可见都返回 ErrPostNotFound
func (s *ContentService) visiblePost(ctx context.Context, viewerID, postID string) (*models.Post, error) {
	return s.graph.visiblePost(ctx, viewerID, postID)
}

func (s *ContentService) GetPost(ctx context.Context, viewerID, postID string) (*FeedItem, error) {
	post, err := s.visiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	items, err := enrich(s.db.WithContext(ctx), viewerID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *ContentService) ownPost(ctx context.Context, actorID, postID string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	if post.AuthorID != actorID {
		return nil, ErrForbidden
	}
	return &post, nil
}

func (s *ContentService) UpdatePost(ctx context.Context, actorID, postID string, in PostUpdate) (*FeedItem, error) {
	post, err := s.ownPost(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	content, images := post.Content, []string(post.Images)
	if in.Content != nil {
		content = utils.SanitizeText(*in.Content)
		if utf8.RuneCountInString(content) > maxPostLength {
			return nil, ErrInvalidInput
		}
		updates["content"] = content
		updates["hashtags"] = datatypes.JSONSlice[string](utils.ExtractHashtags(content))
		updates["mentions"] = datatypes.JSONSlice[string](utils.ExtractMentions(content))
	}
	if in.Images != nil {
		images = cleanImages(*in.Images)
		if len(images) > maxPostImages {
			return nil, ErrInvalidInput
		}
		updates["images"] = datatypes.JSONSlice[string](images)
	}
	if in.Visibility != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Visibility))
		if !models.ValidVisibility(v) {
			return nil, ErrInvalidVisibility
		}
		updates["visibility"] = v
	}
	if content == "" && len(images) == 0 {
		return nil, ErrEmptyContent
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetPost(ctx, actorID, postID)
}

// DeletePost 一个事务里删除帖子及其点赞、收藏、评论和相关通知
func (s *ContentService) DeletePost(ctx context.Context, actorID, postID string) error {
	post, err := s.ownPost(ctx, actorID, postID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []string
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetPost, post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("target_type = ? AND target_id IN ?", models.TargetComment, commentIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Save{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(post).Error; err != nil {
			return err
		}
		return bump(tx, &models.User{}, post.AuthorID, "posts_count", -1)
	})
	if err != nil {
		return err
	}

	s.events.Publish(events.SubjectPostDeleted, map[string]string{
		"post_id":   post.ID,
		"author_id": post.AuthorID,
	})
	return nil
}

type CommentInput struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

// CommentItem 评论及作者，顶层评论带回复列表
type CommentItem struct {
	models.Comment
	Author    *models.PublicUser `json:"author"`
	UserLiked bool               `json:"user_liked"`
	Replies   []*CommentItem     `json:"replies,omitempty"`
}

func (s *ContentService) CreateComment(ctx context.Context, actorID, postID string, in CommentInput) (*CommentItem, error) {
	content := utils.SanitizeText(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, ErrInvalidInput
	}
	post, err := s.visiblePost(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if parentID := strings.TrimSpace(in.ParentID); parentID != "" {
		var p models.Comment
		if err := s.db.WithContext(ctx).First(&p, "id = ?", parentID).Error; err != nil {
			return nil, notFound(err, ErrCommentNotFound)
		}
		// 只支持一层回复，且必须属于同一帖子
		if p.PostID != post.ID || p.IsReply() {
			return nil, ErrNestedReply
		}
		parent = &p
	}

	comment := models.Comment{PostID: post.ID, AuthorID: actorID, Content: content}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if parent != nil {
			if err := bump(tx, &models.Comment{}, parent.ID, "replies_count", 1); err != nil {
				return err
			}
		}
		return bump(tx, &models.Post{}, post.ID, "comments_count", 1)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		UserID:     post.AuthorID,
		FromUserID: actorID,
		Type:       models.NotificationTypeComment,
		PostID:     &post.ID,
		CommentID:  &comment.ID,
		Message:    "commented on your post",
	})
	if parent != nil && parent.AuthorID != post.AuthorID {
		s.notifier.Notify(ctx, &models.Notification{
			UserID:     parent.AuthorID,
			FromUserID: actorID,
			Type:       models.NotificationTypeComment,
			PostID:     &post.ID,
			CommentID:  &comment.ID,
			Message:    "replied to your comment",
		})
	}
	s.notifyMentions(ctx, actorID, utils.ExtractMentions(content), &post.ID, &comment.ID)

	author, err := findUser(s.db.WithContext(ctx), actorID)
	if err != nil {
		return nil, err
	}
	return &CommentItem{Comment: comment, Author: author.Public()}, nil
}

// DeleteComment 顶层评论连同回复一起删除；帖子评论数减去实际删除的条数
func (s *ContentService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error; err != nil {
		return notFound(err, ErrCommentNotFound)
	}
	if comment.AuthorID != actorID {
		return ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCommentTree(tx, &comment)
	})
}

// deleteCommentTree 删除评论（顶层评论连同回复），计数按实际删除的行数回退。
// 并发删除同一条评论时，后执行的一方删除 0 行，返回 ErrCommentNotFound 且不改计数
func deleteCommentTree(tx *gorm.DB, comment *models.Comment) error {
	ids := []string{comment.ID}
	if !comment.IsReply() {
		var replyIDs []string
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", comment.ID).Pluck("id", &replyIDs).Error; err != nil {
			return err
		}
		ids = append(ids, replyIDs...)
	}

	var del *gorm.DB
	if comment.IsReply() {
		del = tx.Where("id = ?", comment.ID).Delete(&models.Comment{})
	} else {
		del = tx.Where("id = ? OR parent_id = ?", comment.ID, comment.ID).Delete(&models.Comment{})
	}
	if del.Error != nil {
		return del.Error
	}
	if del.RowsAffected == 0 {
		return ErrCommentNotFound
	}

	if err := tx.Where("target_type = ? AND target_id IN ?", models.TargetComment, ids).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("comment_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	if comment.IsReply() {
		if err := bump(tx, &models.Comment{}, *comment.ParentID, "replies_count", -1); err != nil {
			return err
		}
	}
	return bump(tx, &models.Post{}, comment.PostID, "comments_count", -int(del.RowsAffected))
}

// ListComments 顶层评论按时间正序，回复挂在各自的父评论下
func (s *ContentService) ListComments(ctx context.Context, viewerID, postID string) ([]*CommentItem, error) {
	post, err := s.visiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)
	var comments []models.Comment
	if err := tx.Where("post_id = ?", post.ID).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []*CommentItem{}, nil
	}

	ids := make([]string, 0, len(comments))
	authorIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
		authorIDs = append(authorIDs, c.AuthorID)
	}
	authors, err := usersByID(tx, authorIDs)
	if err != nil {
		return nil, err
	}
	var liked []string
	if viewerID != "" {
		if err := tx.Model(&models.Like{}).
			Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, models.TargetComment, ids).
			Pluck("target_id", &liked).Error; err != nil {
			return nil, err
		}
	}

	top := make([]*CommentItem, 0)
	byID := make(map[string]*CommentItem, len(comments))
	for _, c := range comments {
		item := &CommentItem{
			Comment:   c,
			Author:    authors[c.AuthorID].Public(),
			UserLiked: containsID(liked, c.ID),
		}
		if !c.IsReply() {
			byID[c.ID] = item
			top = append(top, item)
		}
	}
	for _, c := range comments {
		if !c.IsReply() {
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, &CommentItem{
				Comment:   c,
				Author:    authors[c.AuthorID].Public(),
				UserLiked: containsID(liked, c.ID),
			})
		}
	}
	return top, nil
}
