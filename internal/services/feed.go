package services

import (
	"context"
	"strings"

	"krafink/internal/models"
	"krafink/internal/utils"

	"github.com/thoas/go-funk"
	"gorm.io/gorm"
)

// FeedService 组装首页、发现、个人主页、收藏和话题流
type FeedService struct {
	db    *gorm.DB
	graph *GraphService
}

// FeedItem 帖子及其作者、当前用户的点赞/收藏状态
type FeedItem struct {
	Post        *models.Post       `json:"post"`
	Author      *models.PublicUser `json:"author"`
	UserLiked   bool               `json:"user_liked"`
	UserSaved   bool               `json:"user_saved"`
	ContentHTML string             `json:"content_html"`
}

const newestFirst = "posts.created_at DESC, posts.id DESC"

// Home 自己和关注的人的帖子
func (s *FeedService) Home(ctx context.Context, viewerID string, page Page) ([]FeedItem, error) {
	following, err := s.graph.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := funk.FilterString(funk.UniqString(append(following, viewerID)), func(id string) bool {
		return !funk.ContainsString(excluded, id)
	})

	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("posts.author_id IN ?", authors).
		Where("posts.visibility IN ?", []string{models.VisibilityPublic, models.VisibilityFollowers}).
		Order(newestFirst)
	return s.list(ctx, viewerID, page.apply(q))
}

// Explore 所有公开帖子
func (s *FeedService) Explore(ctx context.Context, viewerID string, page Page) ([]FeedItem, error) {
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("posts.visibility = ?", models.VisibilityPublic)
	q = excludeAuthors(q, "posts.author_id", excluded).Order(newestFirst)
	return s.list(ctx, viewerID, page.apply(q))
}

// Profile 某个用户的帖子，可见范围取决于访问者
func (s *FeedService) Profile(ctx context.Context, viewerID, ref string, page Page) ([]FeedItem, error) {
	author, err := findUser(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}

	visibility := []string{models.VisibilityPublic}
	if viewerID != "" && viewerID != author.ID {
		blocked, err := s.graph.IsBlocked(ctx, viewerID, author.ID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return []FeedItem{}, nil
		}
		following, err := s.graph.IsFollowing(ctx, viewerID, author.ID)
		if err != nil {
			return nil, err
		}
		if following {
			visibility = append(visibility, models.VisibilityFollowers)
		}
	}

	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("posts.author_id = ?", author.ID)
	if viewerID != author.ID {
		q = q.Where("posts.visibility IN ?", visibility)
	}
	return s.list(ctx, viewerID, page.apply(q.Order(newestFirst)))
}

// Saved 我收藏的帖子，按收藏时间倒序，仍按可见性过滤
func (s *FeedService) Saved(ctx context.Context, viewerID string, page Page) ([]FeedItem, error) {
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	followed := tx.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)

	q := tx.Model(&models.Post{}).Select("posts.*").
		Joins("JOIN saves ON saves.post_id = posts.id").
		Where("saves.user_id = ?", viewerID).
		Where("(posts.visibility = ? OR posts.author_id = ? OR posts.author_id IN (?))",
			models.VisibilityPublic, viewerID, followed)
	q = excludeAuthors(q, "posts.author_id", excluded).
		Order("saves.created_at DESC, posts.id DESC")
	return s.list(ctx, viewerID, page.apply(q))
}

// Hashtag 带某个话题的公开帖子
func (s *FeedService) Hashtag(ctx context.Context, viewerID, tag string, page Page) ([]FeedItem, error) {
	tag = utils.NormalizeTag(tag)
	if tag == "" {
		return []FeedItem{}, nil
	}
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("posts.visibility = ?", models.VisibilityPublic).
		Where(hashtagCondition, `%"`+escapeLike(tag)+`"%`)
	q = excludeAuthors(q, "posts.author_id", excluded).Order(newestFirst)
	return s.list(ctx, viewerID, page.apply(q))
}

// 话题以 JSON 数组存储，按带引号的完整元素匹配
const hashtagCondition = `CAST(posts.hashtags AS TEXT) LIKE ? ESCAPE '\'`

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *FeedService) list(ctx context.Context, viewerID string, q *gorm.DB) ([]FeedItem, error) {
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return enrich(s.db.WithContext(ctx), viewerID, posts)
}

// enrich 批量补充作者和点赞/收藏状态：每页固定三次查询
func enrich(tx *gorm.DB, viewerID string, posts []models.Post) ([]FeedItem, error) {
	items := make([]FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}

	authors, err := usersByID(tx, authorIDs)
	if err != nil {
		return nil, err
	}

	var liked, saved []string
	if viewerID != "" {
		if err := tx.Model(&models.Like{}).
			Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, models.TargetPost, postIDs).
			Pluck("target_id", &liked).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Save{}).
			Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
			Pluck("post_id", &saved).Error; err != nil {
			return nil, err
		}
	}

	for i := range posts {
		p := &posts[i]
		items = append(items, FeedItem{
			Post:        p,
			Author:      authors[p.AuthorID].Public(),
			UserLiked:   funk.ContainsString(liked, p.ID),
			UserSaved:   funk.ContainsString(saved, p.ID),
			ContentHTML: utils.RenderMarkdown(p.Content),
		})
	}
	return items, nil
}
