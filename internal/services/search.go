package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"krafink/internal/models"
	"krafink/internal/utils"

	"gorm.io/gorm"
)

const (
	minQueryLength     = 2
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type SearchService struct {
	db    *gorm.DB
	graph *GraphService
}

type SearchResult struct {
	Users []*models.PublicUser `json:"users"`
	Posts []FeedItem           `json:"posts"`
}

func searchPattern(q string) (string, bool) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < minQueryLength {
		return "", false
	}
	return "%" + escapeLike(strings.ToLower(q)) + "%", true
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return utils.ClampInt(limit, 1, maxSearchLimit)
}

// SearchUsers 用户名或昵称包含关键词，忽略大小写
func (s *SearchService) SearchUsers(ctx context.Context, viewerID, q string, limit int) ([]*models.PublicUser, error) {
	pattern, ok := searchPattern(q)
	if !ok {
		return []*models.PublicUser{}, nil
	}
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.User{}).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')`, pattern, pattern)
	query = excludeAuthors(query, "id", excluded)

	var users []models.User
	if err := query.Order("followers_count DESC, username ASC").Limit(searchLimit(limit)).Find(&users).Error; err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

// SearchPosts 公开帖子的内容或话题匹配
func (s *SearchService) SearchPosts(ctx context.Context, viewerID, q string, limit int) ([]FeedItem, error) {
	pattern, ok := searchPattern(q)
	if !ok {
		return []FeedItem{}, nil
	}
	excluded, err := s.graph.ExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("posts.visibility = ?", models.VisibilityPublic).
		Where(`(LOWER(posts.content) LIKE ? ESCAPE '\' OR LOWER(CAST(posts.hashtags AS TEXT)) LIKE ? ESCAPE '\')`, pattern, pattern)
	query = excludeAuthors(query, "posts.author_id", excluded)

	var posts []models.Post
	if err := query.Order(newestFirst).Limit(searchLimit(limit)).Find(&posts).Error; err != nil {
		return nil, err
	}
	return enrich(s.db.WithContext(ctx), viewerID, posts)
}

// Search type 为 users、posts 或 all
func (s *SearchService) Search(ctx context.Context, viewerID, q, kind string, limit int) (*SearchResult, error) {
	res := &SearchResult{Users: []*models.PublicUser{}, Posts: []FeedItem{}}
	var err error
	if kind == "" || kind == "all" || kind == "users" {
		if res.Users, err = s.SearchUsers(ctx, viewerID, q, limit); err != nil {
			return nil, err
		}
	}
	if kind == "" || kind == "all" || kind == "posts" {
		if res.Posts, err = s.SearchPosts(ctx, viewerID, q, limit); err != nil {
			return nil, err
		}
	}
	return res, nil
}
