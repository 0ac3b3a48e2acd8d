package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"krafink/internal/events"
	"krafink/internal/security"
	"krafink/internal/utils"

	"gorm.io/gorm"
)

// Broadcaster 把事件推送到实时房间，实现为 realtime.Hub
type Broadcaster interface {
	Emit(room, event string, payload interface{})
	// EmitExcept 推送到多个房间并按连接去重，跳过 exceptUserID 的连接
	EmitExcept(rooms []string, event string, payload interface{}, exceptUserID string)
}

// OnlineChecker 查询用户在线状态
type OnlineChecker interface {
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Emit(string, string, interface{})                 {}
func (nopBroadcaster) EmitExcept([]string, string, interface{}, string) {}

type Options struct {
	DB     *gorm.DB
	Hub    Broadcaster
	Online OnlineChecker
	Events events.Publisher
	Tokens *security.TokenProvider

	UploadDir      string
	UploadMaxBytes int64

	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// Services 汇总所有业务服务，由 main 组装后交给 handler
type Services struct {
	Identity      *IdentityService
	Graph         *GraphService
	Engagement    *EngagementService
	Content       *ContentService
	Feed          *FeedService
	Notifications *NotificationService
	Chat          *ChatService
	Moderation    *ModerationService
	Search        *SearchService
	Media         *MediaService
}

func New(opts Options) (*Services, error) {
	if opts.DB == nil {
		return nil, errors.New("services: database is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("services: token provider is required")
	}
	if opts.Hub == nil {
		opts.Hub = nopBroadcaster{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop()
	}
	if opts.LoginMaxAttempts <= 0 {
		opts.LoginMaxAttempts = 10
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = 15 * time.Minute
	}

	attempts, err := utils.NewTTLCache[int](4096)
	if err != nil {
		return nil, fmt.Errorf("services: login throttle cache: %w", err)
	}

	notifications := &NotificationService{db: opts.DB, hub: opts.Hub}
	graph := &GraphService{db: opts.DB, hub: opts.Hub, notifier: notifications, events: opts.Events}

	return &Services{
		Identity: &IdentityService{
			db:          opts.DB,
			tokens:      opts.Tokens,
			graph:       graph,
			online:      opts.Online,
			events:      opts.Events,
			attempts:    attempts,
			maxAttempts: opts.LoginMaxAttempts,
			window:      opts.LoginWindow,
		},
		Graph:         graph,
		Engagement:    &EngagementService{db: opts.DB, graph: graph, notifier: notifications},
		Content:       &ContentService{db: opts.DB, graph: graph, notifier: notifications, events: opts.Events},
		Feed:          &FeedService{db: opts.DB, graph: graph},
		Notifications: notifications,
		Chat:          &ChatService{db: opts.DB, hub: opts.Hub, graph: graph, notifier: notifications},
		Moderation:    &ModerationService{db: opts.DB, events: opts.Events},
		Search:        &SearchService{db: opts.DB, graph: graph},
		Media:         NewMediaService(opts.UploadDir, opts.UploadMaxBytes),
	}, nil
}

// Page 分页参数，limit 默认 20，最大 100
type Page struct {
	Limit int
	Skip  int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func NewPage(limit, skip int) Page {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return Page{
		Limit: utils.ClampInt(limit, 1, MaxPageSize),
		Skip:  utils.ClampInt(skip, 0, 1<<30),
	}
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Limit <= 0 {
		p = NewPage(p.Limit, p.Skip)
	}
	return q.Limit(p.Limit).Offset(p.Skip)
}

// bump 原子增减计数列
func bump(tx *gorm.DB, model interface{}, id, column string, delta int) error {
	return tx.Model(model).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

type counter struct {
	model  interface{}
	id     string
	column string
}

// dropPivot 删除一条关系行（点赞、收藏、关注），确实删掉时才把对应计数减一。
// 两个并发的取消操作可能读到同一行，后提交的一方删除 0 行，此时计数保持不变
func dropPivot(tx *gorm.DB, pivot interface{}, counters ...counter) error {
	res := tx.Delete(pivot)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	for _, c := range counters {
		if err := bump(tx, c.model, c.id, c.column, -1); err != nil {
			return err
		}
	}
	return nil
}
