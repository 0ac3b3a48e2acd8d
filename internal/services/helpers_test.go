package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"krafink/internal/db"
	"krafink/internal/models"
	"krafink/internal/security"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type emitted struct {
	Room    string
	Event   string
	Payload interface{}
}

// recorder 记录所有推送，替代真实的 Hub
type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(room, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Room: room, Event: event, Payload: payload})
}

func (r *recorder) EmitExcept(rooms []string, event string, payload interface{}, exceptUserID string) {
	for _, room := range rooms {
		r.Emit(room, event, payload)
	}
}

func (r *recorder) find(room, event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if e.Room == room && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc *Services
	db  *gorm.DB
	hub *recorder
	ctx context.Context
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	database := newTestDB(t)
	hub := &recorder{}
	o := Options{
		DB:               database,
		Hub:              hub,
		Tokens:           security.NewTokenProvider(testSecret, time.Hour),
		UploadDir:        t.TempDir(),
		LoginMaxAttempts: 5,
		LoginWindow:      time.Minute,
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := New(o)
	if err != nil {
		t.Fatalf("new services: %v", err)
	}
	return &testEnv{svc: svc, db: database, hub: hub, ctx: context.Background()}
}

func (e *testEnv) register(t *testing.T, username string) *models.User {
	t.Helper()
	resp, err := e.svc.Identity.Register(e.ctx, RegisterInput{
		Email:    username + "@x.com",
		Username: username,
		Name:     "User " + username,
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return resp.User
}

func (e *testEnv) post(t *testing.T, author *models.User, content, visibility string) *models.Post {
	t.Helper()
	item, err := e.svc.Content.CreatePost(e.ctx, author.ID, PostInput{Content: content, Visibility: visibility})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return item.Post
}

func (e *testEnv) user(t *testing.T, id string) models.User {
	t.Helper()
	var u models.User
	if err := e.db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

func (e *testEnv) reloadPost(t *testing.T, id string) models.Post {
	t.Helper()
	var p models.Post
	if err := e.db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	return p
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func containsPost(items []FeedItem, id string) bool {
	for _, it := range items {
		if it.Post.ID == id {
			return true
		}
	}
	return false
}
