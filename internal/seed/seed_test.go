package seed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"krafink/internal/db"
	"krafink/internal/models"
	"krafink/internal/security"
	"krafink/internal/services"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDemoIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	svc, err := services.New(services.Options{
		DB:        database,
		Tokens:    security.NewTokenProvider("seed-test", time.Hour),
		UploadDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := Demo(ctx, database, svc); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var users, posts int64
	database.Model(&models.User{}).Count(&users)
	database.Model(&models.Post{}).Count(&posts)
	if users != 3 || posts != 5 {
		t.Fatalf("users=%d posts=%d", users, posts)
	}

	var alice models.User
	if err := database.First(&alice, "username = ?", "alice").Error; err != nil {
		t.Fatal(err)
	}
	if alice.Role != models.RoleAdmin || alice.FollowersCount != 2 || alice.FollowingCount != 1 || alice.PostsCount != 2 {
		t.Fatalf("alice = role %s followers %d following %d posts %d",
			alice.Role, alice.FollowersCount, alice.FollowingCount, alice.PostsCount)
	}
}
