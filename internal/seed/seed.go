package seed

import (
	"context"
	"fmt"

	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const demoPassword = "demo1234"

var demoUsers = []services.RegisterInput{
	{Email: "alice@krafink.dev", Username: "alice", Name: "Alice"},
	{Email: "bob@krafink.dev", Username: "bob", Name: "Bob"},
	{Email: "carol@krafink.dev", Username: "carol", Name: "Carol"},
}

var demoPosts = map[string][]string{
	"alice": {"Hello Krafink! #hello", "Weekend hike photos coming soon #outdoors"},
	"bob":   {"Just shipped a new side project #golang", "@alice welcome aboard"},
	"carol": {"Coffee first, code later #morning"},
}

// Demo 通过业务服务写入演示数据，保证计数器一致。已有用户时跳过
func Demo(ctx context.Context, database *gorm.DB, svc *services.Services) error {
	var count int64
	if err := database.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Users already seeded, skipping")
		return nil
	}

	ids := make(map[string]string, len(demoUsers))
	for _, in := range demoUsers {
		in.Password = demoPassword
		resp, err := svc.Identity.Register(ctx, in)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", in.Username, err)
		}
		ids[in.Username] = resp.User.ID
	}

	// 首个用户设为管理员
	if err := database.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", ids["alice"]).
		Update("role", models.RoleAdmin).Error; err != nil {
		return err
	}

	follows := [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"carol", "alice"}}
	for _, f := range follows {
		if _, err := svc.Graph.ToggleFollow(ctx, ids[f[0]], f[1]); err != nil {
			return fmt.Errorf("seed follow %s -> %s: %w", f[0], f[1], err)
		}
	}

	for _, u := range demoUsers {
		for _, content := range demoPosts[u.Username] {
			if _, err := svc.Content.CreatePost(ctx, ids[u.Username], services.PostInput{Content: content}); err != nil {
				return fmt.Errorf("seed post: %w", err)
			}
		}
	}

	logger.Info("Demo data created", zap.Int("users", len(demoUsers)))
	return nil
}
