package router

import (
	"net/http"

	"krafink/internal/handlers"
	"krafink/internal/middleware"
	"krafink/internal/realtime"
	"krafink/internal/services"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Options 路由层需要的外部配置
type Options struct {
	CORSOrigins []string
}

// New 创建带基础中间件的 gin 引擎并注册全部路由
func New(svc *services.Services, hub *realtime.Hub, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/uploads"})))
	RegisterRoutes(r, svc, hub, opts)
	return r
}

func RegisterRoutes(r *gin.Engine, svc *services.Services, hub *realtime.Hub, opts Options) {
	// Handlers
	authHandler := handlers.NewAuthHandler(svc.Identity)
	userHandler := handlers.NewUserHandler(svc.Identity, svc.Graph, svc.Feed)
	postHandler := handlers.NewPostHandler(svc.Content, svc.Feed)
	likeHandler := handlers.NewLikeHandler(svc.Engagement)
	saveHandler := handlers.NewSaveHandler(svc.Engagement)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	conversationHandler := handlers.NewConversationHandler(svc.Chat)
	searchHandler := handlers.NewSearchHandler(svc.Search)
	uploadHandler := handlers.NewUploadHandler(svc.Media)
	reportHandler := handlers.NewReportHandler(svc.Moderation)
	realtimeHandler := handlers.NewRealtimeHandler(hub, svc.Identity, svc.Chat, opts.CORSOrigins)

	auth := middleware.AuthRequired(svc.Identity)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/uploads", svc.Media.Dir())
	r.GET("/ws", realtimeHandler.Connect) // 握手时鉴权

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	api.POST("/auth/register", authHandler.Register) // 注册
	api.POST("/auth/login", authHandler.Login)       // 登录

	// 可选登录：匿名只能看到公开内容，带令牌时按访问者过滤
	public := api.Group("/")
	public.Use(middleware.LoadUser(svc.Identity))
	{
		public.GET("/posts/explore", postHandler.Explore)       // 发现
		public.GET("/posts/:id", postHandler.Get)               // 帖子详情
		public.GET("/users/:ref", userHandler.Profile)          // 用户主页
		public.GET("/users/:ref/posts", userHandler.Posts)      // 用户帖子
		public.GET("/hashtags/:tag/posts", postHandler.Hashtag) // 话题
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("/")
	authorized.Use(auth)
	{
		authorized.GET("/auth/me", authHandler.Me)

		authorized.PUT("/users/profile", userHandler.UpdateProfile)         // 更新个人资料
		authorized.GET("/users/:ref/followers", userHandler.Followers)      // 粉丝列表
		authorized.GET("/users/:ref/following", userHandler.Following)      // 关注列表
		authorized.POST("/users/:ref/follow", userHandler.Follow)           // 关注/取消关注
		authorized.GET("/users/:ref/is-following", userHandler.IsFollowing) // 是否已关注
		authorized.POST("/users/:ref/block", userHandler.Block)             // 拉黑/取消拉黑
		authorized.GET("/blocks", userHandler.Blocks)                       // 黑名单

		authorized.POST("/upload/image", uploadHandler.UploadImage)

		authorized.POST("/posts", postHandler.Create)
		authorized.GET("/posts/feed", postHandler.Feed)   // 首页流
		authorized.GET("/posts/saved", postHandler.Saved) // 我的收藏
		authorized.PUT("/posts/:id", postHandler.Update)
		authorized.DELETE("/posts/:id", postHandler.Delete)
		authorized.GET("/posts/:id/comments", postHandler.Comments)
		authorized.POST("/posts/:id/comments", postHandler.CreateComment)
		authorized.POST("/posts/:id/like", likeHandler.Like) // ?type=comment 时为评论点赞
		authorized.POST("/posts/:id/save", saveHandler.Toggle)
		authorized.DELETE("/comments/:id", postHandler.DeleteComment)
		authorized.POST("/comments/:id/like", likeHandler.LikeComment)

		authorized.GET("/conversations", conversationHandler.List)
		authorized.POST("/conversations", conversationHandler.Create)
		authorized.GET("/conversations/unread-count", conversationHandler.UnreadCount)
		authorized.GET("/conversations/:id/messages", conversationHandler.Messages)
		authorized.POST("/conversations/:id/messages", conversationHandler.Send)
		authorized.POST("/conversations/:id/read", conversationHandler.Read)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)         // 标记单条通知为已读
		authorized.POST("/notifications/mark-all-read", notificationHandler.ReadAll) // 全部标记为已读
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)

		authorized.GET("/search", searchHandler.Search)
		authorized.GET("/search/users", searchHandler.Users)

		authorized.POST("/report", reportHandler.Submit)
		authorized.GET("/presence", realtimeHandler.Presence)
	}

	// 管理路由 (Admin Routes)
	admin := api.Group("/admin")
	admin.Use(auth, middleware.AdminRequired())
	{
		admin.GET("/reports", reportHandler.List)
		admin.PUT("/reports/:id", reportHandler.Update)
	}
}
