package middleware

import (
	"context"
	"net/http"
	"strings"

	"krafink/internal/models"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// Authenticator 校验访问令牌，由 IdentityService 实现
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken 从 Authorization 头读取令牌；websocket 握手无法带头时允许 ?token=
func BearerToken(c *gin.Context, allowQuery bool) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// AuthRequired ensures a valid bearer token is present
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); exists {
			c.Next()
			return
		}
		token := BearerToken(c, false)
		if token == "" {
			abortUnauthorized(c, "Not authenticated")
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if services.KindOf(err) == services.KindUnauthorized {
				abortUnauthorized(c, err.Error())
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		c.Set(CheckUserKey, user)
		c.Next()
	}
}

// LoadUser 可选登录：令牌有效时设置当前用户，否则按匿名处理
func LoadUser(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c, false); token != "" {
			if user, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

// AdminRequired 必须在 AuthRequired 之后使用
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": services.ErrNotAdmin.Error()})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID 匿名访问返回空字符串
func CurrentUserID(c *gin.Context) string {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return ""
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
