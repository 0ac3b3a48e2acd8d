package handlers

import (
	"net/http"

	"krafink/internal/logger"
	"krafink/internal/middleware"
	"krafink/internal/services"
	"krafink/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// 给 gin 的 binding 注册自定义校验规则
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		services.RegisterValidators(v)
	}
}

var kindStatus = map[services.Kind]int{
	services.KindConflict:           http.StatusConflict,
	services.KindInvalidCredentials: http.StatusUnauthorized,
	services.KindUnauthorized:       http.StatusUnauthorized,
	services.KindForbidden:          http.StatusForbidden,
	services.KindNotFound:           http.StatusNotFound,
	services.KindInvalidOperation:   http.StatusBadRequest,
	services.KindTooManyRequests:    http.StatusTooManyRequests,
}

// RespondError 把领域错误映射为 HTTP 状态码，错误体统一为 {"detail": "..."}
func RespondError(c *gin.Context, err error) {
	status, ok := kindStatus[services.KindOf(err)]
	if !ok {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user_id", middleware.CurrentUserID(c)),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
}

// bindJSON 解析请求体，失败时直接返回 400
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		badRequest(c, "Invalid request body")
		return false
	}
	return true
}

// pageFromQuery 读取 ?limit=&skip=
func pageFromQuery(c *gin.Context) services.Page {
	return services.NewPage(
		utils.StringToInt(c.Query("limit"), 0),
		utils.StringToInt(c.Query("skip"), 0),
	)
}
