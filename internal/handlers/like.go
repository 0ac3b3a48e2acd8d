package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/models"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct {
	engagement *services.EngagementService
}

func NewLikeHandler(engagement *services.EngagementService) *LikeHandler {
	return &LikeHandler{engagement: engagement}
}

// Like POST /posts/:id/like，?type=comment 时目标为评论
func (h *LikeHandler) Like(c *gin.Context) {
	h.toggle(c, c.DefaultQuery("type", models.TargetPost))
}

// LikeComment POST /comments/:id/like
func (h *LikeHandler) LikeComment(c *gin.Context) {
	h.toggle(c, models.TargetComment)
}

func (h *LikeHandler) toggle(c *gin.Context, targetType string) {
	res, err := h.engagement.ToggleLike(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), targetType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
