package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type SaveHandler struct {
	engagement *services.EngagementService
}

func NewSaveHandler(engagement *services.EngagementService) *SaveHandler {
	return &SaveHandler{engagement: engagement}
}

// Toggle 切换收藏状态 - 收藏/取消收藏
func (h *SaveHandler) Toggle(c *gin.Context) {
	res, err := h.engagement.ToggleSave(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
