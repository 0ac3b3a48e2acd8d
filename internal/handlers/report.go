package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	moderation *services.ModerationService
}

func NewReportHandler(moderation *services.ModerationService) *ReportHandler {
	return &ReportHandler{moderation: moderation}
}

type updateReportRequest struct {
	Status string `json:"status" binding:"required"`
}

// Submit 举报用户、帖子或评论
func (h *ReportHandler) Submit(c *gin.Context) {
	var in services.ReportInput
	if !bindJSON(c, &in) {
		return
	}
	report, err := h.moderation.SubmitReport(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// List 管理员查看举报，?status= 过滤
func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.moderation.ListReports(c.Request.Context(), middleware.CurrentUser(c), c.Query("status"), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Update(c *gin.Context) {
	var req updateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.moderation.UpdateStatus(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
