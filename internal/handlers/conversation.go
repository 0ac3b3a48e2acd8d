package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	chat *services.ChatService
}

func NewConversationHandler(chat *services.ChatService) *ConversationHandler {
	return &ConversationHandler{chat: chat}
}

type createConversationRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.chat.List(c.Request.Context(), middleware.CurrentUserID(c), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// Create 获取或创建与 user_id（ID 或用户名）的会话
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if !bindJSON(c, &req) {
		return
	}
	conv, err := h.chat.GetOrCreate(c.Request.Context(), middleware.CurrentUserID(c), req.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	total, err := h.chat.UnreadTotal(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total})
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.chat.Messages(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ConversationHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Content, req.Type)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ConversationHandler) Read(c *gin.Context) {
	receipt, err := h.chat.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
