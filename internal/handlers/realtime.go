package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"krafink/internal/logger"
	"krafink/internal/middleware"
	"krafink/internal/realtime"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// RealtimeHandler websocket 接入和在线状态查询
type RealtimeHandler struct {
	hub      *realtime.Hub
	identity *services.IdentityService
	chat     *services.ChatService
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(hub *realtime.Hub, identity *services.IdentityService, chat *services.ChatService, allowedOrigins []string) *RealtimeHandler {
	h := &RealtimeHandler{hub: hub, identity: identity, chat: chat}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || funk.ContainsString(allowedOrigins, "*") {
				return true
			}
			return funk.ContainsString(allowedOrigins, origin)
		},
	}
	return h
}

// Connect GET /ws?token=，握手阶段鉴权，失败直接 401 不升级
func (h *RealtimeHandler) Connect(c *gin.Context) {
	token := middleware.BearerToken(c, true)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	user, err := h.identity.Authenticate(c.Request.Context(), token)
	if err != nil {
		RespondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, user.ID)
	// 连接生命周期独立于请求上下文
	client.Serve(context.Background(), &dispatcher{hub: h.hub, chat: h.chat})
}

// Presence GET /presence?ids=a,b,c
func (h *RealtimeHandler) Presence(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	ids = funk.UniqString(ids)
	if len(ids) > 100 {
		ids = ids[:100]
	}
	online, err := h.hub.Online(c.Request.Context(), ids)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, online)
}

type dispatcher struct {
	hub  *realtime.Hub
	chat *services.ChatService
}

type joinUserData struct {
	UserID string `json:"user_id"`
}

type conversationData struct {
	ConversationID string `json:"conversation_id"`
}

type sendMessageData struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

type typingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type deliveredData struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

func (d *dispatcher) Dispatch(ctx context.Context, c *realtime.Client, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventJoinUser:
		var data joinUserData
		if !d.decode(c, env, &data) {
			return
		}
		// 只能加入自己的房间
		if data.UserID != c.UserID {
			d.fail(c, env.Event, services.ErrForbidden)
			return
		}
		d.hub.Join(c, realtime.UserRoom(c.UserID))

	case realtime.EventJoinConversation:
		var data conversationData
		if !d.decode(c, env, &data) {
			return
		}
		if _, err := d.chat.Participant(ctx, c.UserID, data.ConversationID); err != nil {
			d.fail(c, env.Event, err)
			return
		}
		d.hub.Join(c, realtime.ConversationRoom(data.ConversationID))

	case realtime.EventLeaveConversation:
		var data conversationData
		if !d.decode(c, env, &data) {
			return
		}
		d.hub.Leave(c, realtime.ConversationRoom(data.ConversationID))

	case realtime.EventSendMessage:
		var data sendMessageData
		if !d.decode(c, env, &data) {
			return
		}
		if _, err := d.chat.Send(ctx, c.UserID, data.ConversationID, data.Content, data.Type); err != nil {
			d.fail(c, env.Event, err)
		}

	case realtime.EventTypingStart, realtime.EventTypingStop:
		var data typingData
		if !d.decode(c, env, &data) {
			return
		}
		data.UserID = c.UserID
		if err := d.chat.Relay(ctx, c.UserID, data.ConversationID, env.Event, data); err != nil {
			d.fail(c, env.Event, err)
		}

	case realtime.EventMessageDelivered:
		var data deliveredData
		if !d.decode(c, env, &data) {
			return
		}
		receipt := services.DeliveryReceipt{
			ConversationID: data.ConversationID,
			MessageID:      data.MessageID,
			UserID:         c.UserID,
			At:             time.Now(),
		}
		if err := d.chat.Relay(ctx, c.UserID, data.ConversationID, env.Event, receipt); err != nil {
			d.fail(c, env.Event, err)
		}

	case realtime.EventMarkMessagesRead:
		var data conversationData
		if !d.decode(c, env, &data) {
			return
		}
		if _, err := d.chat.MarkRead(ctx, c.UserID, data.ConversationID); err != nil {
			d.fail(c, env.Event, err)
		}

	default:
		d.hub.Send(c, realtime.EventError, realtime.ErrorPayload{Event: env.Event, Message: "unknown event"})
	}
}

func (d *dispatcher) decode(c *realtime.Client, env realtime.Envelope, v interface{}) bool {
	if len(env.Data) == 0 || json.Unmarshal(env.Data, v) != nil {
		d.hub.Send(c, realtime.EventError, realtime.ErrorPayload{Event: env.Event, Message: "invalid payload"})
		return false
	}
	return true
}

func (d *dispatcher) fail(c *realtime.Client, event string, err error) {
	msg := err.Error()
	if services.KindOf(err) == services.KindInternal {
		logger.Error("Realtime event failed", zap.String("event", event), zap.String("user_id", c.UserID), zap.Error(err))
		msg = "internal error"
	}
	d.hub.Send(c, realtime.EventError, realtime.ErrorPayload{Event: event, Message: msg})
}
