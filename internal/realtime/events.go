package realtime

import (
	"encoding/json"
)

// 客户端 -> 服务端
const (
	EventJoinUser          = "join_user"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMessageDelivered  = "message_delivered"
	EventMarkMessagesRead  = "mark_messages_read"
)

// 服务端 -> 客户端
const (
	EventNotification    = "notification"
	EventMessageReceived = "message_received"
	EventMessageSent     = "message_sent"
	EventMessagesRead    = "messages_read"
	EventUserStatus      = "user_status"
	EventFollowUpdated   = "follow_updated"
	EventError           = "error"
)

// Envelope 双向通用的消息结构 {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type UserStatus struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func UserRoom(userID string) string {
	return "user:" + userID
}

func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}
