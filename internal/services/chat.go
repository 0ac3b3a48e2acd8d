package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"krafink/internal/models"
	"krafink/internal/realtime"
	"krafink/internal/utils"

	"gorm.io/gorm"
)

const (
	maxMessageLength = 5000
	previewLength    = 100
)

// ChatService 私信会话
type ChatService struct {
	db       *gorm.DB
	hub      Broadcaster
	graph    *GraphService
	notifier *NotificationService
}

// ConversationView 会话列表项，带对方信息和自己的未读数
type ConversationView struct {
	models.Conversation
	OtherUser   *models.PublicUser `json:"other_user"`
	UnreadCount int                `json:"unread_count"`
}

// ReadReceipt messages_read 事件内容
type ReadReceipt struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Count          int64  `json:"count"`
}

func (s *ChatService) view(conv *models.Conversation, viewerID string, other *models.User) *ConversationView {
	return &ConversationView{
		Conversation: *conv,
		OtherUser:    other.Public(),
		UnreadCount:  conv.UnreadFor(viewerID),
	}
}

// GetOrCreate 按有序用户对查找会话，不存在则创建
func (s *ChatService) GetOrCreate(ctx context.Context, actorID, otherRef string) (*ConversationView, error) {
	tx := s.db.WithContext(ctx)
	other, err := findUser(tx, otherRef)
	if err != nil {
		return nil, err
	}
	if other.ID == actorID {
		return nil, ErrSelfMessage
	}
	blocked, err := s.graph.IsBlocked(ctx, actorID, other.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	a, b := models.OrderedPair(actorID, other.ID)
	var conv models.Conversation
	err = tx.Where("user_a = ? AND user_b = ?", a, b).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = models.Conversation{UserA: a, UserB: b}
		err = tx.Create(&conv).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发创建，读取已存在的那一条
			conv = models.Conversation{}
			err = tx.Where("user_a = ? AND user_b = ?", a, b).First(&conv).Error
		}
	}
	if err != nil {
		return nil, err
	}
	return s.view(&conv, actorID, other), nil
}

// Participant 返回会话，调用者必须是参与者
func (s *ChatService) Participant(ctx context.Context, actorID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, notFound(err, ErrConversationNotFound)
	}
	if !conv.Has(actorID) {
		return nil, ErrForbidden
	}
	return &conv, nil
}

// List 最近活跃的会话在前
func (s *ChatService) List(ctx context.Context, actorID string, page Page) ([]*ConversationView, error) {
	tx := s.db.WithContext(ctx)
	var convs []models.Conversation
	q := tx.Where("user_a = ? OR user_b = ?", actorID, actorID).Order("updated_at DESC, id DESC")
	if err := page.apply(q).Find(&convs).Error; err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(convs))
	for i := range convs {
		otherIDs = append(otherIDs, convs[i].Other(actorID))
	}
	users, err := usersByID(tx, otherIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*ConversationView, 0, len(convs))
	for i := range convs {
		out = append(out, s.view(&convs[i], actorID, users[convs[i].Other(actorID)]))
	}
	return out, nil
}

// Messages 取最近一页消息，按时间正序返回
func (s *ChatService) Messages(ctx context.Context, actorID, conversationID string, page Page) ([]models.Message, error) {
	conv, err := s.Participant(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	q := s.db.WithContext(ctx).Where("conversation_id = ?", conv.ID).Order("created_at DESC, id DESC")
	if err := page.apply(q).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Send 写入消息并更新会话摘要和接收者未读数，提交后再推送
func (s *ChatService) Send(ctx context.Context, actorID, conversationID, content, msgType string) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if msgType != models.MessageTypeText && msgType != models.MessageTypeImage {
		return nil, ErrInvalidMessageType
	}
	if msgType == models.MessageTypeText {
		content = utils.SanitizeText(content)
	} else {
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, ErrInvalidInput
	}

	conv, err := s.Participant(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	receiverID := conv.Other(actorID)
	blocked, err := s.graph.IsBlocked(ctx, actorID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       actorID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           msgType,
	}
	preview := content
	if msgType == models.MessageTypeImage {
		preview = "[image]"
	} else if utf8.RuneCountInString(preview) > previewLength {
		preview = string([]rune(preview)[:previewLength]) + "..."
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		unread := conv.UnreadColumn(receiverID)
		return tx.Model(conv).Updates(map[string]interface{}{
			"last_message":    preview,
			"last_sender_id":  actorID,
			"last_message_at": msg.CreatedAt,
			unread:            gorm.Expr(unread+" + ?", 1),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		UserID:     receiverID,
		FromUserID: actorID,
		Type:       models.NotificationTypeMessage,
		Message:    preview,
	})
	s.hub.EmitExcept(
		[]string{realtime.UserRoom(receiverID), realtime.ConversationRoom(conv.ID)},
		realtime.EventMessageReceived, &msg, actorID,
	)
	s.hub.Emit(realtime.UserRoom(actorID), realtime.EventMessageSent, &msg)
	return &msg, nil
}

// MarkRead 标记发给自己的消息为已读并清零未读数，通知对方
func (s *ChatService) MarkRead(ctx context.Context, actorID, conversationID string) (*ReadReceipt, error) {
	conv, err := s.Participant(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}

	receipt := &ReadReceipt{ConversationID: conv.ID, ReaderID: actorID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conv.ID, actorID, false).
			Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		receipt.Count = res.RowsAffected
		return tx.Model(conv).UpdateColumn(conv.UnreadColumn(actorID), 0).Error
	})
	if err != nil {
		return nil, err
	}

	s.hub.EmitExcept(
		[]string{realtime.UserRoom(conv.Other(actorID)), realtime.ConversationRoom(conv.ID)},
		realtime.EventMessagesRead, receipt, actorID,
	)
	return receipt, nil
}

// UnreadTotal 所有会话中自己的未读数之和
func (s *ChatService) UnreadTotal(ctx context.Context, actorID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Select("COALESCE(SUM(CASE WHEN user_a = ? THEN unread_a ELSE unread_b END), 0)", actorID).
		Where("user_a = ? OR user_b = ?", actorID, actorID).
		Scan(&total).Error
	return total, err
}

// DeliveryReceipt message_delivered 事件内容，只转发不落库
type DeliveryReceipt struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	UserID         string    `json:"user_id"`
	At             time.Time `json:"at"`
}

// Relay 把输入状态、送达回执等瞬时事件转发到会话房间
func (s *ChatService) Relay(ctx context.Context, actorID, conversationID, event string, payload interface{}) error {
	conv, err := s.Participant(ctx, actorID, conversationID)
	if err != nil {
		return err
	}
	s.hub.Emit(realtime.UserRoom(conv.Other(actorID)), event, payload)
	return nil
}
