package services

import (
	"context"

	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/realtime"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService struct {
	db  *gorm.DB
	hub Broadcaster
}

// NotificationItem 通知及发送者信息
type NotificationItem struct {
	models.Notification
	FromUser *models.PublicUser `json:"from_user"`
}

// NotificationPush notification 事件内容
type NotificationPush struct {
	Notification *models.Notification `json:"notification"`
	FromUser     *models.PublicUser   `json:"from_user"`
}

// Notify 持久化通知并推送给在线的接收者。自己给自己不发；失败只记录日志
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) {
	if n.UserID == "" || n.UserID == n.FromUserID {
		return
	}
	tx := s.db.WithContext(ctx)
	if err := tx.Create(n).Error; err != nil {
		logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.Error(err))
		return
	}

	var from models.User
	if err := tx.First(&from, "id = ?", n.FromUserID).Error; err != nil {
		logger.Warn("Notification sender missing", zap.String("from_user_id", n.FromUserID), zap.Error(err))
	}
	s.hub.Emit(realtime.UserRoom(n.UserID), realtime.EventNotification, NotificationPush{
		Notification: n,
		FromUser:     from.Public(),
	})
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page Page) ([]NotificationItem, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []models.Notification
	if err := page.apply(q.Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, n := range rows {
		ids = append(ids, n.FromUserID)
	}
	users, err := usersByID(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}

	items := make([]NotificationItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, NotificationItem{Notification: n, FromUser: users[n.FromUserID].Public()})
	}
	return items, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
