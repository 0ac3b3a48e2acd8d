package services

import (
	"context"
	"strings"

	"krafink/internal/events"
	"krafink/internal/logger"
	"krafink/internal/models"
	"krafink/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModerationService 举报与审核
type ModerationService struct {
	db     *gorm.DB
	events events.Publisher
}

type ReportInput struct {
	TargetID    string `json:"target_id"`
	TargetType  string `json:"target_type"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

func (s *ModerationService) SubmitReport(ctx context.Context, reporterID string, in ReportInput) (*models.Report, error) {
	targetType := strings.ToLower(strings.TrimSpace(in.TargetType))
	if !models.ValidReportTarget(targetType) {
		return nil, ErrInvalidTargetType
	}
	reason := utils.SanitizeText(in.Reason)
	if reason == "" || len([]rune(reason)) > 200 {
		return nil, ErrInvalidInput
	}

	tx := s.db.WithContext(ctx)
	targetID := strings.TrimSpace(in.TargetID)
	switch targetType {
	case models.TargetUser:
		user, err := findUser(tx, targetID)
		if err != nil {
			return nil, err
		}
		if user.ID == reporterID {
			return nil, ErrSelfReport
		}
		targetID = user.ID
	case models.TargetPost:
		if err := tx.Select("id").First(&models.Post{}, "id = ?", targetID).Error; err != nil {
			return nil, notFound(err, ErrPostNotFound)
		}
	case models.TargetComment:
		if err := tx.Select("id").First(&models.Comment{}, "id = ?", targetID).Error; err != nil {
			return nil, notFound(err, ErrCommentNotFound)
		}
	}

	report := models.Report{
		ReporterID:  reporterID,
		TargetID:    targetID,
		TargetType:  targetType,
		Reason:      reason,
		Description: utils.SanitizeText(in.Description),
	}
	if err := tx.Create(&report).Error; err != nil {
		return nil, err
	}

	s.events.Publish(events.SubjectReportSubmitted, map[string]string{
		"report_id":   report.ID,
		"target_id":   report.TargetID,
		"target_type": report.TargetType,
	})
	logger.Info("Report submitted",
		zap.String("report_id", report.ID), zap.String("target_type", targetType), zap.String("target_id", targetID))
	return &report, nil
}

// ListReports 管理员按状态查看举报，status 为空表示全部
func (s *ModerationService) ListReports(ctx context.Context, actor *models.User, status string, page Page) ([]models.Report, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		if !models.ValidReportStatus(status) {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}
	reports := []models.Report{}
	if err := page.apply(q).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *ModerationService) UpdateStatus(ctx context.Context, actor *models.User, id, status string) (*models.Report, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if !models.ValidReportStatus(status) {
		return nil, ErrInvalidStatus
	}
	var report models.Report
	tx := s.db.WithContext(ctx)
	if err := tx.First(&report, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrReportNotFound)
	}
	if err := tx.Model(&report).Update("status", status).Error; err != nil {
		return nil, err
	}
	report.Status = status
	logger.Info("Report reviewed",
		zap.String("report_id", report.ID), zap.String("status", status), zap.String("admin_id", actor.ID))
	return &report, nil
}
