package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
	ReportStatusResolved = "resolved"
)

type Report struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ReporterID  string    `gorm:"size:36;not null;index" json:"reporter_id"`
	TargetID    string    `gorm:"size:36;not null;index" json:"target_id"`
	TargetType  string    `gorm:"size:20;not null" json:"target_type"` // user, post, comment
	Reason      string    `gorm:"size:200;not null" json:"reason"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	return nil
}

func ValidReportStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusReviewed, ReportStatusResolved:
		return true
	}
	return false
}

func ValidReportTarget(t string) bool {
	switch t {
	case TargetUser, TargetPost, TargetComment:
		return true
	}
	return false
}
