package models

import (
	"time"

	"github.com/google/uuid"
)

// Report reasons.
const (
	ReportReasonSpam          = "SPAM"
	ReportReasonAbuse         = "ABUSE"
	ReportReasonInappropriate = "INAPPROPRIATE"
	ReportReasonOther         = "OTHER"
)

// Report statuses.
const (
	ReportStatusPending   = "PENDING"
	ReportStatusResolved  = "RESOLVED"
	ReportStatusDismissed = "DISMISSED"
)

// Report is an abuse report filed by a member against a post, comment or
// user. ReporterID and user-targeted ContentID values are anon ids.
type Report struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID  string    `gorm:"type:char(36);not null;index" json:"reporter_id"`
	ContentType string    `gorm:"not null;size:20" json:"content_type"`
	ContentID   string    `gorm:"not null;size:255;index" json:"content_id"`
	Reason      string    `gorm:"not null;size:20" json:"reason"`
	Detail      string    `gorm:"size:500" json:"detail"`
	Status      string    `gorm:"not null;default:'PENDING';size:20;index" json:"status"`
	AdminNote   string    `gorm:"size:1000" json:"admin_note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
