package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrAlreadyBlocked = errors.New("user already blocked")
	ErrSelfBlock      = errors.New("cannot block yourself")
	ErrBlockNotFound  = errors.New("block not found")
)

var validReportReasons = map[string]bool{
	models.ReportReasonSpam:          true,
	models.ReportReasonAbuse:         true,
	models.ReportReasonInappropriate: true,
	models.ReportReasonOther:         true,
}

var validReportStatuses = map[string]bool{
	models.ReportStatusResolved:  true,
	models.ReportStatusDismissed: true,
}

// ModerationService handles abuse reports and user blocks. Every actor id it
// stores is an anon id.
type ModerationService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewModerationService(db *gorm.DB, notifier Notifier) *ModerationService {
	return &ModerationService{db: db, notifier: notifier}
}

func (s *ModerationService) CreateReport(ctx context.Context, reporterID string, req *dto.CreateReportRequest) (*models.Report, error) {
	validTypes := map[string]bool{"post": true, "comment": true, "user": true}
	if !validTypes[req.ContentType] {
		return nil, errors.New("invalid content_type: must be post, comment, or user")
	}
	if !validReportReasons[req.Reason] {
		return nil, errors.New("invalid reason: must be SPAM, ABUSE, INAPPROPRIATE, or OTHER")
	}
	if req.ContentID == "" {
		return nil, errors.New("content_id is required")
	}

	report := models.Report{
		ID:          uuid.New(),
		ReporterID:  reporterID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		Detail:      req.Detail,
		Status:      models.ReportStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.PublishReportCreated(ctx, &report); err != nil {
			slog.Error("failed to publish report event", "report_id", report.ID, "error", err)
		}
	}
	return &report, nil
}

func (s *ModerationService) ListReports(ctx context.Context, status string, limit, offset int) ([]models.Report, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Report{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var reports []models.Report
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, total, nil
}

func (s *ModerationService) ActionReport(ctx context.Context, reportID uuid.UUID, req *dto.ActionReportRequest) error {
	if !validReportStatuses[req.Status] {
		return errors.New("invalid status: must be RESOLVED or DISMISSED")
	}

	result := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", reportID).
		Updates(map[string]interface{}{
			"status":     req.Status,
			"admin_note": req.AdminNote,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (s *ModerationService) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return ErrSelfBlock
	}

	var existing models.Block
	err := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&existing).Error
	if err == nil {
		return ErrAlreadyBlocked
	}

	block := models.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
	}
	return s.db.WithContext(ctx).Create(&block).Error
}

func (s *ModerationService) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	result := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{})
	if result.Error != nil {
		return fmt.Errorf("failed to unblock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// ListBlocked returns the caller's block list with the blocked members'
// nicknames resolved.
func (s *ModerationService) ListBlocked(ctx context.Context, blockerID string) ([]dto.BlockedUserResponse, error) {
	var blocks []models.Block
	if err := s.db.WithContext(ctx).Where("blocker_id = ?", blockerID).Order("created_at DESC").Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	out := make([]dto.BlockedUserResponse, 0, len(blocks))
	for _, b := range blocks {
		entry := dto.BlockedUserResponse{
			ID:        b.ID.String(),
			BlockedID: b.BlockedID,
			CreatedAt: b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		var profile models.Profile
		if err := s.db.WithContext(ctx).First(&profile, "id = ?", b.BlockedID).Error; err == nil && profile.Nickname != nil {
			entry.Nickname = *profile.Nickname
		}
		out = append(out, entry)
	}
	return out, nil
}
