package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNicknameTaken    = errors.New("nickname already in use")
	ErrNicknameTooShort = errors.New("nickname must be at least 2 characters")
	ErrAdminUndeletable = errors.New("admin accounts cannot be deleted")
	ErrUserNotFound     = errors.New("user not found")
)

// ProfileService owns the profiles table and implements identity.ProfileStore
// so the session binder can resolve and mutate profiles through it.
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) GetByID(ctx context.Context, id string) (*identity.Profile, error) {
	var row models.Profile
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return toIdentityProfile(&row), nil
}

// Upsert lazily materializes the profile row on first write, matching the
// onboarding flow where the row appears when the user agrees to terms or
// picks a nickname, not at signup.
func (s *ProfileService) Upsert(ctx context.Context, id string, nickname *string, termsAgreedAt *time.Time) error {
	if nickname != nil {
		trimmed := strings.TrimSpace(*nickname)
		if len([]rune(trimmed)) < 2 {
			return ErrNicknameTooShort
		}
		taken, err := s.nicknameTaken(ctx, trimmed, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrNicknameTaken
		}
		nickname = &trimmed
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Profile
		err := tx.First(&row, "id = ?", id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Profile{ID: id, Nickname: nickname, TermsAgreedAt: termsAgreedAt}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to fetch profile: %w", err)
		}

		fields := map[string]interface{}{}
		if nickname != nil {
			fields["nickname"] = *nickname
		}
		if termsAgreedAt != nil {
			fields["terms_agreed_at"] = *termsAgreedAt
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	})
}

func (s *ProfileService) UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return identity.ErrProfileNotFound
	}
	return nil
}

// NicknameAvailable backs the onboarding duplicate check.
func (s *ProfileService) NicknameAvailable(ctx context.Context, nickname, selfID string) (bool, error) {
	taken, err := s.nicknameTaken(ctx, strings.TrimSpace(nickname), selfID)
	return !taken, err
}

func (s *ProfileService) nicknameTaken(ctx context.Context, nickname, selfID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("nickname = ? AND id <> ? AND deleted_at IS NULL", nickname, selfID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check nickname: %w", err)
	}
	return count > 0, nil
}

// WithdrawnEmail reports whether the email belongs to a withdrawn profile,
// which blocks re-registration with the same address.
func (s *ProfileService) WithdrawnEmail(ctx context.Context, email string) (bool, error) {
	hash := identity.WithdrawnEmailHash(email)
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("withdrawn_email_hash = ?", hash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check withdrawn email: %w", err)
	}
	return count > 0, nil
}

// ListUsers is the admin member table: newest activity first, optional
// nickname substring search.
func (s *ProfileService) ListUsers(ctx context.Context, search string, limit int) ([]models.Profile, error) {
	query := s.db.WithContext(ctx).Model(&models.Profile{}).Order("updated_at DESC").Limit(limit)
	if search != "" {
		query = query.Where("nickname LIKE ?", "%"+search+"%")
	}
	var rows []models.Profile
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return rows, nil
}

func (s *ProfileService) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	result := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("is_admin", isAdmin)
	if result.Error != nil {
		return fmt.Errorf("failed to set admin flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser hard-deletes a member and cascades to everything they authored.
// This is the admin escape hatch; self-service exit is the soft withdrawal
// that keeps content.
func (s *ProfileService) DeleteUser(ctx context.Context, id string) error {
	var row models.Profile
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	if row.IsAdmin {
		return ErrAdminUndeletable
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx.Unscoped().Where("author_id = ?", id).Delete(&models.Comment{})
		tx.Unscoped().Where("author_id = ?", id).Delete(&models.Post{})
		tx.Where("user_id = ?", id).Delete(&models.PostReaction{})
		tx.Where("user_id = ?", id).Delete(&models.PostView{})
		tx.Where("reporter_id = ?", id).Delete(&models.Report{})
		tx.Where("blocker_id = ? OR blocked_id = ?", id, id).Delete(&models.Block{})
		return tx.Delete(&row).Error
	})
}

func toIdentityProfile(row *models.Profile) *identity.Profile {
	return &identity.Profile{
		ID:                 row.ID,
		Nickname:           row.Nickname,
		IsAdmin:            row.IsAdmin,
		TermsAgreedAt:      row.TermsAgreedAt,
		DeletedAt:          row.DeletedAt,
		WithdrawnEmailHash: row.WithdrawnEmailHash,
	}
}
