package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category still has posts")
)

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// SeedDefaults creates the two stock sections when the table is empty.
func (s *CategoryService) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	defaults := []models.Category{
		{ID: "FREE", Label: "자유게시판", Color: "blue", SortOrder: 1},
		{ID: "QA", Label: "Q&A", Color: "green", SortOrder: 2},
	}
	return s.db.WithContext(ctx).Create(&defaults).Error
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := s.db.WithContext(ctx).Order("sort_order ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return rows, nil
}

func (s *CategoryService) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check category: %w", err)
	}
	return count > 0, nil
}

func (s *CategoryService) Create(ctx context.Context, req *dto.CategoryRequest) (*models.Category, error) {
	id := strings.ToUpper(strings.TrimSpace(req.ID))
	if id == "" || strings.TrimSpace(req.Label) == "" {
		return nil, errors.New("id and label are required")
	}
	row := &models.Category{
		ID:        id,
		Label:     strings.TrimSpace(req.Label),
		Color:     req.Color,
		SortOrder: req.SortOrder,
	}
	if row.Color == "" {
		row.Color = "gray"
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return row, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, req *dto.CategoryRequest) error {
	fields := map[string]interface{}{}
	if strings.TrimSpace(req.Label) != "" {
		fields["label"] = strings.TrimSpace(req.Label)
	}
	if req.Color != "" {
		fields["color"] = req.Color
	}
	if req.SortOrder != 0 {
		fields["sort_order"] = req.SortOrder
	}
	result := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update category: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete refuses to drop a section that still has live posts.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	var posts int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("category = ?", id).Count(&posts).Error; err != nil {
		return fmt.Errorf("failed to count posts: %w", err)
	}
	if posts > 0 {
		return ErrCategoryInUse
	}
	result := s.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete category: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
