package services

import (
	"context"
	"sync"
	"testing"

	"github.com/teamlounge/lounge-server/internal/database"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func postReq(title, content, category string) *dto.CreatePostRequest {
	return &dto.CreatePostRequest{Title: title, Content: content, Category: category}
}

func seedProfile(t *testing.T, db *gorm.DB, id, nickname string) {
	t.Helper()
	p := models.Profile{ID: id, Nickname: &nickname}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
}

// captureNotifier records published messages for assertions.
type captureNotifier struct {
	mu       sync.Mutex
	codes    map[string]string
	recovery map[string]string
	reports  []*models.Report
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: make(map[string]string), recovery: make(map[string]string)}
}

func (n *captureNotifier) PublishVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = code
	return nil
}

func (n *captureNotifier) PublishRecoveryCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recovery[email] = code
	return nil
}

func (n *captureNotifier) PublishReportCreated(_ context.Context, report *models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return nil
}

func (n *captureNotifier) codeFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

func (n *captureNotifier) recoveryFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recovery[email]
}

func (n *captureNotifier) reportCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}
