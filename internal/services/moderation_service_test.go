package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
)

func TestCreateReportValidation(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	notifier := newCaptureNotifier()
	svc := NewModerationService(db, notifier)
	ctx := context.Background()

	bad := []*dto.CreateReportRequest{
		{ContentType: "story", ContentID: "1", Reason: models.ReportReasonSpam},
		{ContentType: "post", ContentID: "1", Reason: "ANGRY"},
		{ContentType: "post", ContentID: "", Reason: models.ReportReasonSpam},
	}
	for _, req := range bad {
		if _, err := svc.CreateReport(ctx, alice, req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
	if notifier.reportCount() != 0 {
		t.Fatalf("rejected reports must not be published, got %d", notifier.reportCount())
	}

	report, err := svc.CreateReport(ctx, alice, &dto.CreateReportRequest{
		ContentType: "post",
		ContentID:   "42",
		Reason:      models.ReportReasonAbuse,
		Detail:      "욕설",
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if report.Status != models.ReportStatusPending {
		t.Fatalf("new report should be PENDING, got %s", report.Status)
	}
	if notifier.reportCount() != 1 {
		t.Fatalf("expected 1 published report, got %d", notifier.reportCount())
	}
}

func TestActionReport(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewModerationService(db, nil)
	ctx := context.Background()

	report, err := svc.CreateReport(ctx, alice, &dto.CreateReportRequest{
		ContentType: "comment",
		ContentID:   "7",
		Reason:      models.ReportReasonOther,
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	if err := svc.ActionReport(ctx, report.ID, &dto.ActionReportRequest{Status: models.ReportStatusPending}); err == nil {
		t.Fatal("PENDING is not a valid resolution")
	}
	if err := svc.ActionReport(ctx, uuid.New(), &dto.ActionReportRequest{Status: models.ReportStatusResolved}); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := svc.ActionReport(ctx, report.ID, &dto.ActionReportRequest{Status: models.ReportStatusResolved, AdminNote: "handled"}); err != nil {
		t.Fatalf("ActionReport: %v", err)
	}

	pending, _, err := svc.ListReports(ctx, models.ReportStatusPending, 10, 0)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending reports, got %d", len(pending))
	}
	resolved, total, err := svc.ListReports(ctx, models.ReportStatusResolved, 10, 0)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if total != 1 || resolved[0].AdminNote != "handled" {
		t.Fatalf("resolved report not found, total=%d", total)
	}
}

func TestBlockLifecycle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewModerationService(db, nil)
	ctx := context.Background()
	seedProfile(t, db, bob, "밥")

	if err := svc.BlockUser(ctx, alice, alice); !errors.Is(err, ErrSelfBlock) {
		t.Fatalf("expected ErrSelfBlock, got %v", err)
	}
	if err := svc.BlockUser(ctx, alice, bob); err != nil {
		t.Fatalf("BlockUser: %v", err)
	}
	if err := svc.BlockUser(ctx, alice, bob); !errors.Is(err, ErrAlreadyBlocked) {
		t.Fatalf("expected ErrAlreadyBlocked, got %v", err)
	}

	blocked, err := svc.ListBlocked(ctx, alice)
	if err != nil {
		t.Fatalf("ListBlocked: %v", err)
	}
	if len(blocked) != 1 || blocked[0].BlockedID != bob || blocked[0].Nickname != "밥" {
		t.Fatalf("unexpected block list: %+v", blocked)
	}

	if err := svc.UnblockUser(ctx, alice, bob); err != nil {
		t.Fatalf("UnblockUser: %v", err)
	}
	if err := svc.UnblockUser(ctx, alice, bob); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}
