package importjob_test

import (
	"errors"
	"testing"
	"time"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusPending, domain.StatusProcessing, true},
		{domain.StatusPending, domain.StatusCompleted, false},
		{domain.StatusProcessing, domain.StatusCompleted, true},
		{domain.StatusProcessing, domain.StatusCompletedWithErrors, true},
		{domain.StatusProcessing, domain.StatusFailed, true},
		{domain.StatusProcessing, domain.StatusPending, true},
		{domain.StatusCompleted, domain.StatusPending, false},
		{domain.StatusFailed, domain.StatusProcessing, false},
		{domain.StatusFailed, domain.StatusFailed, true},
	}
	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestNewJobValidate(t *testing.T) {
	t.Parallel()

	valid := domain.NewJob{
		TenantID: "tenant-1",
		UserID:   "user-1",
		FileName: "people.csv",
		FilePath: "uploads/people.csv",
		FileType: "csv",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	missing := valid
	missing.TenantID = "  "
	if err := missing.Validate(); !errors.Is(err, domain.ErrMissingJobField) {
		t.Fatalf("expected ErrMissingJobField, got %v", err)
	}

	negative := valid
	negative.MaxRetries = -1
	if err := negative.Validate(); !errors.Is(err, domain.ErrInvalidJobField) {
		t.Fatalf("expected ErrInvalidJobField, got %v", err)
	}
}

func TestJobUpdateApply(t *testing.T) {
	t.Parallel()

	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := domain.ImportJob{Status: domain.StatusFailed, CompletedAt: &done, RetryCount: 1, ErrorDetails: "boom"}

	status := domain.StatusPending
	retries := 2
	domain.JobUpdate{Status: &status, RetryCount: &retries, ClearCompletedAt: true}.Apply(&job)

	if job.Status != domain.StatusPending || job.RetryCount != 2 {
		t.Fatalf("unexpected job after update: %+v", job)
	}
	if job.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared, got %v", job.CompletedAt)
	}
	if job.ErrorDetails != "boom" {
		t.Fatalf("untouched fields must be kept, got %q", job.ErrorDetails)
	}
}

func TestHasRetryBudget(t *testing.T) {
	t.Parallel()

	if !(domain.ImportJob{RetryCount: 2, MaxRetries: 3}).HasRetryBudget() {
		t.Fatal("expected budget left")
	}
	if (domain.ImportJob{RetryCount: 3, MaxRetries: 3}).HasRetryBudget() {
		t.Fatal("expected budget spent")
	}
}

func TestNewQueueStatsTotal(t *testing.T) {
	t.Parallel()

	stats := domain.NewQueueStats(map[domain.Status]int64{
		domain.StatusPending:   2,
		domain.StatusFailed:    1,
		domain.StatusCompleted: 4,
	})
	if stats.Total != 7 || stats.Pending != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRecordBlank(t *testing.T) {
	t.Parallel()

	if !(domain.Record{Fields: map[string]string{"a": " ", "b": ""}}).Blank() {
		t.Fatal("expected blank record")
	}
	if (domain.Record{Fields: map[string]string{"a": " ", "b": "x"}}).Blank() {
		t.Fatal("expected non-blank record")
	}
}
