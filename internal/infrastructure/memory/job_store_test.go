package memory_test

import (
	"context"
	"testing"
	"time"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStoreNextPendingOrdersByPriorityThenAge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	jobs := []domain.ImportJob{
		{ID: "old-low", Status: domain.StatusPending, Priority: 0, CreatedAt: base},
		{ID: "new-high", Status: domain.StatusPending, Priority: 5, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "old-high", Status: domain.StatusPending, Priority: 5, CreatedAt: base.Add(time.Minute)},
		{ID: "running", Status: domain.StatusProcessing, Priority: 9, CreatedAt: base},
	}
	for i := range jobs {
		require.NoError(t, store.Create(ctx, &jobs[i]))
	}

	next, err := store.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "old-high", next.ID)
}

func TestJobStoreNextPendingEmpty(t *testing.T) {
	t.Parallel()

	next, err := memory.NewJobStore().NextPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestJobStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "job-1", Status: domain.StatusPending}))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	job.Status = domain.StatusFailed

	again, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobStoreUpdateProgressBumpsHeartbeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewJobStore().WithClock(func() time.Time { return now })
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "job-1", Status: domain.StatusProcessing}))

	require.NoError(t, store.UpdateProgress(ctx, "job-1", domain.Progress{ProcessedRecords: 10, FailedRecords: 2, Percentage: 12}))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), job.ProcessedRecords)
	assert.Equal(t, int64(2), job.FailedRecords)
	require.NotNil(t, job.HeartbeatAt)
	assert.Equal(t, now, *job.HeartbeatAt)

	assert.ErrorIs(t, store.UpdateProgress(ctx, "missing", domain.Progress{}), domain.ErrJobNotFound)
}

func TestJobStoreDeleteTerminalBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	old := time.Now().Add(-10 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "old-done", Status: domain.StatusCompleted, CompletedAt: &old}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "old-failed", Status: domain.StatusFailed, CompletedAt: &old}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "recent-done", Status: domain.StatusCompleted, CompletedAt: &recent}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "pending", Status: domain.StatusPending}))

	deleted, err := store.DeleteTerminalBefore(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	counts, err := store.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusCompleted])
	assert.Equal(t, int64(1), counts[domain.StatusPending])
}

func TestJobStoreListStaleProcessing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	stale := time.Now().Add(-time.Hour)
	fresh := time.Now()

	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "stale", Status: domain.StatusProcessing, HeartbeatAt: &stale}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "fresh", Status: domain.StatusProcessing, HeartbeatAt: &fresh}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "done", Status: domain.StatusCompleted, HeartbeatAt: &stale}))

	jobs, err := store.ListStaleProcessing(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "stale", jobs[0].ID)
}

func TestJobStoreFiltersByTenant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "a", TenantID: "t1", Status: domain.StatusFailed}))
	require.NoError(t, store.Create(ctx, &domain.ImportJob{ID: "b", TenantID: "t2", Status: domain.StatusFailed}))

	failed, err := store.ListFailed(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].ID)

	counts, err := store.CountByStatus(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusFailed])
}
