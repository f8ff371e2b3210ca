package queue

import (
	"context"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
)

// maintain runs the periodic cleanup at most once per MaintenanceInterval.
// It is only called from inside a tick.
func (m *Manager) maintain(ctx context.Context) {
	now := m.now()
	if !m.lastMaintenance.IsZero() && now.Sub(m.lastMaintenance) < m.cfg.MaintenanceInterval {
		return
	}
	m.lastMaintenance = now

	if removed := m.errors.CleanupOldErrors(m.cfg.ErrorMaxAge); removed > 0 {
		m.logger.Info("old import errors removed", "count", removed)
	}

	if m.cfg.CleanupAfterDays > 0 {
		if _, err := m.CleanupOldJobs(ctx, m.cfg.CleanupAfterDays); err != nil {
			m.logger.Error("cleanup old import jobs failed", "error", err)
		}
	}

	if _, err := m.GetQueueStats(ctx, ""); err != nil {
		m.logger.Error("refresh queue stats failed", "error", err)
	}
}

// reclaimStale returns processing jobs whose heartbeat is older than the lease
// to the queue, or fails them when their retry budget is spent.
func (m *Manager) reclaimStale(ctx context.Context) {
	stale, err := m.store.ListStaleProcessing(ctx, m.now().Add(-m.cfg.LeaseTimeout))
	if err != nil {
		m.logger.Error("list stale import jobs failed", "error", err)
		return
	}

	for _, job := range stale {
		m.logger.Warn("reclaiming stale import job", "job_id", job.ID, "heartbeat_at", job.HeartbeatAt)
		m.onProcessingError(ctx, job, failure.Errorf(failure.TypeTimeout,
			"processing lease expired after %s", m.cfg.LeaseTimeout))
	}
}
