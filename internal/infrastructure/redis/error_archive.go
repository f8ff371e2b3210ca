package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	"github.com/redis/go-redis/v9"
)

const DefaultArchiveTTL = 24 * time.Hour

// ErrorArchive keeps terminal import errors in Redis so they survive restarts
// of the in-memory registry. Each error is a JSON blob with a TTL, indexed per
// job in a sorted set scored by time.
type ErrorArchive struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewErrorArchive(client *Client, ttl time.Duration) *ErrorArchive {
	if ttl <= 0 {
		ttl = DefaultArchiveTTL
	}
	return &ErrorArchive{rdb: client.rdb, ttl: ttl}
}

func jobErrorsKey(jobID string) string {
	return fmt.Sprintf("import_errors:%s", jobID)
}

func errorKey(id string) string {
	return fmt.Sprintf("import_error:%s", id)
}

func (a *ErrorArchive) Save(ctx context.Context, pe failure.ProcessedError) error {
	data, err := json.Marshal(pe)
	if err != nil {
		return fmt.Errorf("failed to marshal import error: %w", err)
	}

	pipe := a.rdb.TxPipeline()
	pipe.Set(ctx, errorKey(pe.ID), data, a.ttl)
	if jobID := pe.Context.JobID; jobID != "" {
		pipe.ZAdd(ctx, jobErrorsKey(jobID), redis.Z{
			Score:  float64(pe.Context.Timestamp.UnixMilli()),
			Member: pe.ID,
		})
		pipe.Expire(ctx, jobErrorsKey(jobID), a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive import error: %w", err)
	}
	return nil
}

// ListByJob returns the archived errors of a job, oldest first.
func (a *ErrorArchive) ListByJob(ctx context.Context, jobID string) ([]failure.ProcessedError, error) {
	ids, err := a.rdb.ZRange(ctx, jobErrorsKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	out := make([]failure.ProcessedError, 0, len(ids))
	for _, id := range ids {
		data, err := a.rdb.Get(ctx, errorKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Blob expired before the index.
			a.rdb.ZRem(ctx, jobErrorsKey(jobID), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get import error: %w", err)
		}

		var pe failure.ProcessedError
		if err := json.Unmarshal(data, &pe); err != nil {
			continue
		}
		out = append(out, pe)
	}
	return out, nil
}
