// Package retention runs a scheduled job trimming stale rows from the
// index-cache dedup table, grounded on
// notification-service/internal/scheduler/cron.go's robfig/cron wrapper.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/metrics"
)

// Job periodically deletes index_cache rows older than MaxAge, keeping
// the dedup table bounded — nothing in the upstream pipeline ever
// trimmed this table, so it grows forever otherwise.
type Job struct {
	cron   *cron.Cron
	pool   *pgxpool.Pool
	maxAge time.Duration
	logger *zap.Logger
}

// New creates the retention job. schedule is a standard 5-field cron
// expression or one of cron's @every/@daily shorthands.
func New(pool *pgxpool.Pool, maxAge time.Duration, logger *zap.Logger) *Job {
	return &Job{
		cron:   cron.New(),
		pool:   pool,
		maxAge: maxAge,
		logger: logger,
	}
}

// Start registers the sweep and starts the cron scheduler. Call Stop to
// gracefully shut down.
func (j *Job) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return fmt.Errorf("retention: add schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.logger.Info("retention: job started", zap.String("schedule", schedule), zap.Duration("max_age", j.maxAge))
	return nil
}

// Stop waits for any in-flight sweep to finish then stops the scheduler.
func (j *Job) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("retention: job stopped")
}

func (j *Job) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)
	tag, err := j.pool.Exec(ctx, `DELETE FROM index_cache WHERE first_seen < $1`, cutoff)
	if err != nil {
		j.logger.Error("retention: sweep failed", zap.Error(err))
		return
	}

	n := tag.RowsAffected()
	metrics.RetentionRowsDeletedTotal.Add(float64(n))
	j.logger.Info("retention: sweep complete", zap.Int64("rows_deleted", n), zap.Time("cutoff", cutoff))
}
