package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pacioli-erp/pacioli/internal/jobs"
	"github.com/pacioli-erp/pacioli/internal/reports"
)

// ReportWarmupJob primes the Redis report caches so the first consultation of
// the day does not pay the aggregation cost.
type ReportWarmupJob struct {
	Reports *reports.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportWarmupJob initialises the warmup handler.
func NewReportWarmupJob(svc *reports.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: svc, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the warmup logic.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Scope == "" {
		payload.Scope = "open"
	}

	tracker := j.metrics().Track(TaskReportCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(slog.String("scope", payload.Scope))
	logger.Info("starting report warmup")

	ids, err := j.exerciceIDs(ctx, payload.Scope)
	if err != nil {
		resultErr = err
		logger.Error("list exercices", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, id := range ids {
		if _, err := j.Reports.TrialBalance(ctx, id); err != nil {
			logger.Warn("trial balance warmup", slog.Int64("exercice_id", id), slog.Any("error", err))
			continue
		}
		if _, err := j.Reports.Centralisateur(ctx, id); err != nil {
			logger.Warn("centralisateur warmup", slog.Int64("exercice_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed report warmup",
		slog.Int("exercices", len(ids)),
		slog.Int("warmed", warmed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReportWarmupJob) exerciceIDs(ctx context.Context, scope string) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("report warmup: pool not configured")
	}
	query := `SELECT id FROM exercices WHERE status = 'OPEN' ORDER BY id`
	if scope == "all" {
		query = `SELECT id FROM exercices ORDER BY id`
	}
	rows, err := j.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportCacheWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
