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
	"github.com/pacioli-erp/pacioli/internal/money"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityScanJob verifies that every committed piece still balances. An
// unbalanced piece can only come from out-of-band writes, so every hit is
// worth an operator's attention.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type scanScope struct {
	ExerciceID int64
	ClientID   int64
	Label      string
}

type scanHit struct {
	Journal     string
	PieceRef    string
	Lines       int
	DebitMinor  money.Minor
	CreditMinor money.Minor
}

// Handle executes the integrity scan logic.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 50
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("exercice_id", payload.ExerciceID))
	logger.Info("starting integrity scan")

	scopes, err := j.scopes(ctx, payload.ExerciceID)
	if err != nil {
		resultErr = err
		logger.Error("list exercices", slog.Any("error", err))
		return resultErr
	}

	total := 0
	for _, scope := range scopes {
		hits, err := j.scan(ctx, scope.ExerciceID, payload.Limit)
		if err != nil {
			resultErr = err
			logger.Error("scan exercice",
				slog.Int64("exercice_id", scope.ExerciceID),
				slog.Any("error", err),
			)
			return resultErr
		}
		for _, hit := range hits {
			logger.Warn("unbalanced piece detected",
				slog.Int64("client_id", scope.ClientID),
				slog.Int64("exercice_id", scope.ExerciceID),
				slog.String("journal", hit.Journal),
				slog.String("piece_ref", hit.PieceRef),
				slog.Int("lines", hit.Lines),
				slog.String("debit", money.Format(hit.DebitMinor)),
				slog.String("credit", money.Format(hit.CreditMinor)),
			)
		}
		j.metrics().AddImbalances(scope.ClientID, scope.ExerciceID, len(hits))
		total += len(hits)
	}

	logger.Info("completed integrity scan",
		slog.Int("exercices", len(scopes)),
		slog.Int("unbalanced_pieces", total),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *IntegrityScanJob) scopes(ctx context.Context, exerciceID int64) ([]scanScope, error) {
	if j.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	query := `SELECT id, client_id, label FROM exercices WHERE status = 'OPEN' ORDER BY id`
	args := []any{}
	if exerciceID > 0 {
		query = `SELECT id, client_id, label FROM exercices WHERE id = $1`
		args = append(args, exerciceID)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scanScope
	for rows.Next() {
		var s scanScope
		if err := rows.Scan(&s.ExerciceID, &s.ClientID, &s.Label); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *IntegrityScanJob) scan(ctx context.Context, exerciceID int64, limit int) ([]scanHit, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT jnl, piece_ref, COUNT(*), SUM(debit_minor), SUM(credit_minor)
		FROM entries
		WHERE exercice_id = $1
		GROUP BY jnl, piece_ref
		HAVING SUM(debit_minor) <> SUM(credit_minor)
		ORDER BY ABS(SUM(debit_minor) - SUM(credit_minor)) DESC
		LIMIT $2`, exerciceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scanHit
	for rows.Next() {
		var h scanHit
		if err := rows.Scan(&h.Journal, &h.PieceRef, &h.Lines, &h.DebitMinor, &h.CreditMinor); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
