package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pacioli-erp/pacioli/internal/shared"
)

var (
	// ErrExerciceNotFound indicates an unknown exercice id.
	ErrExerciceNotFound = errors.New("reports: exercice not found")
	// ErrBadMonth indicates a month parameter not shaped YYYY-MM.
	ErrBadMonth = errors.New("reports: month must be YYYY-MM")
)

// ReaderPort abstracts the report aggregations and the month purge.
type ReaderPort interface {
	TrialBalance(ctx context.Context, exerciceID int64) ([]TrialBalanceRow, error)
	Centralisateur(ctx context.Context, exerciceID int64) ([]CentralisateurCell, error)
	UnbalancedPieces(ctx context.Context, exerciceID int64, limit, offset int) ([]PieceRow, int, error)
	UnbalancedJournals(ctx context.Context, exerciceID int64) ([]JournalRow, error)
	ExercicePeriod(ctx context.Context, exerciceID int64) (time.Time, time.Time, error)
	DeleteJournalMonth(ctx context.Context, exerciceID int64, journal string, from, to time.Time) (int64, error)
}

// Service computes reports, caching the heavier aggregations in Redis for a
// short TTL. A nil cache disables caching.
type Service struct {
	repo  ReaderPort
	cache *redis.Client
	ttl   time.Duration
}

// NewService constructs the reports service.
func NewService(repo ReaderPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(report string, exerciceID int64) string {
	return fmt.Sprintf("pacioli:report:%s:%d", report, exerciceID)
}

// cached fetches through the cache: a hit deserializes, a miss computes and
// stores. Cache failures fall through to the database.
func cached[T any](ctx context.Context, s *Service, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var v T
			if json.Unmarshal(raw, &v) == nil {
				return v, nil
			}
		}
	}
	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(v); err == nil {
			s.cache.Set(ctx, key, raw, s.ttl)
		}
	}
	return v, nil
}

// Invalidate drops the cached reports of one exercice after a mutation.
func (s *Service) Invalidate(ctx context.Context, exerciceID int64) {
	if s.cache == nil {
		return
	}
	keys := []string{
		cacheKey("trial_balance", exerciceID),
		cacheKey("centralisateur", exerciceID),
	}
	s.cache.Del(ctx, keys...)
}

func (s *Service) TrialBalance(ctx context.Context, exerciceID int64) (TrialBalance, error) {
	return cached(ctx, s, cacheKey("trial_balance", exerciceID), func(ctx context.Context) (TrialBalance, error) {
		rows, err := s.repo.TrialBalance(ctx, exerciceID)
		if err != nil {
			return TrialBalance{}, err
		}
		var tb TrialBalance
		for _, row := range rows {
			if solde := row.DebitMinor - row.CreditMinor; solde >= 0 {
				row.SoldeDebitMinor = solde
			} else {
				row.SoldeCreditMinor = -solde
			}
			tb.TotalDebitMinor += row.DebitMinor
			tb.TotalCreditMinor += row.CreditMinor
			tb.Rows = append(tb.Rows, row)
		}
		return tb, nil
	})
}

func (s *Service) Centralisateur(ctx context.Context, exerciceID int64) ([]CentralisateurCell, error) {
	return cached(ctx, s, cacheKey("centralisateur", exerciceID), func(ctx context.Context) ([]CentralisateurCell, error) {
		return s.repo.Centralisateur(ctx, exerciceID)
	})
}

// UnbalancedPieces pages the control report; never cached so a fix shows up
// immediately.
func (s *Service) UnbalancedPieces(ctx context.Context, exerciceID int64, page, perPage int) (UnbalancedPage, error) {
	p := shared.NewPagination(page, perPage, 0)
	rows, total, err := s.repo.UnbalancedPieces(ctx, exerciceID, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return UnbalancedPage{}, err
	}
	return UnbalancedPage{
		Pieces:     rows,
		Pagination: shared.NewPagination(p.Page, p.PerPage, total),
	}, nil
}

func (s *Service) UnbalancedJournals(ctx context.Context, exerciceID int64) ([]JournalRow, error) {
	return s.repo.UnbalancedJournals(ctx, exerciceID)
}

// DeleteMonth purges one centralisateur cell: every entry of the journal in
// the given month, clamped to the exercice period. Returns the row count;
// zero when the clamped window is empty.
func (s *Service) DeleteMonth(ctx context.Context, exerciceID int64, journal, month string) (int64, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, ErrBadMonth
	}
	last := first.AddDate(0, 1, -1)

	start, end, err := s.repo.ExercicePeriod(ctx, exerciceID)
	if err != nil {
		return 0, err
	}
	if first.Before(start) {
		first = start
	}
	if last.After(end) {
		last = end
	}
	if first.After(last) {
		return 0, nil
	}

	deleted, err := s.repo.DeleteJournalMonth(ctx, exerciceID, journal, first, last)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.Invalidate(ctx, exerciceID)
	}
	return deleted, nil
}
