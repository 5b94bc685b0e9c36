package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/ledger"
)

// Result reports one finished import. BatchID identifies the run in logs so
// support can correlate a file with the rows it produced.
type Result struct {
	BatchID          string
	Added            int
	UnbalancedPieces []ledger.PieceImbalance
}

// Service loads a parsed file into the posting store as one transaction.
type Service struct {
	repo ledger.RepositoryPort
	now  func() time.Time
}

// NewService constructs the importer service.
func NewService(repo ledger.RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Import inserts every file line for (client, exercice). The whole file must
// balance and every date must fall inside the period; any failure rolls the
// whole import back. Accounts and journals referenced by the file are created
// lazily without overwriting existing labels.
func (s *Service) Import(ctx context.Context, clientID, exerciceID int64, raw []byte) (Result, error) {
	lines, err := Parse(raw)
	if err != nil {
		return Result{}, err
	}

	deltas := make([]ledger.Delta, 0, len(lines))
	for _, line := range lines {
		deltas = append(deltas, ledger.Delta{DebitMinor: line.DebitMinor, CreditMinor: line.CreditMinor})
	}
	if err := ledger.CheckBalanced(deltas); err != nil {
		return Result{}, err
	}

	result := Result{BatchID: uuid.NewString()}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		exc, err := tx.GetExercice(ctx, exerciceID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.Date.Before(exc.DateStart) || line.Date.After(exc.DateEnd) {
				return &ledger.DateOutOfPeriodError{Date: line.Date, Start: exc.DateStart, End: exc.DateEnd}
			}
		}

		accountIDs := map[string]int64{}
		journals := map[string]bool{}
		for _, line := range lines {
			if _, ok := accountIDs[line.AccNum]; !ok {
				acc, err := tx.UpsertAccount(ctx, clientID, line.AccNum, line.AccLib)
				if err != nil {
					return err
				}
				accountIDs[line.AccNum] = acc.ID
			}
			if !journals[line.Journal] {
				if _, err := tx.UpsertJournal(ctx, clientID, line.Journal, line.Journal); err != nil {
					return err
				}
				journals[line.Journal] = true
			}
		}

		for _, line := range lines {
			entry := ledger.Entry{
				ClientID:    clientID,
				ExerciceID:  exerciceID,
				Date:        line.Date,
				Journal:     line.Journal,
				PieceRef:    line.PieceRef,
				AccountID:   accountIDs[line.AccNum],
				Label:       line.Label,
				DebitMinor:  line.DebitMinor,
				CreditMinor: line.CreditMinor,
			}
			if _, err := tx.InsertEntry(ctx, entry); err != nil {
				return err
			}
		}

		if err := tx.InsertHistoryEvent(ctx, history.Event{
			CreatedAt:   s.now(),
			ClientID:    clientID,
			ExerciceID:  exerciceID,
			Description: fmt.Sprintf("Importer %d ecritures", len(lines)),
			Counts:      history.Counts{Added: len(lines)},
		}); err != nil {
			return err
		}

		snapshot, err := tx.ListUnbalancedPieces(ctx, exerciceID, 50)
		if err != nil {
			return err
		}
		result.Added = len(lines)
		result.UnbalancedPieces = snapshot
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
