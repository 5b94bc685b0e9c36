package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/money"
)

// RepositoryPort abstracts transactional and read-only repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetExercice(ctx context.Context, id int64) (Exercice, error)
	GetJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error)
	PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error)
	ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error)
	ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error)
}

// unbalancedSnapshotLimit bounds the advisory warning list in commit responses.
const unbalancedSnapshotLimit = 50

// Service coordinates piece mutations, reference allocation and opening
// balance carry-forward.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetPiece returns the stored postings of one piece in date then id order.
func (s *Service) GetPiece(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error) {
	return s.repo.ListPieceEntries(ctx, clientID, exerciceID, journal, pieceRef)
}

// CommitPiece applies a batch of add/modify/delete changes to one piece as a
// single all-or-nothing transaction. Validation (shape, dates, balance) runs
// entirely before the first write; a failure at any later step rolls back the
// whole batch.
func (s *Service) CommitPiece(ctx context.Context, in CommitInput) (CommitResult, error) {
	if err := in.Validate(); err != nil {
		return CommitResult{}, err
	}
	var result CommitResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exc, err := tx.GetExercice(ctx, in.ExerciceID)
		if err != nil {
			return err
		}

		existing, err := tx.ListPieceEntries(ctx, in.ClientID, exc.ID, in.Journal, in.PieceRef)
		if err != nil {
			return err
		}
		byID := make(map[int64]Entry, len(existing))
		for _, e := range existing {
			byID[e.ID] = e
		}

		plan, err := buildPlan(in, byID)
		if err != nil {
			return err
		}
		for _, d := range plan.dates {
			if d.Before(exc.DateStart) || d.After(exc.DateEnd) {
				return &DateOutOfPeriodError{Date: d, Start: exc.DateStart, End: exc.DateEnd}
			}
		}
		if err := CheckBalanced(plan.deltas); err != nil {
			return err
		}

		// A brand-new piece may consume the journal's predicted next
		// reference; the counter row is locked for the whole commit so
		// concurrent allocations serialize.
		newPiece := len(existing) == 0
		var predicted NextRef
		if newPiece {
			last, err := tx.LockJournalSequence(ctx, exc.ID, in.Journal)
			if err != nil {
				return err
			}
			predicted, err = nextFree(ctx, last, in.Journal, refWidthOf(in.Journal, in.PieceRef), func(ctx context.Context, ref string) (bool, error) {
				return tx.PieceExists(ctx, exc.ID, in.Journal, ref)
			})
			if err != nil {
				return err
			}
		}

		if _, err := tx.UpsertJournal(ctx, in.ClientID, in.Journal, in.Journal); err != nil {
			return err
		}
		for _, add := range plan.adds {
			acc, err := tx.UpsertAccount(ctx, in.ClientID, add.AccNum, add.AccLib)
			if err != nil {
				return err
			}
			add.entry.AccountID = acc.ID
			if _, err := tx.InsertEntry(ctx, add.entry); err != nil {
				return err
			}
			result.Added++
		}
		for _, mod := range plan.mods {
			if mod.AccNum != "" {
				acc, err := tx.UpsertAccount(ctx, in.ClientID, mod.AccNum, mod.AccLib)
				if err != nil {
					return err
				}
				mod.entry.AccountID = acc.ID
			}
			if err := tx.UpdateEntry(ctx, mod.entry); err != nil {
				return err
			}
			result.Modified++
		}
		for _, id := range plan.dels {
			if err := tx.DeleteEntry(ctx, id); err != nil {
				return err
			}
			result.Deleted++
		}

		if err := tx.InsertHistoryEvent(ctx, history.Event{
			CreatedAt:   s.now(),
			ClientID:    in.ClientID,
			ExerciceID:  exc.ID,
			Description: in.Description,
			Counts:      history.Counts{Added: result.Added, Modified: result.Modified, Deleted: result.Deleted},
		}); err != nil {
			return err
		}

		// The counter only advances when this commit consumed the exact
		// predicted candidate. Manual or out-of-sequence references leave
		// it untouched; it never moves backward.
		if newPiece && result.Added > 0 && in.PieceRef == predicted.PieceRef {
			if err := tx.SetJournalSequence(ctx, exc.ID, in.Journal, predicted.Number); err != nil {
				return err
			}
		}

		snapshot, err := tx.ListUnbalancedPieces(ctx, exc.ID, unbalancedSnapshotLimit)
		if err != nil {
			return err
		}
		result.UnbalancedPieces = snapshot
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

type plannedLine struct {
	AccNum string
	AccLib string
	entry  Entry
}

type commitPlan struct {
	adds   []plannedLine
	mods   []plannedLine
	dels   []int64
	deltas []Delta
	dates  []time.Time
}

// buildPlan resolves every change against the piece's current state, producing
// the write set, the balance deltas and the dates subject to the period check.
func buildPlan(in CommitInput, existing map[int64]Entry) (commitPlan, error) {
	var plan commitPlan
	for idx, ch := range in.Changes {
		switch ch.Op {
		case OpAdd:
			debit := valueOrZero(ch.DebitMinor)
			credit := valueOrZero(ch.CreditMinor)
			lib := strings.TrimSpace(ch.AccLib)
			if lib == "" {
				lib = ch.AccNum
			}
			entry := Entry{
				ClientID:    in.ClientID,
				ExerciceID:  in.ExerciceID,
				Date:        *ch.Date,
				Journal:     in.Journal,
				PieceRef:    in.PieceRef,
				Label:       *ch.Label,
				DebitMinor:  debit,
				CreditMinor: credit,
				PieceDate:   ch.PieceDate,
				ValidDate:   ch.ValidDate,
			}
			if ch.Devise != nil {
				entry.Devise = *ch.Devise
				entry.AmountDeviseMinor = ch.AmountDeviseMinor
			}
			plan.adds = append(plan.adds, plannedLine{AccNum: ch.AccNum, AccLib: lib, entry: entry})
			plan.deltas = append(plan.deltas, Delta{DebitMinor: debit, CreditMinor: credit})
			plan.dates = append(plan.dates, *ch.Date)
		case OpModify:
			old, ok := existing[ch.EntryID]
			if !ok {
				return commitPlan{}, validationf("change %d: entry %d not part of piece", idx, ch.EntryID)
			}
			merged := old
			if ch.Date != nil {
				merged.Date = *ch.Date
			}
			if ch.Label != nil {
				merged.Label = *ch.Label
			}
			if ch.DebitMinor != nil {
				merged.DebitMinor = *ch.DebitMinor
			}
			if ch.CreditMinor != nil {
				merged.CreditMinor = *ch.CreditMinor
			}
			if ch.PieceDate != nil {
				merged.PieceDate = ch.PieceDate
			}
			if ch.ValidDate != nil {
				merged.ValidDate = ch.ValidDate
			}
			if ch.Devise != nil {
				merged.Devise = *ch.Devise
				merged.AmountDeviseMinor = ch.AmountDeviseMinor
			}
			if err := checkOneSided(idx, merged.DebitMinor, merged.CreditMinor); err != nil {
				return commitPlan{}, err
			}
			lib := strings.TrimSpace(ch.AccLib)
			if lib == "" {
				lib = ch.AccNum
			}
			plan.mods = append(plan.mods, plannedLine{AccNum: strings.TrimSpace(ch.AccNum), AccLib: lib, entry: merged})
			plan.deltas = append(plan.deltas, Delta{
				DebitMinor:  merged.DebitMinor - old.DebitMinor,
				CreditMinor: merged.CreditMinor - old.CreditMinor,
			})
			plan.dates = append(plan.dates, merged.Date)
		case OpDelete:
			old, ok := existing[ch.EntryID]
			if !ok {
				return commitPlan{}, validationf("change %d: entry %d not part of piece", idx, ch.EntryID)
			}
			plan.dels = append(plan.dels, old.ID)
			plan.deltas = append(plan.deltas, Delta{DebitMinor: -old.DebitMinor, CreditMinor: -old.CreditMinor})
		}
	}
	return plan, nil
}

// refWidthOf infers the zero-pad width to use when predicting the candidate a
// typed reference should be compared against. References not shaped like
// "<journal>-<digits>" fall back to the default width.
func refWidthOf(journal, pieceRef string) int {
	suffix, ok := strings.CutPrefix(pieceRef, journal+"-")
	if !ok || suffix == "" {
		return DefaultRefWidth
	}
	if _, err := strconv.ParseInt(suffix, 10, 64); err != nil {
		return DefaultRefWidth
	}
	return len(suffix)
}

// UnbalancedPieces exposes the advisory top-N imbalance scan, ordered by
// absolute difference descending.
func (s *Service) UnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error) {
	if limit <= 0 {
		limit = unbalancedSnapshotLimit
	}
	return s.repo.ListUnbalancedPieces(ctx, exerciceID, limit)
}

// GenerateOpeningBalances builds the "AN-00001" opening piece of the target
// exercice from the source exercice's class 1-5 balances, balancing any
// residual against account 120000.
func (s *Service) GenerateOpeningBalances(ctx context.Context, in ANInput) (ANResult, error) {
	journal := strings.TrimSpace(in.Journal)
	if journal == "" {
		journal = "AN"
	}
	var result ANResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		source, err := tx.GetExercice(ctx, in.SourceExerciceID)
		if err != nil {
			return err
		}
		target, err := tx.GetExercice(ctx, in.TargetExerciceID)
		if err != nil {
			return err
		}
		if source.ClientID != target.ClientID {
			return validationf("source and target exercices belong to different clients")
		}
		if target.Status != ExerciceStatusOpen {
			return ErrExerciceClosed
		}

		pieceRef := FormatPieceRef(journal, 1, DefaultRefWidth)
		taken, err := tx.PieceExists(ctx, target.ID, journal, pieceRef)
		if err != nil {
			return err
		}
		if taken {
			if !in.Overwrite {
				return ErrOpeningExists
			}
			if err := tx.DeletePiece(ctx, target.ID, journal, pieceRef); err != nil {
				return err
			}
		}

		balances, err := tx.BalanceSheetBalances(ctx, source.ID)
		if err != nil {
			return err
		}

		const openingLabel = "A NOUVEAUX"
		dateAN := target.DateStart
		var lines []Entry
		var totalDebit, totalCredit money.Minor
		for _, b := range balances {
			solde := b.DebitMinor - b.CreditMinor
			if solde == 0 {
				continue
			}
			entry := Entry{
				ClientID:   target.ClientID,
				ExerciceID: target.ID,
				Date:       dateAN,
				Journal:    journal,
				PieceRef:   pieceRef,
				AccountID:  b.AccountID,
				Label:      openingLabel,
				PieceDate:  &dateAN,
				ValidDate:  &dateAN,
			}
			if solde > 0 {
				entry.DebitMinor = solde
				totalDebit += solde
			} else {
				entry.CreditMinor = -solde
				totalCredit += -solde
			}
			lines = append(lines, entry)
		}
		if len(lines) == 0 {
			return ErrNoOpeningBalance
		}

		if diff := totalDebit - totalCredit; diff != 0 {
			acc, err := tx.UpsertAccount(ctx, target.ClientID, "120000", "COMPTE DE RESULTAT")
			if err != nil {
				return err
			}
			entry := Entry{
				ClientID:   target.ClientID,
				ExerciceID: target.ID,
				Date:       dateAN,
				Journal:    journal,
				PieceRef:   pieceRef,
				AccountID:  acc.ID,
				Label:      openingLabel,
				PieceDate:  &dateAN,
				ValidDate:  &dateAN,
			}
			if diff > 0 {
				entry.CreditMinor = diff
				totalCredit += diff
			} else {
				entry.DebitMinor = -diff
				totalDebit += -diff
			}
			lines = append(lines, entry)
			result.ResultAccount = acc.AccNum
		}

		if _, err := tx.UpsertJournal(ctx, target.ClientID, journal, journal); err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := tx.InsertEntry(ctx, line); err != nil {
				return err
			}
		}

		if err := tx.InsertHistoryEvent(ctx, history.Event{
			CreatedAt:   s.now(),
			ClientID:    target.ClientID,
			ExerciceID:  target.ID,
			Description: "AN " + source.Label + " -> " + target.Label + " (jnl " + journal + ", piece " + pieceRef + ")",
			Counts:      history.Counts{Added: len(lines)},
		}); err != nil {
			return err
		}

		last, err := tx.LockJournalSequence(ctx, target.ID, journal)
		if err != nil {
			return err
		}
		if last < 1 {
			if err := tx.SetJournalSequence(ctx, target.ID, journal, 1); err != nil {
				return err
			}
		}

		result.PieceRef = pieceRef
		result.Lines = len(lines)
		result.TotalDebitMinor = totalDebit
		result.TotalCreditMinor = totalCredit
		return nil
	})
	if err != nil {
		return ANResult{}, err
	}
	return result, nil
}
