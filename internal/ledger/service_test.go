package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/money"
)

// memRepo is an in-memory stand-in for the Postgres repository. It keeps
// entries in a slice and the per-journal counters in a map, which is enough
// to exercise the commit state machine and the allocator.
type memRepo struct {
	exercices map[int64]Exercice
	entries   []Entry
	nextID    int64
	sequences map[string]int64
	accounts  map[string]Account
	nextAccID int64
	events    []history.Event
	failWith  error
}

func newMemRepo(exercices ...Exercice) *memRepo {
	r := &memRepo{
		exercices: map[int64]Exercice{},
		sequences: map[string]int64{},
		accounts:  map[string]Account{},
		nextID:    100,
		nextAccID: 10,
	}
	for _, exc := range exercices {
		r.exercices[exc.ID] = exc
	}
	return r
}

func seqKey(exerciceID int64, journal string) string {
	return journal + "@" + itoa(exerciceID)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Single-goroutine tests: mutate in place, emulate rollback by snapshot.
	snapEntries := append([]Entry(nil), r.entries...)
	snapSeq := map[string]int64{}
	for k, v := range r.sequences {
		snapSeq[k] = v
	}
	snapEvents := append([]history.Event(nil), r.events...)
	if err := fn(ctx, (*memTx)(r)); err != nil {
		r.entries = snapEntries
		r.sequences = snapSeq
		r.events = snapEvents
		return err
	}
	return nil
}

func (r *memRepo) GetExercice(ctx context.Context, id int64) (Exercice, error) {
	exc, ok := r.exercices[id]
	if !ok {
		return Exercice{}, ErrExerciceNotFound
	}
	return exc, nil
}

func (r *memRepo) GetJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error) {
	return r.sequences[seqKey(exerciceID, journal)], nil
}

func (r *memRepo) PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error) {
	for _, e := range r.entries {
		if e.ExerciceID == exerciceID && e.Journal == journal && e.PieceRef == pieceRef {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.ClientID == clientID && e.ExerciceID == exerciceID && e.Journal == journal && e.PieceRef == pieceRef {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error) {
	type key struct{ jnl, ref string }
	agg := map[key]*PieceImbalance{}
	for _, e := range r.entries {
		if e.ExerciceID != exerciceID {
			continue
		}
		k := key{e.Journal, e.PieceRef}
		p, ok := agg[k]
		if !ok {
			p = &PieceImbalance{Journal: e.Journal, PieceRef: e.PieceRef}
			agg[k] = p
		}
		p.Count++
		p.DebitMinor += e.DebitMinor
		p.CreditMinor += e.CreditMinor
	}
	var out []PieceImbalance
	for _, p := range agg {
		if p.DebitMinor != p.CreditMinor {
			p.DiffMinor = p.DebitMinor - p.CreditMinor
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memTx memRepo

func (tx *memTx) GetExercice(ctx context.Context, id int64) (Exercice, error) {
	return (*memRepo)(tx).GetExercice(ctx, id)
}

func (tx *memTx) ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error) {
	return (*memRepo)(tx).ListPieceEntries(ctx, clientID, exerciceID, journal, pieceRef)
}

func (tx *memTx) PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error) {
	return (*memRepo)(tx).PieceExists(ctx, exerciceID, journal, pieceRef)
}

func (tx *memTx) ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error) {
	return (*memRepo)(tx).ListUnbalancedPieces(ctx, exerciceID, limit)
}

func (tx *memTx) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	if tx.failWith != nil {
		return 0, tx.failWith
	}
	tx.nextID++
	e.ID = tx.nextID
	tx.entries = append(tx.entries, e)
	return e.ID, nil
}

func (tx *memTx) UpdateEntry(ctx context.Context, e Entry) error {
	for i := range tx.entries {
		if tx.entries[i].ID == e.ID {
			tx.entries[i] = e
			return nil
		}
	}
	return ErrEntryNotFound
}

func (tx *memTx) DeleteEntry(ctx context.Context, id int64) error {
	for i := range tx.entries {
		if tx.entries[i].ID == id {
			tx.entries = append(tx.entries[:i], tx.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (tx *memTx) DeletePiece(ctx context.Context, exerciceID int64, journal, pieceRef string) error {
	kept := tx.entries[:0]
	for _, e := range tx.entries {
		if e.ExerciceID == exerciceID && e.Journal == journal && e.PieceRef == pieceRef {
			continue
		}
		kept = append(kept, e)
	}
	tx.entries = kept
	return nil
}

func (tx *memTx) UpsertAccount(ctx context.Context, clientID int64, accNum, accLib string) (Account, error) {
	k := itoa(clientID) + "/" + accNum
	if a, ok := tx.accounts[k]; ok {
		return a, nil
	}
	tx.nextAccID++
	a := Account{ID: tx.nextAccID, ClientID: clientID, AccNum: accNum, AccLib: accLib}
	tx.accounts[k] = a
	return a, nil
}

func (tx *memTx) UpsertJournal(ctx context.Context, clientID int64, code, label string) (Journal, error) {
	return Journal{ID: 1, ClientID: clientID, Code: code, Label: label}, nil
}

func (tx *memTx) LockJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error) {
	return tx.sequences[seqKey(exerciceID, journal)], nil
}

func (tx *memTx) SetJournalSequence(ctx context.Context, exerciceID int64, journal string, n int64) error {
	k := seqKey(exerciceID, journal)
	if n > tx.sequences[k] {
		tx.sequences[k] = n
	}
	return nil
}

func (tx *memTx) BalanceSheetBalances(ctx context.Context, exerciceID int64) ([]AccountBalance, error) {
	type agg struct {
		acc           Account
		debit, credit money.Minor
	}
	byAccount := map[int64]*agg{}
	var order []int64
	for _, e := range tx.entries {
		if e.ExerciceID != exerciceID {
			continue
		}
		var acc Account
		for _, a := range tx.accounts {
			if a.ID == e.AccountID {
				acc = a
			}
		}
		if acc.AccNum == "" || acc.AccNum[0] < '1' || acc.AccNum[0] > '5' {
			continue
		}
		a, ok := byAccount[acc.ID]
		if !ok {
			a = &agg{acc: acc}
			byAccount[acc.ID] = a
			order = append(order, acc.ID)
		}
		a.debit += e.DebitMinor
		a.credit += e.CreditMinor
	}
	var out []AccountBalance
	for _, id := range order {
		a := byAccount[id]
		out = append(out, AccountBalance{
			AccountID:   a.acc.ID,
			AccNum:      a.acc.AccNum,
			AccLib:      a.acc.AccLib,
			DebitMinor:  a.debit,
			CreditMinor: a.credit,
		})
	}
	return out, nil
}

func (tx *memTx) InsertHistoryEvent(ctx context.Context, ev history.Event) error {
	tx.events = append(tx.events, ev)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func strPtr(s string) *string { return &s }

func minorPtr(v money.Minor) *money.Minor { return &v }

func openExercice2025() Exercice {
	return Exercice{
		ID:        1,
		ClientID:  7,
		Label:     "2025",
		DateStart: date(2025, time.January, 1),
		DateEnd:   date(2025, time.December, 31),
		Status:    ExerciceStatusOpen,
	}
}

func addChange(y int, m time.Month, d int, accnum, lib string, debit, credit money.Minor) Change {
	ch := Change{Op: OpAdd, Date: datePtr(y, m, d), AccNum: accnum, AccLib: accnum, Label: strPtr(lib)}
	if debit != 0 {
		ch.DebitMinor = minorPtr(debit)
	}
	if credit != 0 {
		ch.CreditMinor = minorPtr(credit)
	}
	return ch
}

func TestCommitPieceBalancedBatch(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)

	res, err := svc.CommitPiece(context.Background(), CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00001",
		Changes: []Change{
			addChange(2025, time.March, 10, "411000", "Facture 42", 12000, 0),
			addChange(2025, time.March, 10, "706000", "Facture 42", 0, 10000),
			addChange(2025, time.March, 10, "445710", "Facture 42", 0, 2000),
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Added != 3 || res.Modified != 0 || res.Deleted != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(res.UnbalancedPieces) != 0 {
		t.Fatalf("expected clean snapshot, got %+v", res.UnbalancedPieces)
	}
	if got := repo.sequences[seqKey(1, "VE")]; got != 1 {
		t.Fatalf("sequence not advanced to 1, got %d", got)
	}
	if len(repo.events) != 1 || repo.events[0].Counts.Added != 3 {
		t.Fatalf("history event missing: %+v", repo.events)
	}
}

func TestCommitPieceRejectsUnbalancedBatch(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)

	_, err := svc.CommitPiece(context.Background(), CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "AC",
		PieceRef:   "AC-00001",
		Changes: []Change{
			addChange(2025, time.May, 2, "607000", "Achat", 5050, 0),
			addChange(2025, time.May, 2, "401000", "Achat", 0, 5000),
		},
	})
	var ub *UnbalancedBatchError
	if !errors.As(err, &ub) {
		t.Fatalf("expected UnbalancedBatchError, got %v", err)
	}
	if ub.DeltaMinor != 50 {
		t.Fatalf("delta = %d, want 50", ub.DeltaMinor)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("entries persisted despite rejection")
	}
}

func TestCommitPieceRejectsDateOutsidePeriod(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)

	_, err := svc.CommitPiece(context.Background(), CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "OD",
		PieceRef:   "OD-00001",
		Changes: []Change{
			addChange(2026, time.January, 3, "411000", "x", 100, 0),
			addChange(2026, time.January, 3, "706000", "x", 0, 100),
		},
	})
	var oob *DateOutOfPeriodError
	if !errors.As(err, &oob) {
		t.Fatalf("expected DateOutOfPeriodError, got %v", err)
	}
}

func TestCommitPieceModifyDeltaBalance(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "BQ",
		PieceRef:   "BQ-00001",
		Changes: []Change{
			addChange(2025, time.June, 1, "512000", "Virement", 300, 0),
			addChange(2025, time.June, 1, "411000", "Virement", 0, 300),
		},
	})
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	stored, _ := repo.ListPieceEntries(ctx, 7, 1, "BQ", "BQ-00001")
	if len(stored) != 2 {
		t.Fatalf("want 2 entries, got %d", len(stored))
	}

	// Raising one side without touching the other must fail on the delta.
	_, err = svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "BQ",
		PieceRef:   "BQ-00001",
		Changes: []Change{
			{Op: OpModify, EntryID: stored[0].ID, DebitMinor: minorPtr(500)},
		},
	})
	var ub *UnbalancedBatchError
	if !errors.As(err, &ub) {
		t.Fatalf("expected UnbalancedBatchError, got %v", err)
	}

	// The compensating pair of modifications passes.
	res, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "BQ",
		PieceRef:   "BQ-00001",
		Changes: []Change{
			{Op: OpModify, EntryID: stored[0].ID, DebitMinor: minorPtr(500)},
			{Op: OpModify, EntryID: stored[1].ID, CreditMinor: minorPtr(500)},
		},
	})
	if err != nil {
		t.Fatalf("modify commit: %v", err)
	}
	if res.Modified != 2 {
		t.Fatalf("modified = %d, want 2", res.Modified)
	}
}

func TestCommitPieceDeleteWholePiece(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "OD",
		PieceRef:   "OD-00001",
		Changes: []Change{
			addChange(2025, time.April, 1, "606000", "Fournitures", 80, 0),
			addChange(2025, time.April, 1, "401000", "Fournitures", 0, 80),
		},
	})
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	stored, _ := repo.ListPieceEntries(ctx, 7, 1, "OD", "OD-00001")

	res, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "OD",
		PieceRef:   "OD-00001",
		Changes: []Change{
			{Op: OpDelete, EntryID: stored[0].ID},
			{Op: OpDelete, EntryID: stored[1].ID},
		},
	})
	if err != nil {
		t.Fatalf("delete commit: %v", err)
	}
	if res.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", res.Deleted)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("entries remain after full delete")
	}
}

func TestCommitPieceRollsBackOnStorageError(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	boom := errors.New("disk on fire")
	repo.failWith = boom
	svc := NewService(repo)

	_, err := svc.CommitPiece(context.Background(), CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00001",
		Changes: []Change{
			addChange(2025, time.March, 10, "411000", "x", 100, 0),
			addChange(2025, time.March, 10, "706000", "x", 0, 100),
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("history recorded despite rollback")
	}
}

func TestCommitPieceManualRefLeavesSequenceAlone(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)

	_, err := svc.CommitPiece(context.Background(), CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "FACT-2025-001",
		Changes: []Change{
			addChange(2025, time.March, 10, "411000", "x", 100, 0),
			addChange(2025, time.March, 10, "706000", "x", 0, 100),
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := repo.sequences[seqKey(1, "VE")]; got != 0 {
		t.Fatalf("sequence moved to %d for manual reference", got)
	}
}

func TestNextPieceRefFirstAllocation(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)

	ref, err := svc.NextPieceRef(context.Background(), 1, "VE", 0)
	if err != nil {
		t.Fatalf("next ref: %v", err)
	}
	if ref.PieceRef != "VE-00001" || ref.Number != 1 {
		t.Fatalf("got %+v, want VE-00001/1", ref)
	}
}

func TestNextPieceRefSkipsManualCollisions(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)
	ctx := context.Background()

	// A manually typed reference squats on the next sequential slot.
	_, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00001",
		Changes: []Change{
			addChange(2025, time.February, 1, "411000", "x", 100, 0),
			addChange(2025, time.February, 1, "706000", "x", 0, 100),
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00003",
		Changes: []Change{
			addChange(2025, time.February, 2, "411000", "y", 100, 0),
			addChange(2025, time.February, 2, "706000", "y", 0, 100),
		},
	})
	if err != nil {
		t.Fatalf("manual: %v", err)
	}

	ref, err := svc.NextPieceRef(ctx, 1, "VE", 0)
	if err != nil {
		t.Fatalf("next ref: %v", err)
	}
	if ref.PieceRef != "VE-00002" {
		t.Fatalf("got %s, want VE-00002", ref.PieceRef)
	}

	// Consume VE-00002; the allocator must then hop over VE-00003.
	_, err = svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00002",
		Changes: []Change{
			addChange(2025, time.February, 3, "411000", "z", 100, 0),
			addChange(2025, time.February, 3, "706000", "z", 0, 100),
		},
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	ref, err = svc.NextPieceRef(ctx, 1, "VE", 0)
	if err != nil {
		t.Fatalf("next ref: %v", err)
	}
	if ref.PieceRef != "VE-00004" {
		t.Fatalf("got %s, want VE-00004", ref.PieceRef)
	}
}

func TestNextPieceRefIsRepeatable(t *testing.T) {
	repo := newMemRepo(openExercice2025())
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.NextPieceRef(ctx, 1, "BQ", 0)
	if err != nil {
		t.Fatalf("next ref: %v", err)
	}
	second, err := svc.NextPieceRef(ctx, 1, "BQ", 0)
	if err != nil {
		t.Fatalf("next ref: %v", err)
	}
	if first != second {
		t.Fatalf("lookup advanced the counter: %+v then %+v", first, second)
	}
}

func TestGenerateOpeningBalances(t *testing.T) {
	source := openExercice2025()
	target := Exercice{
		ID:        2,
		ClientID:  7,
		Label:     "2026",
		DateStart: date(2026, time.January, 1),
		DateEnd:   date(2026, time.December, 31),
		Status:    ExerciceStatusOpen,
	}
	repo := newMemRepo(source, target)
	svc := NewService(repo)
	ctx := context.Background()

	// Seed 2025 with a balance-sheet position plus P&L traffic. The class 6
	// and 7 accounts must not carry forward; their net effect lands on the
	// 120000 counterpart.
	_, err := svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "VE",
		PieceRef:   "VE-00001",
		Changes: []Change{
			addChange(2025, time.March, 1, "411000", "Facture", 12000, 0),
			addChange(2025, time.March, 1, "706000", "Facture", 0, 12000),
		},
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	_, err = svc.CommitPiece(ctx, CommitInput{
		ClientID:   7,
		ExerciceID: 1,
		Journal:    "BQ",
		PieceRef:   "BQ-00001",
		Changes: []Change{
			addChange(2025, time.April, 1, "512000", "Encaissement", 5000, 0),
			addChange(2025, time.April, 1, "411000", "Encaissement", 0, 5000),
		},
	})
	if err != nil {
		t.Fatalf("seed bank: %v", err)
	}

	res, err := svc.GenerateOpeningBalances(ctx, ANInput{
		SourceExerciceID: 1,
		TargetExerciceID: 2,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.PieceRef != "AN-00001" {
		t.Fatalf("piece ref = %s", res.PieceRef)
	}
	if res.TotalDebitMinor != res.TotalCreditMinor {
		t.Fatalf("opening piece unbalanced: %d vs %d", res.TotalDebitMinor, res.TotalCreditMinor)
	}
	if res.ResultAccount != "120000" {
		t.Fatalf("result account = %q, want 120000", res.ResultAccount)
	}
	// 411000 net 7000 debit, 512000 5000 debit, counterpart 12000 credit.
	if res.Lines != 3 {
		t.Fatalf("lines = %d, want 3", res.Lines)
	}

	opening, _ := repo.ListPieceEntries(ctx, 7, 2, "AN", "AN-00001")
	if len(opening) != 3 {
		t.Fatalf("stored %d opening lines", len(opening))
	}
	for _, e := range opening {
		if !e.Date.Equal(target.DateStart) {
			t.Fatalf("opening line dated %s, want %s", e.Date, target.DateStart)
		}
		if e.ValidDate == nil || !e.ValidDate.Equal(target.DateStart) {
			t.Fatalf("opening line valid date not forced to period start")
		}
	}

	// Second run without overwrite refuses, with overwrite regenerates.
	_, err = svc.GenerateOpeningBalances(ctx, ANInput{SourceExerciceID: 1, TargetExerciceID: 2})
	if !errors.Is(err, ErrOpeningExists) {
		t.Fatalf("expected ErrOpeningExists, got %v", err)
	}
	res2, err := svc.GenerateOpeningBalances(ctx, ANInput{SourceExerciceID: 1, TargetExerciceID: 2, Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if res2.Lines != 3 {
		t.Fatalf("overwrite produced %d lines", res2.Lines)
	}
}

func TestGenerateOpeningBalancesEmptySource(t *testing.T) {
	source := openExercice2025()
	target := Exercice{ID: 2, ClientID: 7, Label: "2026",
		DateStart: date(2026, time.January, 1), DateEnd: date(2026, time.December, 31), Status: ExerciceStatusOpen}
	repo := newMemRepo(source, target)
	svc := NewService(repo)

	_, err := svc.GenerateOpeningBalances(context.Background(), ANInput{SourceExerciceID: 1, TargetExerciceID: 2})
	if !errors.Is(err, ErrNoOpeningBalance) {
		t.Fatalf("expected ErrNoOpeningBalance, got %v", err)
	}
}

func TestGenerateOpeningBalancesClosedTarget(t *testing.T) {
	source := openExercice2025()
	target := Exercice{ID: 2, ClientID: 7, Label: "2026",
		DateStart: date(2026, time.January, 1), DateEnd: date(2026, time.December, 31), Status: ExerciceStatusClosed}
	repo := newMemRepo(source, target)
	svc := NewService(repo)

	_, err := svc.GenerateOpeningBalances(context.Background(), ANInput{SourceExerciceID: 1, TargetExerciceID: 2})
	if !errors.Is(err, ErrExerciceClosed) {
		t.Fatalf("expected ErrExerciceClosed, got %v", err)
	}
}

func TestRefWidthInference(t *testing.T) {
	cases := []struct {
		journal, ref string
		want         int
	}{
		{"VE", "VE-00001", 5},
		{"VE", "VE-001", 3},
		{"VE", "FACT-001", DefaultRefWidth},
		{"VE", "VE-abc", DefaultRefWidth},
		{"VE", "VE-", DefaultRefWidth},
	}
	for _, c := range cases {
		if got := refWidthOf(c.journal, c.ref); got != c.want {
			t.Fatalf("refWidthOf(%q, %q) = %d, want %d", c.journal, c.ref, got, c.want)
		}
	}
}

func TestCommitOutcomeClassification(t *testing.T) {
	rejected := []error{
		validationf("change 0: missing account"),
		&UnbalancedBatchError{DeltaMinor: 5000},
		&DateOutOfPeriodError{},
		money.ErrInvalidAmount,
		ErrExerciceNotFound,
		ErrEntryNotFound,
		ErrExerciceClosed,
	}
	for _, err := range rejected {
		if got := commitOutcome(err); got != "rejected" {
			t.Fatalf("commitOutcome(%v) = %q, want rejected", err, got)
		}
	}
	// Storage and other unexpected failures feed the alerting label.
	if got := commitOutcome(errors.New("connection reset by peer")); got != "error" {
		t.Fatalf("commitOutcome on storage failure = %q, want error", got)
	}
}
