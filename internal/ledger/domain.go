package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/pacioli-erp/pacioli/internal/money"
)

// ExerciceStatus enumerates fiscal period states.
type ExerciceStatus string

const (
	ExerciceStatusOpen   ExerciceStatus = "OPEN"
	ExerciceStatusClosed ExerciceStatus = "CLOSED"
)

// Exercice represents a fiscal period window.
type Exercice struct {
	ID        int64
	ClientID  int64
	Label     string
	DateStart time.Time
	DateEnd   time.Time
	Status    ExerciceStatus
}

// Account models a chart of accounts row scoped to one client.
type Account struct {
	ID       int64
	ClientID int64
	AccNum   string
	AccLib   string
}

// Journal is a named posting category (sales, bank, opening balances...).
type Journal struct {
	ID       int64
	ClientID int64
	Code     string
	Label    string
}

// Entry is one debit-or-credit ledger line. Exactly one of DebitMinor and
// CreditMinor is strictly positive.
type Entry struct {
	ID                int64
	ClientID          int64
	ExerciceID        int64
	Date              time.Time
	Journal           string
	PieceRef          string
	AccountID         int64
	AccNum            string
	AccLib            string
	Label             string
	DebitMinor        money.Minor
	CreditMinor       money.Minor
	PieceDate         *time.Time
	ValidDate         *time.Time
	AmountDeviseMinor *money.Minor
	Devise            string
}

// PieceImbalance aggregates debit/credit for one (journal, piece reference)
// group whose sides do not match.
type PieceImbalance struct {
	Journal     string
	PieceRef    string
	Count       int
	DebitMinor  money.Minor
	CreditMinor money.Minor
	DiffMinor   money.Minor
}

// JournalImbalance is the journal-grained variant of PieceImbalance.
type JournalImbalance struct {
	Journal     string
	Count       int
	DebitMinor  money.Minor
	CreditMinor money.Minor
	DiffMinor   money.Minor
}

// AccountBalance is an aggregated debit/credit pair per account, used for
// opening balance carry-forward and trial balance reporting.
type AccountBalance struct {
	AccountID   int64
	AccNum      string
	AccLib      string
	DebitMinor  money.Minor
	CreditMinor money.Minor
}

// NextRef is the allocator's prediction for a journal's next free piece
// reference.
type NextRef struct {
	PieceRef string `json:"piece_ref"`
	Number   int64  `json:"next_number"`
}

var (
	// ErrExerciceNotFound indicates an unknown fiscal period reference.
	ErrExerciceNotFound = errors.New("ledger: exercice not found")
	// ErrEntryNotFound indicates a missing posting.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrExerciceClosed indicates a mutation against a closed period.
	ErrExerciceClosed = errors.New("ledger: exercice is closed")
	// ErrNoOpeningBalance indicates the source period has no class 1-5 balance to carry forward.
	ErrNoOpeningBalance = errors.New("ledger: no balance-sheet balances to carry forward")
	// ErrOpeningExists indicates the opening piece already exists and overwrite was not requested.
	ErrOpeningExists = errors.New("ledger: opening balances already exist")
)

// ValidationError reports a shape violation in a commit request. It is always
// raised before any mutation reaches storage.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "ledger: " + e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UnbalancedBatchError indicates a mutation batch whose deltas do not sum to
// zero. DeltaMinor carries the offending sum of debit minus credit.
type UnbalancedBatchError struct {
	DeltaMinor money.Minor
}

func (e *UnbalancedBatchError) Error() string {
	return fmt.Sprintf("ledger: batch unbalanced (delta=%s)", money.Format(e.DeltaMinor))
}

// DateOutOfPeriodError indicates a posting date outside the fiscal period.
type DateOutOfPeriodError struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

func (e *DateOutOfPeriodError) Error() string {
	return fmt.Sprintf("ledger: date %s outside exercice %s..%s",
		e.Date.Format("2006-01-02"), e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}
