package ledger

import (
	"strings"
	"time"

	"github.com/pacioli-erp/pacioli/internal/money"
)

// ChangeOp enumerates the operations a commit batch may carry.
type ChangeOp string

const (
	OpAdd    ChangeOp = "add"
	OpModify ChangeOp = "modify"
	OpDelete ChangeOp = "delete"
)

// Change describes one line-level mutation inside a piece commit. Pointer
// fields distinguish "leave unchanged" from explicit values on modify.
type Change struct {
	Op                ChangeOp
	EntryID           int64
	Date              *time.Time
	AccNum            string
	AccLib            string
	Label             *string
	DebitMinor        *money.Minor
	CreditMinor       *money.Minor
	PieceDate         *time.Time
	ValidDate         *time.Time
	AmountDeviseMinor *money.Minor
	Devise            *string
}

// CommitInput groups the fields of one all-or-nothing piece mutation batch.
type CommitInput struct {
	ClientID    int64
	ExerciceID  int64
	Journal     string
	PieceRef    string
	Description string
	Changes     []Change
}

// Validate checks the request shape without touching storage: operation tags,
// required add fields, non-negative one-sided amounts.
func (in CommitInput) Validate() error {
	if in.ExerciceID == 0 {
		return validationf("exercice required")
	}
	if strings.TrimSpace(in.Journal) == "" {
		return validationf("journal required")
	}
	if strings.TrimSpace(in.PieceRef) == "" {
		return validationf("piece reference required")
	}
	if len(in.Changes) == 0 {
		return validationf("empty change list")
	}
	for idx, ch := range in.Changes {
		switch ch.Op {
		case OpAdd:
			if ch.Date == nil || strings.TrimSpace(ch.AccNum) == "" || ch.Label == nil {
				return validationf("change %d: add requires date, accnum and label", idx)
			}
			debit := valueOrZero(ch.DebitMinor)
			credit := valueOrZero(ch.CreditMinor)
			if err := checkOneSided(idx, debit, credit); err != nil {
				return err
			}
		case OpModify, OpDelete:
			if ch.EntryID == 0 {
				return validationf("change %d: %s requires entry_id", idx, ch.Op)
			}
			if ch.Op == OpModify {
				if ch.DebitMinor != nil && *ch.DebitMinor < 0 {
					return validationf("change %d: negative debit", idx)
				}
				if ch.CreditMinor != nil && *ch.CreditMinor < 0 {
					return validationf("change %d: negative credit", idx)
				}
			}
		default:
			return validationf("change %d: unknown op %q", idx, ch.Op)
		}
	}
	return nil
}

func checkOneSided(idx int, debit, credit money.Minor) error {
	if debit < 0 || credit < 0 {
		return validationf("change %d: negative amount", idx)
	}
	if debit > 0 && credit > 0 {
		return validationf("change %d: cannot be both debit and credit", idx)
	}
	if debit == 0 && credit == 0 {
		return validationf("change %d: either debit or credit required", idx)
	}
	return nil
}

func valueOrZero(v *money.Minor) money.Minor {
	if v == nil {
		return 0
	}
	return *v
}

// CommitResult reports the applied counts plus a bounded advisory snapshot of
// currently unbalanced pieces for the exercice.
type CommitResult struct {
	Added            int
	Modified         int
	Deleted          int
	UnbalancedPieces []PieceImbalance
}

// ANInput wraps parameters for generating opening balances into a target
// exercice from a source exercice's balance-sheet accounts.
type ANInput struct {
	SourceExerciceID int64
	TargetExerciceID int64
	Journal          string
	Overwrite        bool
}

// ANResult summarises the generated opening piece.
type ANResult struct {
	PieceRef         string
	Lines            int
	TotalDebitMinor  money.Minor
	TotalCreditMinor money.Minor
	ResultAccount    string
}
