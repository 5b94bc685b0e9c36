// Package reports serves balance and control reports over the posting store.
package reports

import (
	"github.com/pacioli-erp/pacioli/internal/money"
	"github.com/pacioli-erp/pacioli/internal/shared"
)

// TrialBalanceRow aggregates one account over the exercice.
type TrialBalanceRow struct {
	AccNum           string      `json:"accnum"`
	AccLib           string      `json:"acclib"`
	DebitMinor       money.Minor `json:"debit_minor"`
	CreditMinor      money.Minor `json:"credit_minor"`
	SoldeDebitMinor  money.Minor `json:"solde_debit_minor"`
	SoldeCreditMinor money.Minor `json:"solde_credit_minor"`
}

// TrialBalance is the full balance with its totals row.
type TrialBalance struct {
	Rows             []TrialBalanceRow `json:"rows"`
	TotalDebitMinor  money.Minor       `json:"total_debit_minor"`
	TotalCreditMinor money.Minor       `json:"total_credit_minor"`
}

// CentralisateurCell is one (journal, month) aggregate.
type CentralisateurCell struct {
	Journal     string      `json:"jnl"`
	Month       string      `json:"month"`
	Count       int         `json:"count"`
	DebitMinor  money.Minor `json:"debit_minor"`
	CreditMinor money.Minor `json:"credit_minor"`
}

// UnbalancedPage is one offset-paged window of piece imbalances in natural
// key order.
type UnbalancedPage struct {
	Pieces     []PieceRow        `json:"pieces"`
	Pagination shared.Pagination `json:"pagination"`
}

// PieceRow is the wire shape of one unbalanced piece.
type PieceRow struct {
	Journal     string      `json:"jnl"`
	PieceRef    string      `json:"piece_ref"`
	Count       int         `json:"count"`
	DebitMinor  money.Minor `json:"debit_minor"`
	CreditMinor money.Minor `json:"credit_minor"`
	DiffMinor   money.Minor `json:"diff_minor"`
}

// JournalRow is the journal-grained aggregate.
type JournalRow struct {
	Journal     string      `json:"jnl"`
	Count       int         `json:"count"`
	DebitMinor  money.Minor `json:"debit_minor"`
	CreditMinor money.Minor `json:"credit_minor"`
	DiffMinor   money.Minor `json:"diff_minor"`
}
