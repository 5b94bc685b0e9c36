package reports

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/pacioli-erp/pacioli/internal/money"
)

// TrialBalanceTab renders the balance as a tab-separated document with
// French-formatted amounts, the shape accountants paste into a spreadsheet.
func TrialBalanceTab(tb TrialBalance) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	_ = w.Write([]string{"Compte", "Libelle", "Debit", "Credit", "Solde debiteur", "Solde crediteur"})
	for _, row := range tb.Rows {
		_ = w.Write([]string{
			row.AccNum, row.AccLib,
			money.FormatFR(row.DebitMinor), money.FormatFR(row.CreditMinor),
			money.FormatFR(row.SoldeDebitMinor), money.FormatFR(row.SoldeCreditMinor),
		})
	}
	_ = w.Write([]string{"TOTAL", "",
		money.FormatFR(tb.TotalDebitMinor), money.FormatFR(tb.TotalCreditMinor), "", ""})
	w.Flush()
	return buf.Bytes()
}

// UnbalancedPiecesCSV renders the control report with the semicolon
// separator French spreadsheet locales expect.
func UnbalancedPiecesCSV(rows []PieceRow) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	_ = w.Write([]string{"Journal", "Piece", "Lignes", "Debit", "Credit", "Difference"})
	for _, p := range rows {
		_ = w.Write([]string{
			p.Journal, p.PieceRef, strconv.Itoa(p.Count),
			money.Format(p.DebitMinor), money.Format(p.CreditMinor), money.Format(p.DiffMinor),
		})
	}
	w.Flush()
	return buf.Bytes()
}

// CentralisateurCSV renders the per-journal monthly totals.
func CentralisateurCSV(cells []CentralisateurCell) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	_ = w.Write([]string{"Journal", "Mois", "Lignes", "Debit", "Credit"})
	for _, c := range cells {
		_ = w.Write([]string{
			c.Journal, c.Month, strconv.Itoa(c.Count),
			money.Format(c.DebitMinor), money.Format(c.CreditMinor),
		})
	}
	w.Flush()
	return buf.Bytes()
}
