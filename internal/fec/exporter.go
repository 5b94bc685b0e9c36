package fec

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/money"
)

// ErrEmptyPeriod indicates an exercice with no postings to export.
var ErrEmptyPeriod = errors.New("fec: no entries for exercice")

// warningListCap bounds the itemized warning listing in the description
// document; overflow collapses into a single trailer line.
const warningListCap = 200

// SourcePort loads export inputs.
type SourcePort interface {
	GetExercice(ctx context.Context, id int64) (ledger.Exercice, error)
	GetClientName(ctx context.Context, clientID int64) (string, error)
	ListExportEntries(ctx context.Context, exerciceID int64) ([]RawEntry, error)
}

// Archive is one finished export.
type Archive struct {
	FileName string
	Data     []byte
	Warnings int
}

// Exporter assembles the flat file and its description document into a zip.
type Exporter struct {
	source SourcePort
}

// NewExporter constructs Exporter.
func NewExporter(source SourcePort) *Exporter {
	return &Exporter{source: source}
}

// Export builds the archive for one exercice. Data quality issues are never
// fatal; they degrade into the description document's warning list so the
// file can still be filed.
func (x *Exporter) Export(ctx context.Context, exerciceID int64) (Archive, error) {
	exc, err := x.source.GetExercice(ctx, exerciceID)
	if err != nil {
		return Archive{}, err
	}
	clientName, err := x.source.GetClientName(ctx, exc.ClientID)
	if err != nil {
		return Archive{}, err
	}
	raw, err := x.source.ListExportEntries(ctx, exerciceID)
	if err != nil {
		return Archive{}, err
	}
	if len(raw) == 0 {
		return Archive{}, ErrEmptyPeriod
	}

	warnings := balanceWarnings(raw)

	n := &Normalizer{PeriodStart: exc.DateStart, PeriodEnd: exc.DateEnd, Warnings: warnings}
	records := make([]Record, 0, len(raw))
	for _, e := range raw {
		records = append(records, n.Normalize(e))
	}
	AssignNumbers(records)

	fecName := "SIRENFEC" + exc.DateEnd.Format("20060102")

	var flat bytes.Buffer
	flat.WriteString(strings.Join(Fields, pipe) + lineSep)
	for _, rec := range records {
		writeRow(&flat, rec)
	}

	desc := buildDescription(clientName, exc, n.Warnings)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeZipFile(zw, fecName, flat.Bytes()); err != nil {
		return Archive{}, err
	}
	if err := writeZipFile(zw, fecName+"_description.txt", desc); err != nil {
		return Archive{}, err
	}
	if err := zw.Close(); err != nil {
		return Archive{}, err
	}

	return Archive{
		FileName: fecName + ".zip",
		Data:     buf.Bytes(),
		Warnings: len(n.Warnings),
	}, nil
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeRow(buf *bytes.Buffer, rec Record) {
	cols := []string{
		rec.JournalCode, rec.JournalLib, strconv.Itoa(rec.EcritureNum), rec.EcritureDate,
		rec.CompteNum, rec.CompteLib, "", "",
		rec.PieceRef, rec.PieceDate, rec.EcritureLib, rec.Debit, rec.Credit,
		"", "", rec.ValidDate, rec.Montantdevise, rec.Idevise,
	}
	buf.WriteString(strings.Join(cols, pipe) + lineSep)
}

// balanceWarnings computes the informational balance checks. An unbalanced
// ledger still exports.
func balanceWarnings(raw []RawEntry) []string {
	var totalDebit, totalCredit money.Minor
	type agg struct {
		count         int
		debit, credit money.Minor
	}
	byPiece := map[pieceKey]*agg{}
	var order []pieceKey
	for _, e := range raw {
		totalDebit += e.DebitMinor
		totalCredit += e.CreditMinor
		key := pieceKey{e.Journal, strings.TrimSpace(e.PieceRef)}
		a, ok := byPiece[key]
		if !ok {
			a = &agg{}
			byPiece[key] = a
			order = append(order, key)
		}
		a.count++
		a.debit += e.DebitMinor
		a.credit += e.CreditMinor
	}

	var warnings []string
	if totalDebit != totalCredit {
		warnings = append(warnings, fmt.Sprintf(
			"Desequilibre exercice: total debit=%s, total credit=%s, diff=%s",
			money.Format(totalDebit), money.Format(totalCredit), money.Format(totalDebit-totalCredit)))
	}

	var unbalanced []pieceKey
	for _, key := range order {
		if a := byPiece[key]; a.debit != a.credit {
			unbalanced = append(unbalanced, key)
		}
	}
	if len(unbalanced) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d piece(s) desequilibree(s) (debit<>credit).", len(unbalanced)))
		listed := unbalanced
		if len(listed) > warningListCap {
			listed = listed[:warningListCap]
		}
		for _, key := range listed {
			a := byPiece[key]
			warnings = append(warnings, fmt.Sprintf("  - %s/%s (lignes=%d) : debit=%s credit=%s diff=%s",
				key.Journal, key.PieceRef, a.count,
				money.Format(a.debit), money.Format(a.credit), money.Format(a.debit-a.credit)))
		}
		if rest := len(unbalanced) - warningListCap; rest > 0 {
			warnings = append(warnings, fmt.Sprintf("  ... (%d autres non listees)", rest))
		}
	}
	return warnings
}

func buildDescription(clientName string, exc ledger.Exercice, warnings []string) []byte {
	var b strings.Builder
	b.WriteString("DESCRIPTION FEC\n")
	b.WriteString("Client: " + clientName + "\n")
	b.WriteString("Exercice: " + exc.DateStart.Format("2006-01-02") + " -> " + exc.DateEnd.Format("2006-01-02") + "\n")
	b.WriteString("Format: fichier a plat, separateur '|', encodage UTF-8\n")
	b.WriteString("Tri: numerotation globale 1..N par piece, ordre d'affectation par ValidDate puis PieceRef puis Journal\n")
	b.WriteString("Champs:\n")
	for i, fld := range Fields {
		fmt.Fprintf(&b, "  %02d. %s\n", i+1, fld)
	}
	b.WriteString("\nRappels de conformite:\n")
	b.WriteString("- EcritureDate dans l'exercice ; PieceDate/ValidDate peuvent etre hors exercice.\n")
	b.WriteString("- Montantdevise/Idevise uniquement si devise differente de EUR, sinon a blanc.\n")
	b.WriteString("- CompteNum: au moins 3 premiers caracteres numeriques (PCG).\n")
	b.WriteString("- Sanitization: pas de '|' ni retours chariot dans les champs texte.\n")
	b.WriteString("\nAvertissements:\n")
	if len(warnings) == 0 {
		b.WriteString("- Aucun avertissement.\n")
	}
	for _, w := range warnings {
		b.WriteString("- " + w + "\n")
	}
	return []byte(b.String())
}
