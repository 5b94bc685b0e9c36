package fec

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/money"
)

type stubSource struct {
	exercice ledger.Exercice
	client   string
	entries  []RawEntry
}

func (s stubSource) GetExercice(_ context.Context, id int64) (ledger.Exercice, error) {
	if id != s.exercice.ID {
		return ledger.Exercice{}, ledger.ErrExerciceNotFound
	}
	return s.exercice, nil
}

func (s stubSource) GetClientName(context.Context, int64) (string, error) {
	return s.client, nil
}

func (s stubSource) ListExportEntries(context.Context, int64) ([]RawEntry, error) {
	return s.entries, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func exercice2025() ledger.Exercice {
	return ledger.Exercice{
		ID:        1,
		ClientID:  7,
		Label:     "2025",
		DateStart: day(2025, time.January, 1),
		DateEnd:   day(2025, time.December, 31),
		Status:    ledger.ExerciceStatusOpen,
	}
}

func readArchive(t *testing.T, ar Archive) (flat, desc string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(ar.Data), int64(len(ar.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		if strings.HasSuffix(f.Name, "_description.txt") {
			desc = string(data)
		} else {
			flat = string(data)
		}
	}
	return flat, desc
}

func flatLines(flat string) []string {
	return strings.Split(strings.TrimSuffix(flat, "\n"), "\n")
}

func TestExportArchiveShape(t *testing.T) {
	src := stubSource{
		exercice: exercice2025(),
		client:   "SARL Exemple",
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.March, 10), Journal: "VE", JournalLib: "Ventes", PieceRef: "VE-00001",
				AccNum: "411000", AccLib: "Clients", Label: "Facture 42", DebitMinor: 12000},
			{ID: 2, Date: day(2025, time.March, 10), Journal: "VE", JournalLib: "Ventes", PieceRef: "VE-00001",
				AccNum: "706000", AccLib: "Prestations", Label: "Facture 42", CreditMinor: 12000},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "SIRENFEC20251231.zip", ar.FileName)

	flat, desc := readArchive(t, ar)
	lines := flatLines(flat)
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(Fields, "|"), lines[0])

	first := strings.Split(lines[1], "|")
	require.Len(t, first, 18)
	require.Equal(t, "VE", first[0])
	require.Equal(t, "Ventes", first[1])
	require.Equal(t, "1", first[2])
	require.Equal(t, "20250310", first[3])
	require.Equal(t, "411000", first[4])
	require.Equal(t, "VE-00001", first[8])
	require.Equal(t, "120,00", first[11])
	require.Equal(t, "0,00", first[12])
	// lettering, clearing and currency columns stay blank for local currency
	require.Equal(t, "", first[13])
	require.Equal(t, "", first[16])
	require.Equal(t, "", first[17])

	require.Contains(t, desc, "Client: SARL Exemple")
	require.Contains(t, desc, "Aucun avertissement.")
}

func TestExportForcesOpeningDates(t *testing.T) {
	src := stubSource{
		exercice: exercice2025(),
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.June, 15), Journal: "AN", PieceRef: "AN-00001",
				AccNum: "411000", AccLib: "Clients", Label: "A NOUVEAUX", DebitMinor: 5000,
				ValidDate: dayPtr(2025, time.June, 15)},
			{ID: 2, Date: day(2025, time.June, 15), Journal: "AN", PieceRef: "AN-00001",
				AccNum: "120000", AccLib: "Resultat", Label: "A NOUVEAUX", CreditMinor: 5000},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	flat, _ := readArchive(t, ar)
	for _, line := range flatLines(flat)[1:] {
		cols := strings.Split(line, "|")
		require.Equal(t, "20250101", cols[3], "EcritureDate must be the period start")
		require.Equal(t, "20250101", cols[9], "PieceDate must be the period start")
		require.Equal(t, "20250101", cols[15], "ValidDate must be the period start")
	}
}

func TestExportODDefaultsPieceDateToPeriodEnd(t *testing.T) {
	src := stubSource{
		exercice: exercice2025(),
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.November, 3), Journal: "OD", PieceRef: "OD-00001",
				AccNum: "681000", AccLib: "Dotations", Label: "Amortissement", DebitMinor: 700},
			{ID: 2, Date: day(2025, time.November, 3), Journal: "OD", PieceRef: "OD-00001",
				AccNum: "281000", AccLib: "Amortissements", Label: "Amortissement", CreditMinor: 700,
				PieceDate: dayPtr(2025, time.November, 3)},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	flat, _ := readArchive(t, ar)
	lines := flatLines(flat)[1:]
	var sawDefault, sawExplicit bool
	for _, line := range lines {
		cols := strings.Split(line, "|")
		switch cols[9] {
		case "20251231":
			sawDefault = true
		case "20251103":
			sawExplicit = true
		}
	}
	require.True(t, sawDefault, "missing piece date must default to the period end")
	require.True(t, sawExplicit, "explicit piece date must pass through")
}

func TestExportSanitizesAndWarns(t *testing.T) {
	src := stubSource{
		exercice: exercice2025(),
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.April, 1), Journal: "BQ", PieceRef: "",
				AccNum: "x512", AccLib: "Banque courante", Label: "vir | salaires\r\n", DebitMinor: 100},
			{ID: 2, Date: day(2025, time.April, 1), Journal: "BQ", PieceRef: "BQ-00002",
				AccNum: "411000", AccLib: "Clients", Label: "ok", CreditMinor: 100},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	flat, desc := readArchive(t, ar)

	var contaminated string
	for _, line := range flatLines(flat)[1:] {
		cols := strings.Split(line, "|")
		require.Len(t, cols, 18, "stray separator broke the row")
		if cols[4] == "x512" {
			contaminated = line
			require.Equal(t, "NC", cols[8], "blank piece ref must default to NC")
			require.Equal(t, "Banque courante", cols[5])
			require.Equal(t, "vir   salaires", cols[10])
		}
	}
	require.NotEmpty(t, contaminated)

	require.Contains(t, desc, "CompteNum non conforme")
	require.Contains(t, desc, "PieceRef absente")
	require.Contains(t, desc, "'|' retire de EcritureLib")
	// two unbalanced pieces plus itemization plus the exercice-level line
	require.Contains(t, desc, "piece(s) desequilibree(s)")
}

func TestExportCurrencyRules(t *testing.T) {
	amount := money.Minor(4200)
	src := stubSource{
		exercice: exercice2025(),
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.July, 1), Journal: "BQ", PieceRef: "BQ-00001",
				AccNum: "512000", AccLib: "Banque", Label: "usd in", DebitMinor: 3900,
				Devise: "usd", AmountDeviseMinor: &amount},
			{ID: 2, Date: day(2025, time.July, 1), Journal: "BQ", PieceRef: "BQ-00001",
				AccNum: "411000", AccLib: "Clients", Label: "usd out", CreditMinor: 3900,
				Devise: "USD"},
			{ID: 3, Date: day(2025, time.July, 2), Journal: "BQ", PieceRef: "BQ-00002",
				AccNum: "512000", AccLib: "Banque", Label: "eur", DebitMinor: 100, Devise: "eur"},
			{ID: 4, Date: day(2025, time.July, 2), Journal: "BQ", PieceRef: "BQ-00002",
				AccNum: "411000", AccLib: "Clients", Label: "eur", CreditMinor: 100},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	flat, desc := readArchive(t, ar)

	for _, line := range flatLines(flat)[1:] {
		cols := strings.Split(line, "|")
		switch cols[10] {
		case "usd in":
			require.Equal(t, "42,00", cols[16])
			require.Equal(t, "USD", cols[17])
		case "usd out":
			// non-local currency without an amount blanks both columns
			require.Equal(t, "", cols[16])
			require.Equal(t, "", cols[17])
		case "eur":
			require.Equal(t, "", cols[16])
			require.Equal(t, "", cols[17])
		}
	}
	require.Contains(t, desc, "montant devise manquant")
}

func TestAssignNumbersGlobalOrder(t *testing.T) {
	records := []Record{
		{JournalCode: "VE", PieceRef: "VE-00002", CompteNum: "411000", EcritureDate: "20250310", sortValid: "20250310"},
		{JournalCode: "AN", PieceRef: "AN-00001", CompteNum: "411000", EcritureDate: "20250101", sortValid: "20250101"},
		{JournalCode: "VE", PieceRef: "VE-00002", CompteNum: "706000", EcritureDate: "20250310", sortValid: "20250310"},
		{JournalCode: "BQ", PieceRef: "BQ-00001", CompteNum: "512000", EcritureDate: "20250205", sortValid: "20250205"},
	}
	AssignNumbers(records)

	require.Equal(t, 1, records[0].EcritureNum)
	require.Equal(t, "AN", records[0].JournalCode)
	require.Equal(t, 2, records[1].EcritureNum)
	require.Equal(t, "BQ", records[1].JournalCode)
	// lines of the same piece share one number and sort by account
	require.Equal(t, 3, records[2].EcritureNum)
	require.Equal(t, "411000", records[2].CompteNum)
	require.Equal(t, 3, records[3].EcritureNum)
	require.Equal(t, "706000", records[3].CompteNum)
}

func TestAssignNumbersSentinelForMissingDates(t *testing.T) {
	records := []Record{
		{JournalCode: "OD", PieceRef: "OD-00009", CompteNum: "471000"},
		{JournalCode: "VE", PieceRef: "VE-00001", CompteNum: "411000", sortValid: "20250101"},
	}
	AssignNumbers(records)
	require.Equal(t, 1, records[0].EcritureNum)
	require.Equal(t, "VE", records[0].JournalCode)
	require.Equal(t, 2, records[1].EcritureNum)
}

func TestExportEmptyPeriod(t *testing.T) {
	src := stubSource{exercice: exercice2025()}
	_, err := NewExporter(src).Export(context.Background(), 1)
	require.ErrorIs(t, err, ErrEmptyPeriod)
}

func TestExportUnknownExercice(t *testing.T) {
	src := stubSource{exercice: exercice2025()}
	_, err := NewExporter(src).Export(context.Background(), 99)
	require.ErrorIs(t, err, ledger.ErrExerciceNotFound)
}

func TestExportWarningListCapped(t *testing.T) {
	exc := exercice2025()
	src := stubSource{exercice: exc}
	for i := 0; i < warningListCap+25; i++ {
		src.entries = append(src.entries, RawEntry{
			ID:   int64(i + 1),
			Date: day(2025, time.May, 1),
			Journal: "OD", PieceRef: fmt.Sprintf("OD-%05d", i+1),
			AccNum: "471000", AccLib: "Attente", Label: "seul", DebitMinor: 10,
		})
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	_, desc := readArchive(t, ar)
	require.Contains(t, desc, "(25 autres non listees)")
	require.Equal(t, warningListCap, strings.Count(desc, "  - OD/"))
}

func TestExportProceedsDespiteImbalance(t *testing.T) {
	src := stubSource{
		exercice: exercice2025(),
		entries: []RawEntry{
			{ID: 1, Date: day(2025, time.May, 1), Journal: "VE", PieceRef: "VE-00001",
				AccNum: "411000", AccLib: "Clients", Label: "seul", DebitMinor: 999},
		},
	}
	ar, err := NewExporter(src).Export(context.Background(), 1)
	require.NoError(t, err)
	_, desc := readArchive(t, ar)
	require.Contains(t, desc, "Desequilibre exercice")
	require.Positive(t, ar.Warnings)
}

var errDB = errors.New("db down")

type failingSource struct{ stubSource }

func (failingSource) ListExportEntries(context.Context, int64) ([]RawEntry, error) {
	return nil, errDB
}

func TestExportPropagatesSourceError(t *testing.T) {
	src := failingSource{stubSource{exercice: exercice2025()}}
	_, err := NewExporter(src).Export(context.Background(), 1)
	require.ErrorIs(t, err, errDB)
}
