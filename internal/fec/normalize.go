// Package fec builds the pipe-delimited fiscal export archive for one
// exercice.
package fec

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pacioli-erp/pacioli/internal/money"
)

const (
	pipe     = "|"
	nbsp     = " "
	lineSep  = "\n"
	sentinel = "99999999"
)

// Fields is the mandated column list, in order.
var Fields = []string{
	"JournalCode", "JournalLib", "EcritureNum", "EcritureDate",
	"CompteNum", "CompteLib", "CompAuxNum", "CompAuxLib",
	"PieceRef", "PieceDate", "EcritureLib", "Debit", "Credit",
	"EcritureLet", "DateLet", "ValidDate", "Montantdevise", "Idevise",
}

// RawEntry is one stored posting joined with its account and journal labels,
// the normalizer's input.
type RawEntry struct {
	ID                int64
	Date              time.Time
	Journal           string
	JournalLib        string
	PieceRef          string
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

// Record is a normalized posting before and after numbering. EcritureNum is
// zero until AssignNumbers runs.
type Record struct {
	JournalCode   string
	JournalLib    string
	EcritureNum   int
	EcritureDate  string
	CompteNum     string
	CompteLib     string
	PieceRef      string
	PieceDate     string
	EcritureLib   string
	Debit         string
	Credit        string
	ValidDate     string
	Montantdevise string
	Idevise       string

	// sortValid is ValidDate falling back to EcritureDate, the group
	// ordering input of the global numbering pass.
	sortValid string
}

func yyyymmdd(d time.Time) string {
	return d.Format("20060102")
}

func yyyymmddPtr(d *time.Time) string {
	if d == nil {
		return ""
	}
	return yyyymmdd(*d)
}

var textCleaner = strings.NewReplacer(nbsp, " ", pipe, " ", "\r", " ", "\n", " ")

func sanitize(v string) string {
	return strings.TrimSpace(textCleaner.Replace(v))
}

func isLocalCurrency(dev string) bool {
	switch strings.ToUpper(strings.TrimSpace(dev)) {
	case "", "EUR", "EURO":
		return true
	}
	return false
}

var accnumOK = regexp.MustCompile(`^\d{3}`)

// Normalizer applies the per-posting field rules for one exercice and
// accumulates non-blocking warnings.
type Normalizer struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Warnings    []string
}

func (n *Normalizer) warnf(format string, args ...any) {
	n.Warnings = append(n.Warnings, fmt.Sprintf(format, args...))
}

// Normalize produces one export record from a stored posting.
func (n *Normalizer) Normalize(e RawEntry) Record {
	var ecrDate time.Time
	var pieceDate time.Time
	var validDate string

	// Opening balance postings are pinned to the period start whatever
	// their stored dates say. Adjustment postings default their piece date
	// to the period end.
	switch e.Journal {
	case "AN":
		ecrDate = n.PeriodStart
		pieceDate = n.PeriodStart
		validDate = yyyymmdd(n.PeriodStart)
	default:
		ecrDate = e.Date
		if ecrDate.IsZero() {
			ecrDate = n.PeriodEnd
		}
		switch {
		case e.PieceDate != nil:
			pieceDate = *e.PieceDate
		case e.Journal == "OD":
			pieceDate = n.PeriodEnd
		default:
			pieceDate = ecrDate
		}
		validDate = yyyymmddPtr(e.ValidDate)
	}

	journalLib := e.JournalLib
	if journalLib == "" {
		journalLib = e.Journal
	}
	pieceRef := e.PieceRef
	if strings.TrimSpace(pieceRef) == "" {
		pieceRef = "NC"
	}
	label := e.Label
	if label == "" {
		label = "NC"
	}

	rec := Record{
		JournalCode:  sanitize(e.Journal),
		JournalLib:   sanitize(journalLib),
		EcritureDate: yyyymmdd(ecrDate),
		CompteNum:    sanitize(e.AccNum),
		CompteLib:    sanitize(e.AccLib),
		PieceRef:     sanitize(pieceRef),
		PieceDate:    yyyymmdd(pieceDate),
		EcritureLib:  sanitize(label),
		Debit:        money.Format(e.DebitMinor),
		Credit:       money.Format(e.CreditMinor),
		ValidDate:    validDate,
	}

	if !isLocalCurrency(e.Devise) {
		dev := strings.ToUpper(strings.TrimSpace(e.Devise))
		if e.AmountDeviseMinor == nil {
			n.warnf("i_devise=%s mais montant devise manquant pour piece %s/%s", dev, e.Journal, e.PieceRef)
		} else {
			rec.Idevise = dev
			rec.Montantdevise = money.Format(*e.AmountDeviseMinor)
		}
	}

	if !accnumOK.MatchString(rec.CompteNum) {
		n.warnf("CompteNum non conforme (>=3 chiffres) pour piece %s/%s: %s", e.Journal, rec.PieceRef, rec.CompteNum)
	}
	if strings.Contains(label, pipe) {
		n.warnf("'|' retire de EcritureLib pour %s/%s", e.Journal, rec.PieceRef)
	}
	if rec.PieceRef == "NC" && strings.TrimSpace(e.PieceRef) == "" {
		n.warnf("PieceRef absente pour %s; %s; %s; %s; %s; %s",
			e.Journal, rec.CompteNum, rec.CompteLib, rec.EcritureLib, rec.Debit, rec.Credit)
	}

	rec.sortValid = rec.ValidDate
	if rec.sortValid == "" {
		rec.sortValid = rec.EcritureDate
	}
	return rec
}
