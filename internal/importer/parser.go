// Package importer loads ledger lines from accountant-supplied CSV files.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/pacioli-erp/pacioli/internal/money"
)

// ErrEmptyFile indicates an upload with no content.
var ErrEmptyFile = errors.New("importer: empty file")

// ParseError reports an unusable file or line. Line is zero for file-level
// problems.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("importer: ligne %d: %s", e.Line, e.Msg)
	}
	return "importer: " + e.Msg
}

func parsef(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Line is one parsed file row.
type Line struct {
	Journal     string
	AccNum      string
	AccLib      string
	Date        time.Time
	Label       string
	PieceRef    string
	DebitMinor  money.Minor
	CreditMinor money.Minor
}

var requiredHeaders = []string{"jnl", "accnum", "acclib", "date", "lib", "pieceRef", "debit", "credit"}

// decodeText decodes the upload as UTF-8, falling back to Latin-1 for files
// saved by older spreadsheet tools.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// sniffDelimiter inspects the header line. French exports use semicolons;
// comma and tab are accepted too.
func sniffDelimiter(header string) rune {
	for _, d := range []rune{';', ',', '\t'} {
		if strings.ContainsRune(header, d) {
			return d
		}
	}
	return ';'
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return time.Parse("02/01/2006", s)
	}
	return time.Parse("2006-01-02", s)
}

// Parse reads and validates the file shape: required headers, one-sided
// non-negative amounts, parseable dates. Batch-level rules (balance, period)
// are the service's concern.
func Parse(raw []byte) ([]Line, error) {
	text := decodeText(raw)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	headerLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		headerLine = text[:i]
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(headerLine)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, parsef(0, "entete illisible: %v", err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, parsef(0, "colonnes manquantes: %s", strings.Join(missing, ", "))
	}

	var lines []Line
	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parsef(lineNo, "ligne illisible: %v", err)
		}
		field := func(name string) string {
			i := index[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		var line Line
		line.Journal = field("jnl")
		line.AccNum = field("accnum")
		line.AccLib = field("acclib")
		if line.AccLib == "" {
			line.AccLib = line.AccNum
		}
		line.Label = field("lib")
		line.PieceRef = field("pieceRef")
		if line.Journal == "" || line.AccNum == "" {
			return nil, parsef(lineNo, "jnl et accnum obligatoires")
		}
		if line.Date, err = parseDate(field("date")); err != nil {
			return nil, parsef(lineNo, "date invalide %q", field("date"))
		}
		if line.DebitMinor, err = parseAmount(field("debit")); err != nil {
			return nil, parsef(lineNo, "debit invalide %q", field("debit"))
		}
		if line.CreditMinor, err = parseAmount(field("credit")); err != nil {
			return nil, parsef(lineNo, "credit invalide %q", field("credit"))
		}
		if (line.DebitMinor > 0 && line.CreditMinor > 0) || (line.DebitMinor == 0 && line.CreditMinor == 0) {
			return nil, parsef(lineNo, "chaque ligne doit avoir soit un debit soit un credit (exclusif)")
		}
		if line.DebitMinor < 0 || line.CreditMinor < 0 {
			return nil, parsef(lineNo, "montant negatif")
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}
	return lines, nil
}

func parseAmount(s string) (money.Minor, error) {
	if s == "" {
		return 0, nil
	}
	return money.Parse(s)
}
