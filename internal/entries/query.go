// Package entries serves filtered, keyset-paginated listings of ledger lines.
package entries

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/money"
	"github.com/pacioli-erp/pacioli/internal/shared"
)

// Filters narrows a listing. Text filters are case-insensitive substring
// matches; the date and amount bounds are inclusive. The amount bounds apply
// to each line's signed amount, debit minus credit.
type Filters struct {
	ClientID   int64
	ExerciceID int64
	Journal    string
	PieceRef   string
	Account    string
	Label      string
	DateFrom   *time.Time
	DateTo     *time.Time
	MinAmount  *money.Minor
	MaxAmount  *money.Minor
}

// Fingerprint folds the filter values into a digest for cursor validation.
func (f Filters) Fingerprint() string {
	fmtDate := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	fmtAmount := func(m *money.Minor) string {
		if m == nil {
			return ""
		}
		return strconv.FormatInt(int64(*m), 10)
	}
	return shared.Fingerprint(
		strconv.FormatInt(f.ClientID, 10),
		strconv.FormatInt(f.ExerciceID, 10),
		f.Journal, f.PieceRef, f.Account, f.Label,
		fmtDate(f.DateFrom), fmtDate(f.DateTo),
		fmtAmount(f.MinAmount), fmtAmount(f.MaxAmount),
	)
}

// sortColumns maps the public sort keys to their SQL expressions. Every key
// sorts with e.id as a tiebreaker so the keyset tuple is strictly monotonic.
var sortColumns = map[string]string{
	"date":      "e.date",
	"id":        "e.id",
	"jnl":       "e.jnl",
	"piece_ref": "e.piece_ref",
	"accnum":    "a.accnum",
	"debit":     "e.debit_minor",
	"credit":    "e.credit_minor",
}

// SortAllowed reports the whitelist consumed by shared.ParseSort.
var SortAllowed = func() map[string]bool {
	m := make(map[string]bool, len(sortColumns))
	for k := range sortColumns {
		m[k] = true
	}
	return m
}()

// DefaultSort is applied when the requested spec names no known field.
const DefaultSort = "date"

// Query is a fully resolved listing request.
type Query struct {
	Filters   Filters
	SortField string
	Desc      bool
	PageSize  int
	After     *shared.Cursor
	Before    *shared.Cursor
}

// encodeSortValue renders an entry's sort column as the cursor's string
// payload.
func encodeSortValue(e ledger.Entry, field string) string {
	switch field {
	case "date":
		return e.Date.Format("2006-01-02")
	case "id":
		return strconv.FormatInt(e.ID, 10)
	case "jnl":
		return e.Journal
	case "piece_ref":
		return e.PieceRef
	case "accnum":
		return e.AccNum
	case "debit":
		return strconv.FormatInt(int64(e.DebitMinor), 10)
	case "credit":
		return strconv.FormatInt(int64(e.CreditMinor), 10)
	}
	return ""
}

// castSortValue converts the cursor's string payload into the SQL argument
// for the tuple comparison.
func castSortValue(field, raw string) (any, error) {
	switch field {
	case "date":
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor value", shared.ErrInvalidPagination)
		}
		return t, nil
	case "id", "debit", "credit":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor value", shared.ErrInvalidPagination)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// buildListSQL renders the listing query. The keyset predicate compares the
// (sort column, id) tuple against the cursor position; a backward scan flips
// both the comparison and the ORDER BY, and the caller reverses the rows.
func buildListSQL(q Query) (string, []any, error) {
	col, ok := sortColumns[q.SortField]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown sort field", shared.ErrInvalidPagination)
	}

	var sb strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString(`SELECT e.id, e.client_id, e.exercice_id, e.date, e.jnl, e.piece_ref, e.account_id,
a.accnum, a.acclib, e.lib, e.debit_minor, e.credit_minor, e.piece_date, e.valid_date,
e.amount_devise_minor, e.devise
FROM entries e JOIN accounts a ON a.id = e.account_id
WHERE e.client_id = ` + arg(q.Filters.ClientID) + ` AND e.exercice_id = ` + arg(q.Filters.ExerciceID))

	if q.Filters.Journal != "" {
		sb.WriteString(" AND e.jnl = " + arg(q.Filters.Journal))
	}
	if q.Filters.PieceRef != "" {
		sb.WriteString(" AND e.piece_ref ILIKE " + arg("%"+q.Filters.PieceRef+"%"))
	}
	if q.Filters.Account != "" {
		sb.WriteString(" AND (a.accnum ILIKE " + arg(q.Filters.Account+"%") + " OR a.acclib ILIKE " + arg("%"+q.Filters.Account+"%") + ")")
	}
	if q.Filters.Label != "" {
		sb.WriteString(" AND e.lib ILIKE " + arg("%"+q.Filters.Label+"%"))
	}
	if q.Filters.DateFrom != nil {
		sb.WriteString(" AND e.date >= " + arg(*q.Filters.DateFrom))
	}
	if q.Filters.DateTo != nil {
		sb.WriteString(" AND e.date <= " + arg(*q.Filters.DateTo))
	}
	if q.Filters.MinAmount != nil {
		sb.WriteString(" AND (e.debit_minor - e.credit_minor) >= " + arg(int64(*q.Filters.MinAmount)))
	}
	if q.Filters.MaxAmount != nil {
		sb.WriteString(" AND (e.debit_minor - e.credit_minor) <= " + arg(int64(*q.Filters.MaxAmount)))
	}

	cursor := q.After
	backward := false
	if cursor == nil && q.Before != nil {
		cursor = q.Before
		backward = true
	}
	// Forward direction follows the sort; the cursor comparison points past
	// the cursor row in scan order.
	scanDesc := q.Desc != backward
	if cursor != nil {
		val, err := castSortValue(q.SortField, cursor.LastValue)
		if err != nil {
			return "", nil, err
		}
		op := ">"
		if scanDesc {
			op = "<"
		}
		sb.WriteString(" AND (" + col + ", e.id) " + op + " (" + arg(val) + ", " + arg(cursor.LastID) + ")")
	}

	dir := "ASC"
	if scanDesc {
		dir = "DESC"
	}
	sb.WriteString(" ORDER BY " + col + " " + dir + ", e.id " + dir)
	sb.WriteString(" LIMIT " + arg(q.PageSize+1))
	return sb.String(), args, nil
}

// row rendering shared by service and handler tests

type entryRow struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Journal   string `json:"jnl"`
	PieceRef  string `json:"piece_ref"`
	AccNum    string `json:"accnum"`
	AccLib    string `json:"acclib"`
	Label     string `json:"lib"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	PieceDate string `json:"piece_date,omitempty"`
	ValidDate string `json:"valid_date,omitempty"`
}

func toRow(e ledger.Entry) entryRow {
	r := entryRow{
		ID:       e.ID,
		Date:     e.Date.Format("2006-01-02"),
		Journal:  e.Journal,
		PieceRef: e.PieceRef,
		AccNum:   e.AccNum,
		AccLib:   e.AccLib,
		Label:    e.Label,
		Debit:    money.Format(e.DebitMinor),
		Credit:   money.Format(e.CreditMinor),
	}
	if e.PieceDate != nil {
		r.PieceDate = e.PieceDate.Format("2006-01-02")
	}
	if e.ValidDate != nil {
		r.ValidDate = e.ValidDate.Format("2006-01-02")
	}
	return r
}
