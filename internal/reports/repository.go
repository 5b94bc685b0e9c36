package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the report aggregations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) TrialBalance(ctx context.Context, exerciceID int64) ([]TrialBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.accnum, a.acclib, COALESCE(SUM(e.debit_minor), 0), COALESCE(SUM(e.credit_minor), 0)
FROM entries e JOIN accounts a ON a.id = e.account_id
WHERE e.exercice_id = $1
GROUP BY a.accnum, a.acclib
ORDER BY a.accnum`, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccNum, &row.AccLib, &row.DebitMinor, &row.CreditMinor); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) Centralisateur(ctx context.Context, exerciceID int64) ([]CentralisateurCell, error) {
	rows, err := r.pool.Query(ctx, `SELECT jnl, to_char(date, 'YYYY-MM'), COUNT(*), COALESCE(SUM(debit_minor), 0), COALESCE(SUM(credit_minor), 0)
FROM entries WHERE exercice_id = $1
GROUP BY jnl, to_char(date, 'YYYY-MM')
ORDER BY jnl, to_char(date, 'YYYY-MM')`, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CentralisateurCell
	for rows.Next() {
		var c CentralisateurCell
		if err := rows.Scan(&c.Journal, &c.Month, &c.Count, &c.DebitMinor, &c.CreditMinor); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExercicePeriod returns the date range of one exercice.
func (r *Repository) ExercicePeriod(ctx context.Context, exerciceID int64) (time.Time, time.Time, error) {
	var start, end time.Time
	err := r.pool.QueryRow(ctx, `SELECT date_start, date_end FROM exercices WHERE id = $1`, exerciceID).Scan(&start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return start, end, ErrExerciceNotFound
	}
	return start, end, err
}

// DeleteJournalMonth removes every entry of one journal inside [from, to].
func (r *Repository) DeleteJournalMonth(ctx context.Context, exerciceID int64, journal string, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE exercice_id = $1 AND jnl = $2 AND date >= $3 AND date <= $4`,
		exerciceID, journal, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnbalancedPieces pages imbalances in natural key order.
func (r *Repository) UnbalancedPieces(ctx context.Context, exerciceID int64, limit, offset int) ([]PieceRow, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (
SELECT 1 FROM entries WHERE exercice_id = $1
GROUP BY jnl, piece_ref HAVING SUM(debit_minor) <> SUM(credit_minor)) q`, exerciceID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT jnl, piece_ref, COUNT(*), COALESCE(SUM(debit_minor), 0), COALESCE(SUM(credit_minor), 0)
FROM entries WHERE exercice_id = $1
GROUP BY jnl, piece_ref
HAVING SUM(debit_minor) <> SUM(credit_minor)
ORDER BY jnl, piece_ref
LIMIT $2 OFFSET $3`, exerciceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PieceRow
	for rows.Next() {
		var p PieceRow
		if err := rows.Scan(&p.Journal, &p.PieceRef, &p.Count, &p.DebitMinor, &p.CreditMinor); err != nil {
			return nil, 0, err
		}
		p.DiffMinor = p.DebitMinor - p.CreditMinor
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) UnbalancedJournals(ctx context.Context, exerciceID int64) ([]JournalRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT jnl, COUNT(*), COALESCE(SUM(debit_minor), 0), COALESCE(SUM(credit_minor), 0)
FROM entries WHERE exercice_id = $1
GROUP BY jnl
HAVING SUM(debit_minor) <> SUM(credit_minor)
ORDER BY ABS(SUM(debit_minor) - SUM(credit_minor)) DESC, jnl`, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalRow
	for rows.Next() {
		var j JournalRow
		if err := rows.Scan(&j.Journal, &j.Count, &j.DebitMinor, &j.CreditMinor); err != nil {
			return nil, err
		}
		j.DiffMinor = j.DebitMinor - j.CreditMinor
		out = append(out, j)
	}
	return out, rows.Err()
}
