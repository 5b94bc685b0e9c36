package fec

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacioli-erp/pacioli/internal/ledger"
)

// Repository loads export inputs from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetExercice(ctx context.Context, id int64) (ledger.Exercice, error) {
	var exc ledger.Exercice
	err := r.pool.QueryRow(ctx, `SELECT id, client_id, label, date_start, date_end, status FROM exercices WHERE id = $1`, id).
		Scan(&exc.ID, &exc.ClientID, &exc.Label, &exc.DateStart, &exc.DateEnd, &exc.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Exercice{}, ledger.ErrExerciceNotFound
	}
	if err != nil {
		return ledger.Exercice{}, err
	}
	return exc, nil
}

func (r *Repository) GetClientName(ctx context.Context, clientID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM clients WHERE id = $1`, clientID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// ListExportEntries loads every posting of the exercice joined with account
// and journal labels, in stable id order.
func (r *Repository) ListExportEntries(ctx context.Context, exerciceID int64) ([]RawEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.date, e.jnl, COALESCE(j.label, ''), e.piece_ref,
a.accnum, a.acclib, e.lib, e.debit_minor, e.credit_minor, e.piece_date, e.valid_date,
e.amount_devise_minor, e.devise
FROM entries e
JOIN accounts a ON a.id = e.account_id
LEFT JOIN journals j ON j.client_id = e.client_id AND j.code = e.jnl
WHERE e.exercice_id = $1
ORDER BY e.id`, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawEntry
	for rows.Next() {
		var e RawEntry
		err := rows.Scan(&e.ID, &e.Date, &e.Journal, &e.JournalLib, &e.PieceRef,
			&e.AccNum, &e.AccLib, &e.Label, &e.DebitMinor, &e.CreditMinor, &e.PieceDate, &e.ValidDate,
			&e.AmountDeviseMinor, &e.Devise)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
