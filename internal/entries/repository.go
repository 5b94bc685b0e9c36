package entries

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacioli-erp/pacioli/internal/ledger"
)

// Repository reads entry listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List fetches up to PageSize+1 rows in scan order; the extra row is the
// service's look-ahead probe.
func (r *Repository) List(ctx context.Context, q Query) ([]ledger.Entry, error) {
	sql, args, err := buildListSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		err := rows.Scan(&e.ID, &e.ClientID, &e.ExerciceID, &e.Date, &e.Journal, &e.PieceRef, &e.AccountID,
			&e.AccNum, &e.AccLib, &e.Label, &e.DebitMinor, &e.CreditMinor, &e.PieceDate, &e.ValidDate,
			&e.AmountDeviseMinor, &e.Devise)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
