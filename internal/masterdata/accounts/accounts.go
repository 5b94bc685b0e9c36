// Package accounts manages the chart of accounts of one client.
package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Account is one chart row.
type Account struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	AccNum   string `json:"accnum"`
	AccLib   string `json:"acclib"`
}

var (
	// ErrNotFound indicates an unknown account.
	ErrNotFound = errors.New("accounts: not found")
	// ErrDuplicate indicates an (client, accnum) collision.
	ErrDuplicate = errors.New("accounts: accnum already exists")
	// ErrInUse indicates postings still reference the account.
	ErrInUse = errors.New("accounts: account has postings")
)

// Repository persists accounts.
type Repository interface {
	List(ctx context.Context, clientID int64, search string) ([]Account, error)
	Suggest(ctx context.Context, clientID int64, prefix string, limit int) ([]Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Rename(ctx context.Context, id int64, accLib string) error
	Delete(ctx context.Context, id int64) error
	EntryCount(ctx context.Context, id int64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, clientID int64, search string) ([]Account, error) {
	query := `SELECT id, client_id, accnum, acclib FROM accounts WHERE client_id = $1`
	args := []any{clientID}
	if search != "" {
		query += ` AND (accnum ILIKE $2 OR acclib ILIKE $2)`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY accnum`
	return r.scanList(ctx, query, args...)
}

// Suggest serves the account picker: prefix match on the number, bounded.
func (r *repository) Suggest(ctx context.Context, clientID int64, prefix string, limit int) ([]Account, error) {
	if limit <= 0 || limit > 50 {
		limit = 15
	}
	return r.scanList(ctx, `SELECT id, client_id, accnum, acclib FROM accounts
WHERE client_id = $1 AND accnum LIKE $2 ORDER BY accnum LIMIT $3`, clientID, prefix+"%", limit)
}

func (r *repository) scanList(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.ClientID, &a.AccNum, &a.AccLib); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, a Account) (Account, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (client_id, accnum, acclib) VALUES ($1,$2,$3) RETURNING id`,
		a.ClientID, a.AccNum, a.AccLib).Scan(&a.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Account{}, ErrDuplicate
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Rename(ctx context.Context, id int64, accLib string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET acclib = $2 WHERE id = $1`, id, accLib)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) EntryCount(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE account_id = $1`, id).Scan(&n)
	return n, err
}
