// Package journals manages posting categories.
package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal is one posting category of a client.
type Journal struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Code     string `json:"jnl"`
	Label    string `json:"jnl_lib"`
}

var (
	// ErrNotFound indicates an unknown journal.
	ErrNotFound = errors.New("journals: not found")
	// ErrDuplicate indicates a (client, code) collision.
	ErrDuplicate = errors.New("journals: code already exists")
)

// Repository persists journals.
type Repository interface {
	List(ctx context.Context, clientID int64) ([]Journal, error)
	Create(ctx context.Context, j Journal) (Journal, error)
	Rename(ctx context.Context, id int64, label string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, clientID int64) ([]Journal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, code, label FROM journals WHERE client_id = $1 ORDER BY code`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		var j Journal
		if err := rows.Scan(&j.ID, &j.ClientID, &j.Code, &j.Label); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, j Journal) (Journal, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO journals (client_id, code, label) VALUES ($1,$2,$3) RETURNING id`,
		j.ClientID, j.Code, j.Label).Scan(&j.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Journal{}, ErrDuplicate
	}
	if err != nil {
		return Journal{}, err
	}
	return j, nil
}

func (r *repository) Rename(ctx context.Context, id int64, label string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE journals SET label = $2 WHERE id = $1`, id, label)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
