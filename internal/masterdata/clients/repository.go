package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists clients.
type Repository interface {
	List(ctx context.Context, search string) ([]Client, error)
	Get(ctx context.Context, id int64) (Client, error)
	Create(ctx context.Context, c Client) (Client, error)
	Update(ctx context.Context, id int64, c Client) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, search string) ([]Client, error) {
	query := `SELECT id, name, COALESCE(siren, '') FROM clients`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1 OR siren ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Siren); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(siren, '') FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Siren)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Client) (Client, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO clients (name, siren) VALUES ($1, $2) RETURNING id`, c.Name, c.Siren).
		Scan(&c.ID)
	if isUniqueViolation(err) {
		return Client{}, ErrDuplicateName
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, id int64, c Client) error {
	tag, err := r.pool.Exec(ctx, `UPDATE clients SET name = $2, siren = $3 WHERE id = $1`, id, c.Name, c.Siren)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
