// Package exercices manages fiscal periods.
package exercices

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status enumerates period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Exercice is one fiscal period of a client.
type Exercice struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Label     string    `json:"label"`
	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
	Status    Status    `json:"status"`
}

var (
	// ErrNotFound indicates an unknown exercice id.
	ErrNotFound = errors.New("exercices: not found")
	// ErrInvalidRange indicates start after end.
	ErrInvalidRange = errors.New("exercices: date_start after date_end")
	// ErrOverlap indicates a period overlapping an existing one for the client.
	ErrOverlap = errors.New("exercices: period overlaps an existing exercice")
)

// Repository persists exercices.
type Repository interface {
	ListByClient(ctx context.Context, clientID int64) ([]Exercice, error)
	Get(ctx context.Context, id int64) (Exercice, error)
	Create(ctx context.Context, e Exercice) (Exercice, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	Overlapping(ctx context.Context, clientID int64, start, end time.Time) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, client_id, label, date_start, date_end, status`

func (r *repository) ListByClient(ctx context.Context, clientID int64) ([]Exercice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM exercices WHERE client_id = $1 ORDER BY date_start`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exercice
	for rows.Next() {
		var e Exercice
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Label, &e.DateStart, &e.DateEnd, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Exercice, error) {
	var e Exercice
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM exercices WHERE id = $1`, id).
		Scan(&e.ID, &e.ClientID, &e.Label, &e.DateStart, &e.DateEnd, &e.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exercice{}, ErrNotFound
	}
	return e, err
}

func (r *repository) Create(ctx context.Context, e Exercice) (Exercice, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO exercices (client_id, label, date_start, date_end, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, e.ClientID, e.Label, e.DateStart, e.DateEnd, e.Status).Scan(&e.ID)
	if err != nil {
		return Exercice{}, err
	}
	return e, nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exercices SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Overlapping(ctx context.Context, clientID int64, start, end time.Time) (bool, error) {
	var overlap bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM exercices WHERE client_id = $1 AND date_start <= $3 AND date_end >= $2)`,
		clientID, start, end).Scan(&overlap)
	return overlap, err
}
