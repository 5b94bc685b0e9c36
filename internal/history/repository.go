package history

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists history events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, created_at, client_id, exercice_id, description, added, modified, deleted`

func (r *Repository) List(ctx context.Context, exerciceID int64, desc bool) ([]Event, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM history_events WHERE exercice_id = $1 ORDER BY created_at `+order+`, id `+order, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		err := rows.Scan(&ev.ID, &ev.CreatedAt, &ev.ClientID, &ev.ExerciceID, &ev.Description,
			&ev.Counts.Added, &ev.Counts.Modified, &ev.Counts.Deleted)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDescription(ctx context.Context, id int64, description string) (Event, error) {
	var ev Event
	err := r.pool.QueryRow(ctx, `UPDATE history_events SET description = $2 WHERE id = $1 RETURNING `+eventColumns, id, description).
		Scan(&ev.ID, &ev.CreatedAt, &ev.ClientID, &ev.ExerciceID, &ev.Description,
			&ev.Counts.Added, &ev.Counts.Modified, &ev.Counts.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}
