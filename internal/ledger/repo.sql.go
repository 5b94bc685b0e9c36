package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/platform/db"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetExercice(ctx context.Context, id int64) (Exercice, error)
	ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error)
	InsertEntry(ctx context.Context, e Entry) (int64, error)
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	DeletePiece(ctx context.Context, exerciceID int64, journal, pieceRef string) error
	UpsertAccount(ctx context.Context, clientID int64, accNum, accLib string) (Account, error)
	UpsertJournal(ctx context.Context, clientID int64, code, label string) (Journal, error)
	LockJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error)
	SetJournalSequence(ctx context.Context, exerciceID int64, journal string, n int64) error
	PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error)
	ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error)
	BalanceSheetBalances(ctx context.Context, exerciceID int64) ([]AccountBalance, error)
	InsertHistoryEvent(ctx context.Context, ev history.Event) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const exerciceColumns = `id, client_id, label, date_start, date_end, status`

func scanExercice(row pgx.Row) (Exercice, error) {
	var exc Exercice
	err := row.Scan(&exc.ID, &exc.ClientID, &exc.Label, &exc.DateStart, &exc.DateEnd, &exc.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exercice{}, ErrExerciceNotFound
	}
	if err != nil {
		return Exercice{}, err
	}
	return exc, nil
}

func (r *Repository) GetExercice(ctx context.Context, id int64) (Exercice, error) {
	return scanExercice(r.pool.QueryRow(ctx, `SELECT `+exerciceColumns+` FROM exercices WHERE id = $1`, id))
}

func (r *txRepository) GetExercice(ctx context.Context, id int64) (Exercice, error) {
	return scanExercice(r.tx.QueryRow(ctx, `SELECT `+exerciceColumns+` FROM exercices WHERE id = $1`, id))
}

const entryColumns = `e.id, e.client_id, e.exercice_id, e.date, e.jnl, e.piece_ref, e.account_id,
a.accnum, a.acclib, e.lib, e.debit_minor, e.credit_minor, e.piece_date, e.valid_date,
e.amount_devise_minor, e.devise`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.ClientID, &e.ExerciceID, &e.Date, &e.Journal, &e.PieceRef, &e.AccountID,
			&e.AccNum, &e.AccLib, &e.Label, &e.DebitMinor, &e.CreditMinor, &e.PieceDate, &e.ValidDate,
			&e.AmountDeviseMinor, &e.Devise)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const pieceEntriesSQL = `SELECT ` + entryColumns + `
FROM entries e JOIN accounts a ON a.id = e.account_id
WHERE e.client_id = $1 AND e.exercice_id = $2 AND e.jnl = $3 AND e.piece_ref = $4
ORDER BY e.date, e.id`

func (r *Repository) ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, pieceEntriesSQL, clientID, exerciceID, journal, pieceRef)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) ListPieceEntries(ctx context.Context, clientID, exerciceID int64, journal, pieceRef string) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, pieceEntriesSQL, clientID, exerciceID, journal, pieceRef)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO entries (client_id, exercice_id, date, jnl, piece_ref, account_id, lib, debit_minor, credit_minor, piece_date, valid_date, amount_devise_minor, devise)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		e.ClientID, e.ExerciceID, e.Date, e.Journal, e.PieceRef, e.AccountID, e.Label,
		e.DebitMinor, e.CreditMinor, e.PieceDate, e.ValidDate, e.AmountDeviseMinor, e.Devise)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, e Entry) error {
	tag, err := r.tx.Exec(ctx, `UPDATE entries SET date = $2, account_id = $3, lib = $4, debit_minor = $5, credit_minor = $6, piece_date = $7, valid_date = $8, amount_devise_minor = $9, devise = $10
WHERE id = $1`,
		e.ID, e.Date, e.AccountID, e.Label, e.DebitMinor, e.CreditMinor,
		e.PieceDate, e.ValidDate, e.AmountDeviseMinor, e.Devise)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeletePiece(ctx context.Context, exerciceID int64, journal, pieceRef string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM entries WHERE exercice_id = $1 AND jnl = $2 AND piece_ref = $3`, exerciceID, journal, pieceRef)
	return err
}

// UpsertAccount finds or creates the (client, accnum) account. An existing
// label is never overwritten by posting traffic.
func (r *txRepository) UpsertAccount(ctx context.Context, clientID int64, accNum, accLib string) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (client_id, accnum, acclib) VALUES ($1, $2, $3)
ON CONFLICT (client_id, accnum) DO UPDATE SET accnum = EXCLUDED.accnum
RETURNING id, client_id, accnum, acclib`, clientID, accNum, accLib)
	var a Account
	if err := row.Scan(&a.ID, &a.ClientID, &a.AccNum, &a.AccLib); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpsertJournal(ctx context.Context, clientID int64, code, label string) (Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (client_id, code, label) VALUES ($1, $2, $3)
ON CONFLICT (client_id, code) DO UPDATE SET code = EXCLUDED.code
RETURNING id, client_id, code, label`, clientID, code, label)
	var j Journal
	if err := row.Scan(&j.ID, &j.ClientID, &j.Code, &j.Label); err != nil {
		return Journal{}, err
	}
	return j, nil
}

// LockJournalSequence reads the journal's last issued number under FOR
// UPDATE, creating the counter row at zero on first use. Concurrent commits
// against the same (exercice, journal) serialize on this row.
func (r *txRepository) LockJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO journal_sequences (exercice_id, jnl, last_number) VALUES ($1, $2, 0)
ON CONFLICT (exercice_id, jnl) DO NOTHING`, exerciceID, journal); err != nil {
		return 0, err
	}
	var last int64
	err := r.tx.QueryRow(ctx, `SELECT last_number FROM journal_sequences WHERE exercice_id = $1 AND jnl = $2 FOR UPDATE`,
		exerciceID, journal).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last, nil
}

func (r *txRepository) SetJournalSequence(ctx context.Context, exerciceID int64, journal string, n int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_sequences SET last_number = GREATEST(last_number, $3)
WHERE exercice_id = $1 AND jnl = $2`, exerciceID, journal, n)
	return err
}

const pieceExistsSQL = `SELECT EXISTS (SELECT 1 FROM entries WHERE exercice_id = $1 AND jnl = $2 AND piece_ref = $3)`

func (r *Repository) PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, pieceExistsSQL, exerciceID, journal, pieceRef).Scan(&taken)
	return taken, err
}

func (r *txRepository) PieceExists(ctx context.Context, exerciceID int64, journal, pieceRef string) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, pieceExistsSQL, exerciceID, journal, pieceRef).Scan(&taken)
	return taken, err
}

const unbalancedPiecesSQL = `SELECT jnl, piece_ref, COUNT(*), COALESCE(SUM(debit_minor), 0), COALESCE(SUM(credit_minor), 0)
FROM entries WHERE exercice_id = $1
GROUP BY jnl, piece_ref
HAVING SUM(debit_minor) <> SUM(credit_minor)
ORDER BY ABS(SUM(debit_minor) - SUM(credit_minor)) DESC, jnl, piece_ref
LIMIT $2`

func scanImbalances(rows pgx.Rows) ([]PieceImbalance, error) {
	defer rows.Close()
	var out []PieceImbalance
	for rows.Next() {
		var p PieceImbalance
		if err := rows.Scan(&p.Journal, &p.PieceRef, &p.Count, &p.DebitMinor, &p.CreditMinor); err != nil {
			return nil, err
		}
		p.DiffMinor = p.DebitMinor - p.CreditMinor
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error) {
	rows, err := r.pool.Query(ctx, unbalancedPiecesSQL, exerciceID, limit)
	if err != nil {
		return nil, err
	}
	return scanImbalances(rows)
}

func (r *txRepository) ListUnbalancedPieces(ctx context.Context, exerciceID int64, limit int) ([]PieceImbalance, error) {
	rows, err := r.tx.Query(ctx, unbalancedPiecesSQL, exerciceID, limit)
	if err != nil {
		return nil, err
	}
	return scanImbalances(rows)
}

// BalanceSheetBalances aggregates per-account debit and credit over classes
// 1 to 5 of an exercice, the input of opening balance carry-forward.
func (r *txRepository) BalanceSheetBalances(ctx context.Context, exerciceID int64) ([]AccountBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.accnum, a.acclib, COALESCE(SUM(e.debit_minor), 0), COALESCE(SUM(e.credit_minor), 0)
FROM entries e JOIN accounts a ON a.id = e.account_id
WHERE e.exercice_id = $1 AND a.accnum ~ '^[1-5]'
GROUP BY a.id, a.accnum, a.acclib
ORDER BY a.accnum`, exerciceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.AccNum, &b.AccLib, &b.DebitMinor, &b.CreditMinor); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertHistoryEvent(ctx context.Context, ev history.Event) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO history_events (created_at, client_id, exercice_id, description, added, modified, deleted)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.CreatedAt, ev.ClientID, ev.ExerciceID, ev.Description, ev.Counts.Added, ev.Counts.Modified, ev.Counts.Deleted)
	return err
}

func (r *Repository) GetJournalSequence(ctx context.Context, exerciceID int64, journal string) (int64, error) {
	var last int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE((SELECT last_number FROM journal_sequences WHERE exercice_id = $1 AND jnl = $2), 0)`,
		exerciceID, journal).Scan(&last)
	return last, err
}
