package db

import (
	"context"
	"database/sql"
)

// DBTX is the minimal surface Queries needs from either a *sql.DB or a
// *sql.Tx, mirroring the split sqlc itself generates for transaction-scoped
// query instances.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries is the hand-written query surface backing the registry's
// diagnostic event log. It follows the same shape a generated querier would:
// a thin struct around a DBTX, with one method per statement.
type Queries struct {
	db DBTX
}

// New returns a Queries bound directly to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx, for use inside a single transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// KeyEventRow is a single recorded row from the key_events table.
type KeyEventRow struct {
	ID            int64
	KeyIdentity   string
	KeyKind       string
	OwnerPid      string
	EventKind     string
	Reason        string
	PrevOwnerPid  string
	NewOwnerPid   string
	RecordedAtNs  int64
}

// InsertKeyEventParams holds the fields written for a single audit row.
type InsertKeyEventParams struct {
	KeyIdentity  string
	KeyKind      string
	OwnerPid     string
	EventKind    string
	Reason       string
	PrevOwnerPid string
	NewOwnerPid  string
	RecordedAtNs int64
}

// InsertKeyEvent appends a single audit row for a key lifecycle event.
func (q *Queries) InsertKeyEvent(ctx context.Context, arg InsertKeyEventParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO key_events (
			key_identity, key_kind, owner_pid, event_kind, reason,
			prev_owner_pid, new_owner_pid, recorded_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		arg.KeyIdentity, arg.KeyKind, arg.OwnerPid, arg.EventKind,
		arg.Reason, arg.PrevOwnerPid, arg.NewOwnerPid, arg.RecordedAtNs,
	)
	return err
}

// ListKeyEventsByIdentity returns every recorded event for a given key
// identity, oldest first, capped at limit rows.
func (q *Queries) ListKeyEventsByIdentity(ctx context.Context, keyIdentity string,
	limit int) ([]KeyEventRow, error) {

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, key_identity, key_kind, owner_pid, event_kind, reason,
		       prev_owner_pid, new_owner_pid, recorded_at_ns
		FROM key_events
		WHERE key_identity = ?
		ORDER BY id ASC
		LIMIT ?
	`, keyIdentity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanKeyEventRows(rows)
}

// ListRecentKeyEvents returns the most recently recorded events across every
// key, newest first, capped at limit rows.
func (q *Queries) ListRecentKeyEvents(ctx context.Context, limit int) ([]KeyEventRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, key_identity, key_kind, owner_pid, event_kind, reason,
		       prev_owner_pid, new_owner_pid, recorded_at_ns
		FROM key_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanKeyEventRows(rows)
}

func scanKeyEventRows(rows *sql.Rows) ([]KeyEventRow, error) {
	var out []KeyEventRow
	for rows.Next() {
		var r KeyEventRow
		if err := rows.Scan(
			&r.ID, &r.KeyIdentity, &r.KeyKind, &r.OwnerPid, &r.EventKind,
			&r.Reason, &r.PrevOwnerPid, &r.NewOwnerPid, &r.RecordedAtNs,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
