package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

func (c *Client) EnqueueWrite(ctx context.Context, bw *core.BufferedWrite) (string, error) {
	if bw.ID == "" {
		bw.ID = c.ids.Next()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO buffered_writes
			(id, user_id, memory_id, kind, payload, attempts, next_attempt_at,
			 state, enqueued_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, bw.ID, bw.UserID, bw.MemoryID, string(bw.Kind), bw.Payload, bw.Attempts,
		bw.NextAttemptAt, string(bw.State), bw.EnqueuedAt, bw.LastError)
	if err != nil {
		return "", fmt.Errorf("mysql.EnqueueWrite: %w", err)
	}
	return bw.ID, nil
}

// NextPendingWrite claims the oldest eligible pending write. MySQL's
// SELECT ... FOR UPDATE inside the transaction plays the same role the
// sqlite backend's single-connection transaction does: two workers
// racing on the same row never both see it pending.
func (c *Client) NextPendingWrite(ctx context.Context, now time.Time) (*core.BufferedWrite, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql.NextPendingWrite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, memory_id, kind, payload, attempts, next_attempt_at,
		       state, enqueued_at, last_error
		FROM buffered_writes
		WHERE state = ? AND next_attempt_at <= ?
		ORDER BY enqueued_at ASC LIMIT 1
		FOR UPDATE
	`, string(core.BufferStatePending), now)

	bw, err := scanBufferedWrite(row)
	if err == sql.ErrNoRows || err == core.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE buffered_writes SET state = ? WHERE id = ?",
		string(core.BufferStateInFlight), bw.ID); err != nil {
		return nil, fmt.Errorf("mysql.NextPendingWrite: claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mysql.NextPendingWrite: commit: %w", err)
	}
	bw.State = core.BufferStateInFlight
	return bw, nil
}

func (c *Client) UpdateWriteState(ctx context.Context, id string, bw *core.BufferedWrite) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE buffered_writes SET attempts = ?, next_attempt_at = ?, state = ?, last_error = ?
		WHERE id = ?
	`, bw.Attempts, bw.NextAttemptAt, string(bw.State), bw.LastError, id)
	if err != nil {
		return fmt.Errorf("mysql.UpdateWriteState: %w", err)
	}
	return nil
}

func (c *Client) DeleteWrite(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM buffered_writes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mysql.DeleteWrite: %w", err)
	}
	return nil
}

func scanBufferedWrite(row *sql.Row) (*core.BufferedWrite, error) {
	var bw core.BufferedWrite
	var kind, state string
	err := row.Scan(&bw.ID, &bw.UserID, &bw.MemoryID, &kind, &bw.Payload, &bw.Attempts,
		&bw.NextAttemptAt, &state, &bw.EnqueuedAt, &bw.LastError)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: scan buffered write: %w", err)
	}
	bw.Kind = core.BufferedWritePayloadKind(kind)
	bw.State = core.BufferedWriteState(state)
	return &bw, nil
}
