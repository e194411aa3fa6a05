package postgres

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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, bw.ID, bw.UserID, bw.MemoryID, string(bw.Kind), bw.Payload, bw.Attempts,
		bw.NextAttemptAt, string(bw.State), bw.EnqueuedAt, bw.LastError)
	if err != nil {
		return "", fmt.Errorf("postgres.EnqueueWrite: %w", err)
	}
	return bw.ID, nil
}

func (c *Client) NextPendingWrite(ctx context.Context, now time.Time) (*core.BufferedWrite, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres.NextPendingWrite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, memory_id, kind, payload, attempts, next_attempt_at,
		       state, enqueued_at, last_error
		FROM buffered_writes
		WHERE state = $1 AND next_attempt_at <= $2
		ORDER BY enqueued_at ASC LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, string(core.BufferStatePending), now)

	bw, err := scanBufferedWrite(row)
	if err == sql.ErrNoRows || err == core.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE buffered_writes SET state = $1 WHERE id = $2",
		string(core.BufferStateInFlight), bw.ID); err != nil {
		return nil, fmt.Errorf("postgres.NextPendingWrite: claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres.NextPendingWrite: commit: %w", err)
	}
	bw.State = core.BufferStateInFlight
	return bw, nil
}

func (c *Client) UpdateWriteState(ctx context.Context, id string, bw *core.BufferedWrite) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE buffered_writes SET attempts=$1, next_attempt_at=$2, state=$3, last_error=$4
		WHERE id = $5
	`, bw.Attempts, bw.NextAttemptAt, string(bw.State), bw.LastError, id)
	if err != nil {
		return fmt.Errorf("postgres.UpdateWriteState: %w", err)
	}
	return nil
}

func (c *Client) DeleteWrite(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM buffered_writes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres.DeleteWrite: %w", err)
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
		return nil, fmt.Errorf("postgres: scan buffered write: %w", err)
	}
	bw.Kind = core.BufferedWritePayloadKind(kind)
	bw.State = core.BufferedWriteState(state)
	return &bw, nil
}
