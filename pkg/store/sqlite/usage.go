package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

func (c *Client) RecordUsage(ctx context.Context, rec *core.UsageRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO api_usage_tracking (user_id, provider, operation, tokens, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.Provider, rec.Operation, rec.Tokens, rec.Cost, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite.RecordUsage: %w", err)
	}
	return nil
}

func (c *Client) DailyCosts(ctx context.Context, userID string, days int) ([]store.DailyCost, error) {
	since := time.Now().AddDate(0, 0, -days)
	rows, err := c.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day, SUM(cost), SUM(tokens)
		FROM api_usage_tracking
		WHERE user_id = ? AND timestamp >= ?
		GROUP BY day ORDER BY day ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sqlite.DailyCosts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.DailyCost
	for rows.Next() {
		var d store.DailyCost
		if err := rows.Scan(&d.Day, &d.Cost, &d.Tokens); err != nil {
			return nil, fmt.Errorf("sqlite.DailyCosts: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
