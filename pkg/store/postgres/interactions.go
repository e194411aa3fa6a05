package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memscribe/memscribe/pkg/core"
)

func (c *Client) CreateInteraction(ctx context.Context, userID string, in *core.Interaction) (string, error) {
	if in.ID == "" {
		in.ID = c.ids.Next()
	}
	refsJSON, _ := json.Marshal(in.EntityRefs)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO interactions (id, user_id, entity_refs, content, direction, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.ID, userID, refsJSON, in.Content, string(in.Direction), in.OccurredAt)
	if err != nil {
		return "", fmt.Errorf("postgres.CreateInteraction: %w", err)
	}
	return in.ID, nil
}

func (c *Client) ListInteractions(ctx context.Context, userID string, entityID string) ([]*core.Interaction, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	if entityID != "" {
		where += " AND entity_refs::text LIKE $2"
		args = append(args, "%"+entityID+"%")
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, entity_refs, content, direction, occurred_at
		FROM interactions %s ORDER BY occurred_at DESC
	`, where)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListInteractions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func scanInteraction(rows *sql.Rows) (*core.Interaction, error) {
	var in core.Interaction
	var refsB []byte
	var dir string
	if err := rows.Scan(&in.ID, &in.UserID, &refsB, &in.Content, &dir, &in.OccurredAt); err != nil {
		return nil, fmt.Errorf("postgres: scan interaction: %w", err)
	}
	in.Direction = core.InteractionDirection(dir)
	if len(refsB) > 0 {
		if err := json.Unmarshal(refsB, &in.EntityRefs); err != nil {
			return nil, fmt.Errorf("postgres: parse interaction refs: %w", err)
		}
	}
	return &in, nil
}

// --- Calendar events ---

func (c *Client) CreateCalendarEvent(ctx context.Context, userID string, ev *core.CalendarEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = c.ids.Next()
	}
	refsJSON, _ := json.Marshal(ev.EntityRefs)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, user_id, title, starts_at, ends_at, entity_refs)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ev.ID, userID, ev.Title, ev.StartsAt, ev.EndsAt, refsJSON)
	if err != nil {
		return "", fmt.Errorf("postgres.CreateCalendarEvent: %w", err)
	}
	return ev.ID, nil
}

func (c *Client) ListCalendarEvents(ctx context.Context, userID string) ([]*core.CalendarEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, title, starts_at, ends_at, entity_refs
		FROM calendar_events WHERE user_id=$1 ORDER BY starts_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListCalendarEvents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.CalendarEvent
	for rows.Next() {
		var ev core.CalendarEvent
		var refsB []byte
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.StartsAt, &ev.EndsAt, &refsB); err != nil {
			return nil, fmt.Errorf("postgres: scan calendar event: %w", err)
		}
		if len(refsB) > 0 {
			_ = json.Unmarshal(refsB, &ev.EntityRefs)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
