// Package sqlite implements store.Store against SQLite. It is the
// default backend: a single file, no server, suitable for local
// development, tests, and single-node deployments. Vectors, tags, and
// metadata are all stored as JSON text; similarity search itself lives
// in pkg/search, not here — the Store only ever returns rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

// Client implements store.Store using SQLite as the backend.
type Client struct {
	db  *sql.DB
	ids *core.IDGenerator
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file. ":memory:" opens
	// an in-process database, used by tests.
	DBPath string

	// NodeID seeds the snowflake id generator; distinct processes
	// sharing one database file must use distinct values.
	NodeID int64
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite.NewClient: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite.NewClient: %w", err)
	}

	ids, err := core.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewClient: %w", err)
	}

	c := &Client{db: db, ids: ids}
	if err := c.migrate(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) migrate(ctx context.Context) error {
	m := store.NewMigrator(c.db, migrations)
	return m.Up(ctx)
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// --- Users ---

func (c *Client) CreateUser(ctx context.Context, u *core.User) (string, error) {
	if u.ID == "" {
		u.ID = c.ids.Next()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.DisplayName, u.IsActive, u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("sqlite.CreateUser: %w", err)
	}
	return u.ID, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*core.User, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, is_active, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, is_active, created_at FROM users WHERE lower(email) = lower(?)
	`, email)
	return scanUser(row)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite.DeleteUser: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"memories", "entities", "interactions", "calendar_events", "api_usage_tracking", "buffered_writes", "users"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", table), id); err != nil {
			if table == "users" {
				if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
					return fmt.Errorf("sqlite.DeleteUser: %w", err)
				}
				continue
			}
			return fmt.Errorf("sqlite.DeleteUser: cascade %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan user: %w", err)
	}
	return &u, nil
}

// --- Memories ---

func (c *Client) CreateMemory(ctx context.Context, userID string, m *core.Memory) (string, error) {
	if m.ID == "" {
		m.ID = c.ids.Next()
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return "", fmt.Errorf("sqlite.CreateMemory: %w", err)
	}
	refsJSON, err := json.Marshal(m.EntityRefs)
	if err != nil {
		return "", fmt.Errorf("sqlite.CreateMemory: %w", err)
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return "", fmt.Errorf("sqlite.CreateMemory: %w", err)
	}
	var embJSON []byte
	if m.HasEmbedding() {
		embJSON, err = json.Marshal(m.Embedding)
		if err != nil {
			return "", fmt.Errorf("sqlite.CreateMemory: %w", err)
		}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO memories
			(id, user_id, title, content, type, importance, tags, entity_refs,
			 embedding, metadata, is_archived, created_at, updated_at,
			 retention_strength, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, userID, m.Title, m.Content, string(m.Type), m.Importance,
		string(tagsJSON), string(refsJSON), string(embJSON), string(metaJSON),
		m.IsArchived, m.CreatedAt, m.UpdatedAt, m.RetentionStrength, m.LastAccessedAt)
	if err != nil {
		return "", fmt.Errorf("sqlite.CreateMemory: %w", err)
	}
	return m.ID, nil
}

func (c *Client) GetMemory(ctx context.Context, id, userID string) (*core.Memory, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, type, importance, tags, entity_refs,
		       embedding, metadata, is_archived, created_at, updated_at,
		       retention_strength, last_accessed_at
		FROM memories WHERE id = ? AND user_id = ?
	`, id, userID)
	return scanMemoryRow(row)
}

// checkMemoryOwner disambiguates a failed id+user_id lookup on the
// memories table: core.ErrNotOwner when the row exists under a
// different tenant, core.ErrNotFound when it doesn't exist at all.
func (c *Client) checkMemoryOwner(ctx context.Context, id, userID string) error {
	var owner string
	err := c.db.QueryRowContext(ctx, "SELECT user_id FROM memories WHERE id = ?", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite.checkMemoryOwner: %w", err)
	}
	if owner != userID {
		return core.ErrNotOwner
	}
	return core.ErrNotFound
}

func (c *Client) UpdateMemory(ctx context.Context, id, userID string, patch *store.MemoryPatch) (*core.Memory, error) {
	existing, err := c.GetMemory(ctx, id, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, c.checkMemoryOwner(ctx, id, userID)
		}
		return nil, err
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Content != nil {
		existing.Content = *patch.Content
	}
	if patch.Type != nil {
		existing.Type = *patch.Type
	}
	if patch.Importance != nil {
		existing.Importance = *patch.Importance
	}
	if patch.TagsSet {
		existing.Tags = patch.Tags
	}
	if patch.EntityRefsSet {
		existing.EntityRefs = patch.EntityRefs
	}
	if patch.MetadataSet {
		existing.Metadata = patch.Metadata
	}
	if patch.IsArchived != nil {
		existing.IsArchived = *patch.IsArchived
	}
	existing.UpdatedAt = time.Now()

	tagsJSON, _ := json.Marshal(existing.Tags)
	refsJSON, _ := json.Marshal(existing.EntityRefs)
	metaJSON, _ := json.Marshal(existing.Metadata)

	res, err := c.db.ExecContext(ctx, `
		UPDATE memories
		SET title = ?, content = ?, type = ?, importance = ?, tags = ?,
		    entity_refs = ?, metadata = ?, is_archived = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, existing.Title, existing.Content, string(existing.Type), existing.Importance,
		string(tagsJSON), string(refsJSON), string(metaJSON), existing.IsArchived,
		existing.UpdatedAt, id, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite.UpdateMemory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, c.checkMemoryOwner(ctx, id, userID)
	}
	return existing, nil
}

func (c *Client) DeleteMemory(ctx context.Context, id, userID string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("sqlite.DeleteMemory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.checkMemoryOwner(ctx, id, userID)
	}
	return nil
}

func (c *Client) ListMemories(ctx context.Context, userID string, filter *store.MemoryFilter) ([]*core.Memory, error) {
	where := "WHERE user_id = ?"
	args := []interface{}{userID}

	if filter != nil {
		if filter.Type != "" {
			where += " AND type = ?"
			args = append(args, string(filter.Type))
		}
		if filter.Archived != nil {
			where += " AND is_archived = ?"
			args = append(args, *filter.Archived)
		}
		if filter.CreatedAfter != nil {
			where += " AND created_at > ?"
			args = append(args, *filter.CreatedAfter)
		}
		if filter.HasEmbedding != nil {
			if *filter.HasEmbedding {
				where += " AND embedding IS NOT NULL AND embedding != ''"
			} else {
				where += " AND (embedding IS NULL OR embedding = '')"
			}
		}
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, title, content, type, importance, tags, entity_refs,
		       embedding, metadata, is_archived, created_at, updated_at,
		       retention_strength, last_accessed_at
		FROM memories %s ORDER BY created_at DESC
	`, where)
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite.ListMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		if filter != nil && len(filter.TagsAnyOf) > 0 && !anyTagMatches(m.Tags, filter.TagsAnyOf) {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func anyTagMatches(have, want []string) bool {
	set := make(map[string]bool, len(want))
	for _, t := range want {
		set[t] = true
	}
	for _, t := range have {
		if set[t] {
			return true
		}
	}
	return false
}

// ScanMissingEmbeddings selects id and title only — never id alone — so
// that drivers which special-case a single-column result set can't
// silently collapse the scan (§4.1/§9).
func (c *Client) ScanMissingEmbeddings(ctx context.Context, userID string, batchSize int) ([]store.EmbeddingCandidate, error) {
	where := "WHERE (embedding IS NULL OR embedding = '')"
	args := []interface{}{}
	if userID != "" {
		where += " AND user_id = ?"
		args = append(args, userID)
	}
	query := fmt.Sprintf("SELECT id, title FROM memories %s ORDER BY created_at ASC LIMIT ?", where)
	args = append(args, batchSize)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite.ScanMissingEmbeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.EmbeddingCandidate
	for rows.Next() {
		var cand store.EmbeddingCandidate
		if err := rows.Scan(&cand.ID, &cand.Title); err != nil {
			return nil, fmt.Errorf("sqlite.ScanMissingEmbeddings: %w", err)
		}
		if cand.ID == "" {
			continue
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (c *Client) SetMemoryEmbedding(ctx context.Context, id, userID string, embedding []float32) error {
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("sqlite.SetMemoryEmbedding: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE memories SET embedding = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, string(embJSON), time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("sqlite.SetMemoryEmbedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *Client) CountMemories(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite.CountMemories: %w", err)
	}
	return n, nil
}

func scanMemoryRow(row *sql.Row) (*core.Memory, error) {
	var m core.Memory
	var typ string
	var tagsStr, refsStr, embStr, metaStr string
	var lastAccessed sql.NullTime

	err := row.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &typ, &m.Importance,
		&tagsStr, &refsStr, &embStr, &metaStr, &m.IsArchived, &m.CreatedAt, &m.UpdatedAt,
		&m.RetentionStrength, &lastAccessed)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan memory: %w", err)
	}
	return finishMemory(&m, typ, tagsStr, refsStr, embStr, metaStr, lastAccessed)
}

func scanMemoryRows(rows *sql.Rows) (*core.Memory, error) {
	var m core.Memory
	var typ string
	var tagsStr, refsStr, embStr, metaStr string
	var lastAccessed sql.NullTime

	err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &typ, &m.Importance,
		&tagsStr, &refsStr, &embStr, &metaStr, &m.IsArchived, &m.CreatedAt, &m.UpdatedAt,
		&m.RetentionStrength, &lastAccessed)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan memory: %w", err)
	}
	return finishMemory(&m, typ, tagsStr, refsStr, embStr, metaStr, lastAccessed)
}

func finishMemory(m *core.Memory, typ, tagsStr, refsStr, embStr, metaStr string, lastAccessed sql.NullTime) (*core.Memory, error) {
	m.Type = core.MemoryType(typ)
	if tagsStr != "" {
		if err := json.Unmarshal([]byte(tagsStr), &m.Tags); err != nil {
			return nil, fmt.Errorf("sqlite: parse tags: %w", err)
		}
	}
	if refsStr != "" {
		if err := json.Unmarshal([]byte(refsStr), &m.EntityRefs); err != nil {
			return nil, fmt.Errorf("sqlite: parse entity_refs: %w", err)
		}
	}
	if embStr != "" {
		if err := json.Unmarshal([]byte(embStr), &m.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: parse embedding: %w", err)
		}
	}
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &m.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: parse metadata: %w", err)
		}
	}
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Time
	}
	return m, nil
}
