// Package postgres implements store.Store against PostgreSQL. It is the
// recommended multi-node backend; JSONB columns carry tags, refs,
// embeddings, and metadata, mirroring the sqlite backend's shapes so
// pkg/search and pkg/memory never need to know which is active.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

type Client struct {
	db  *sql.DB
	ids *core.IDGenerator
}

// Config contains PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	NodeID   int64
}

func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres.NewClient: %w", err)
	}

	ids, err := core.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewClient: %w", err)
	}

	c := &Client{db: db, ids: ids}
	if err := store.NewPostgresMigrator(db, migrations).Up(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
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
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.DisplayName, u.IsActive, u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("postgres.CreateUser: %w", err)
	}
	return u.ID, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*core.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, email, display_name, is_active, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, email, display_name, is_active, created_at FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres.DeleteUser: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"memories", "entities", "interactions", "calendar_events", "api_usage_tracking", "buffered_writes"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), id); err != nil {
			return fmt.Errorf("postgres.DeleteUser: cascade %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id); err != nil {
		return fmt.Errorf("postgres.DeleteUser: %w", err)
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
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &u, nil
}

// --- Memories ---

func (c *Client) CreateMemory(ctx context.Context, userID string, m *core.Memory) (string, error) {
	if m.ID == "" {
		m.ID = c.ids.Next()
	}
	tagsJSON, _ := json.Marshal(m.Tags)
	refsJSON, _ := json.Marshal(m.EntityRefs)
	metaJSON, _ := json.Marshal(m.Metadata)
	var embJSON []byte
	if m.HasEmbedding() {
		embJSON, _ = json.Marshal(m.Embedding)
	} else {
		embJSON = []byte("null")
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO memories
			(id, user_id, title, content, type, importance, tags, entity_refs,
			 embedding, metadata, is_archived, created_at, updated_at,
			 retention_strength, last_accessed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, m.ID, userID, m.Title, m.Content, string(m.Type), m.Importance,
		tagsJSON, refsJSON, embJSON, metaJSON, m.IsArchived, m.CreatedAt, m.UpdatedAt,
		m.RetentionStrength, m.LastAccessedAt)
	if err != nil {
		return "", fmt.Errorf("postgres.CreateMemory: %w", err)
	}
	return m.ID, nil
}

func (c *Client) GetMemory(ctx context.Context, id, userID string) (*core.Memory, error) {
	row := c.db.QueryRowContext(ctx, memorySelect+" WHERE id = $1 AND user_id = $2", id, userID)
	return scanMemoryRow(row)
}

// checkMemoryOwner disambiguates a failed id+user_id lookup on the
// memories table: core.ErrNotOwner when the row exists under a
// different tenant, core.ErrNotFound when it doesn't exist at all.
func (c *Client) checkMemoryOwner(ctx context.Context, id, userID string) error {
	var owner string
	err := c.db.QueryRowContext(ctx, "SELECT user_id FROM memories WHERE id = $1", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres.checkMemoryOwner: %w", err)
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
		SET title=$1, content=$2, type=$3, importance=$4, tags=$5, entity_refs=$6,
		    metadata=$7, is_archived=$8, updated_at=$9
		WHERE id=$10 AND user_id=$11
	`, existing.Title, existing.Content, string(existing.Type), existing.Importance,
		tagsJSON, refsJSON, metaJSON, existing.IsArchived, existing.UpdatedAt, id, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.UpdateMemory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, c.checkMemoryOwner(ctx, id, userID)
	}
	return existing, nil
}

func (c *Client) DeleteMemory(ctx context.Context, id, userID string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM memories WHERE id=$1 AND user_id=$2", id, userID)
	if err != nil {
		return fmt.Errorf("postgres.DeleteMemory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.checkMemoryOwner(ctx, id, userID)
	}
	return nil
}

func (c *Client) ListMemories(ctx context.Context, userID string, filter *store.MemoryFilter) ([]*core.Memory, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	idx := 2

	if filter != nil {
		if filter.Type != "" {
			where += fmt.Sprintf(" AND type = $%d", idx)
			args = append(args, string(filter.Type))
			idx++
		}
		if filter.Archived != nil {
			where += fmt.Sprintf(" AND is_archived = $%d", idx)
			args = append(args, *filter.Archived)
			idx++
		}
		if filter.CreatedAfter != nil {
			where += fmt.Sprintf(" AND created_at > $%d", idx)
			args = append(args, *filter.CreatedAfter)
			idx++
		}
		if filter.HasEmbedding != nil {
			if *filter.HasEmbedding {
				where += " AND embedding IS NOT NULL"
			} else {
				where += " AND embedding IS NULL"
			}
		}
	}

	query := fmt.Sprintf("%s %s ORDER BY created_at DESC", memorySelect, where)
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, filter.Limit)
		idx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", idx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListMemories: %w", err)
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

func (c *Client) ScanMissingEmbeddings(ctx context.Context, userID string, batchSize int) ([]store.EmbeddingCandidate, error) {
	where := "WHERE embedding IS NULL"
	args := []interface{}{}
	idx := 1
	if userID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, userID)
		idx++
	}
	query := fmt.Sprintf("SELECT id, title FROM memories %s ORDER BY created_at ASC LIMIT $%d", where, idx)
	args = append(args, batchSize)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.ScanMissingEmbeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.EmbeddingCandidate
	for rows.Next() {
		var cand store.EmbeddingCandidate
		if err := rows.Scan(&cand.ID, &cand.Title); err != nil {
			return nil, fmt.Errorf("postgres.ScanMissingEmbeddings: %w", err)
		}
		if cand.ID == "" {
			continue
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (c *Client) SetMemoryEmbedding(ctx context.Context, id, userID string, embedding []float32) error {
	embJSON, _ := json.Marshal(embedding)
	res, err := c.db.ExecContext(ctx, `
		UPDATE memories SET embedding=$1, updated_at=$2 WHERE id=$3 AND user_id=$4
	`, embJSON, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("postgres.SetMemoryEmbedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *Client) CountMemories(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id=$1", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres.CountMemories: %w", err)
	}
	return n, nil
}

const memorySelect = `
SELECT id, user_id, title, content, type, importance, tags, entity_refs,
       embedding, metadata, is_archived, created_at, updated_at,
       retention_strength, last_accessed_at
FROM memories`

func scanMemoryRow(row *sql.Row) (*core.Memory, error) {
	var m core.Memory
	var typ string
	var tagsB, refsB, embB, metaB []byte
	var lastAccessed sql.NullTime

	err := row.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &typ, &m.Importance,
		&tagsB, &refsB, &embB, &metaB, &m.IsArchived, &m.CreatedAt, &m.UpdatedAt,
		&m.RetentionStrength, &lastAccessed)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan memory: %w", err)
	}
	return finishMemory(&m, typ, tagsB, refsB, embB, metaB, lastAccessed)
}

func scanMemoryRows(rows *sql.Rows) (*core.Memory, error) {
	var m core.Memory
	var typ string
	var tagsB, refsB, embB, metaB []byte
	var lastAccessed sql.NullTime

	err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &typ, &m.Importance,
		&tagsB, &refsB, &embB, &metaB, &m.IsArchived, &m.CreatedAt, &m.UpdatedAt,
		&m.RetentionStrength, &lastAccessed)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan memory: %w", err)
	}
	return finishMemory(&m, typ, tagsB, refsB, embB, metaB, lastAccessed)
}

func finishMemory(m *core.Memory, typ string, tagsB, refsB, embB, metaB []byte, lastAccessed sql.NullTime) (*core.Memory, error) {
	m.Type = core.MemoryType(typ)
	if len(tagsB) > 0 {
		if err := json.Unmarshal(tagsB, &m.Tags); err != nil {
			return nil, fmt.Errorf("postgres: parse tags: %w", err)
		}
	}
	if len(refsB) > 0 {
		if err := json.Unmarshal(refsB, &m.EntityRefs); err != nil {
			return nil, fmt.Errorf("postgres: parse entity_refs: %w", err)
		}
	}
	if len(embB) > 0 {
		if err := json.Unmarshal(embB, &m.Embedding); err != nil {
			return nil, fmt.Errorf("postgres: parse embedding: %w", err)
		}
	}
	if len(metaB) > 0 {
		if err := json.Unmarshal(metaB, &m.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: parse metadata: %w", err)
		}
	}
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Time
	}
	return m, nil
}
