package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

const entitySelect = `
SELECT id, user_id, entity_type, name, person_type, first_name, last_name,
       company, title, email, phone, address, website, notes, tags,
       importance, metadata, created_at, updated_at
FROM entities`

func (c *Client) CreateEntity(ctx context.Context, userID string, e *core.Entity) (string, error) {
	if e.ID == "" {
		e.ID = c.ids.Next()
	}
	tagsJSON, _ := json.Marshal(e.Tags)
	metaJSON, _ := json.Marshal(e.Metadata)

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO entities
			(id, user_id, entity_type, name, person_type, first_name, last_name,
			 company, title, email, phone, address, website, notes, tags,
			 importance, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, e.ID, userID, string(e.EntityType), e.Name, e.PersonType, e.FirstName, e.LastName,
		e.Company, e.Title, e.Email, e.Phone, e.Address, e.Website, e.Notes,
		tagsJSON, e.Importance, metaJSON, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("postgres.CreateEntity: %w", err)
	}
	return e.ID, nil
}

func (c *Client) GetEntity(ctx context.Context, id, userID string) (*core.Entity, error) {
	row := c.db.QueryRowContext(ctx, entitySelect+" WHERE id=$1 AND user_id=$2", id, userID)
	return scanEntityRow(row)
}

func (c *Client) GetEntityByExternalUID(ctx context.Context, userID, uid string) (*core.Entity, error) {
	rows, err := c.db.QueryContext(ctx, entitySelect+" WHERE user_id=$1", userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.GetEntityByExternalUID: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		if e.ExternalUID() == uid {
			return e, nil
		}
	}
	return nil, core.ErrNotFound
}

// checkEntityOwner disambiguates a failed id+user_id lookup on the
// entities table: core.ErrNotOwner when the row exists under a
// different tenant, core.ErrNotFound when it doesn't exist at all.
func (c *Client) checkEntityOwner(ctx context.Context, id, userID string) error {
	var owner string
	err := c.db.QueryRowContext(ctx, "SELECT user_id FROM entities WHERE id = $1", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres.checkEntityOwner: %w", err)
	}
	if owner != userID {
		return core.ErrNotOwner
	}
	return core.ErrNotFound
}

func (c *Client) UpdateEntity(ctx context.Context, id, userID string, patch *store.EntityPatch) (*core.Entity, error) {
	existing, err := c.GetEntity(ctx, id, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, c.checkEntityOwner(ctx, id, userID)
		}
		return nil, err
	}
	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.PersonType != nil {
		existing.PersonType = *patch.PersonType
	}
	if patch.FirstName != nil {
		existing.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		existing.LastName = *patch.LastName
	}
	if patch.Company != nil {
		existing.Company = *patch.Company
	}
	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Email != nil {
		existing.Email = *patch.Email
	}
	if patch.Phone != nil {
		existing.Phone = *patch.Phone
	}
	if patch.Address != nil {
		existing.Address = *patch.Address
	}
	if patch.Website != nil {
		existing.Website = *patch.Website
	}
	if patch.Notes != nil {
		existing.Notes = *patch.Notes
	}
	if patch.TagsSet {
		existing.Tags = patch.Tags
	}
	if patch.Importance != nil {
		existing.Importance = *patch.Importance
	}
	if patch.MetadataSet {
		existing.Metadata = patch.Metadata
	}
	existing.UpdatedAt = time.Now()

	tagsJSON, _ := json.Marshal(existing.Tags)
	metaJSON, _ := json.Marshal(existing.Metadata)

	res, err := c.db.ExecContext(ctx, `
		UPDATE entities SET name=$1, person_type=$2, first_name=$3, last_name=$4,
			company=$5, title=$6, email=$7, phone=$8, address=$9, website=$10,
			notes=$11, tags=$12, importance=$13, metadata=$14, updated_at=$15
		WHERE id=$16 AND user_id=$17
	`, existing.Name, existing.PersonType, existing.FirstName, existing.LastName,
		existing.Company, existing.Title, existing.Email, existing.Phone, existing.Address,
		existing.Website, existing.Notes, tagsJSON, existing.Importance, metaJSON,
		existing.UpdatedAt, id, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.UpdateEntity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, c.checkEntityOwner(ctx, id, userID)
	}
	return existing, nil
}

func (c *Client) DeleteEntity(ctx context.Context, id, userID string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM entities WHERE id=$1 AND user_id=$2", id, userID)
	if err != nil {
		return fmt.Errorf("postgres.DeleteEntity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.checkEntityOwner(ctx, id, userID)
	}
	return sweepEntityRefs(ctx, c.db, userID, id)
}

func sweepEntityRefs(ctx context.Context, db *sql.DB, userID, entityID string) error {
	rows, err := db.QueryContext(ctx, "SELECT id, entity_refs FROM memories WHERE user_id=$1 AND entity_refs::text LIKE $2",
		userID, "%"+entityID+"%")
	if err != nil {
		return fmt.Errorf("postgres: sweep entity_refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type pending struct {
		id   string
		refs []string
	}
	var toUpdate []pending
	for rows.Next() {
		var id string
		var refsB []byte
		if err := rows.Scan(&id, &refsB); err != nil {
			return fmt.Errorf("postgres: sweep entity_refs: %w", err)
		}
		var refs []string
		if len(refsB) > 0 {
			_ = json.Unmarshal(refsB, &refs)
		}
		filtered := refs[:0]
		changed := false
		for _, r := range refs {
			if r == entityID {
				changed = true
				continue
			}
			filtered = append(filtered, r)
		}
		if changed {
			toUpdate = append(toUpdate, pending{id: id, refs: filtered})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range toUpdate {
		refsJSON, _ := json.Marshal(p.refs)
		if _, err := db.ExecContext(ctx, "UPDATE memories SET entity_refs=$1 WHERE id=$2", refsJSON, p.id); err != nil {
			return fmt.Errorf("postgres: sweep entity_refs: %w", err)
		}
	}
	return nil
}

func (c *Client) ListEntities(ctx context.Context, userID string) ([]*core.Entity, error) {
	rows, err := c.db.QueryContext(ctx, entitySelect+" WHERE user_id=$1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListEntities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Entity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Client) CountEntities(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE user_id=$1", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres.CountEntities: %w", err)
	}
	return n, nil
}

func scanEntityRow(row *sql.Row) (*core.Entity, error) {
	var e core.Entity
	var typ string
	var tagsB, metaB []byte
	err := row.Scan(&e.ID, &e.UserID, &typ, &e.Name, &e.PersonType, &e.FirstName, &e.LastName,
		&e.Company, &e.Title, &e.Email, &e.Phone, &e.Address, &e.Website, &e.Notes,
		&tagsB, &e.Importance, &metaB, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan entity: %w", err)
	}
	return finishEntity(&e, typ, tagsB, metaB)
}

func scanEntityRows(rows *sql.Rows) (*core.Entity, error) {
	var e core.Entity
	var typ string
	var tagsB, metaB []byte
	err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Name, &e.PersonType, &e.FirstName, &e.LastName,
		&e.Company, &e.Title, &e.Email, &e.Phone, &e.Address, &e.Website, &e.Notes,
		&tagsB, &e.Importance, &metaB, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan entity: %w", err)
	}
	return finishEntity(&e, typ, tagsB, metaB)
}

func finishEntity(e *core.Entity, typ string, tagsB, metaB []byte) (*core.Entity, error) {
	e.EntityType = core.EntityType(typ)
	if len(tagsB) > 0 {
		if err := json.Unmarshal(tagsB, &e.Tags); err != nil {
			return nil, fmt.Errorf("postgres: parse entity tags: %w", err)
		}
	}
	if len(metaB) > 0 {
		if err := json.Unmarshal(metaB, &e.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: parse entity metadata: %w", err)
		}
	}
	return e, nil
}
