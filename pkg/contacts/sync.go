package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/llm"
	"github.com/memscribe/memscribe/pkg/store"
)

// Direction selects which side of the sync is authoritative for
// unmatched records.
type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
	DirectionBoth   Direction = "both"
)

// ConflictPolicy governs how matched pairs with divergent fields are
// reconciled.
type ConflictPolicy string

const (
	ConflictNewest ConflictPolicy = "newest"
	ConflictOldest ConflictPolicy = "oldest"
	ConflictMerge  ConflictPolicy = "merge"
)

// remoteBatchSize bounds how many remote contacts are held in memory
// at once; the engine streams rather than loading the whole remote
// set when it exceeds this.
const remoteBatchSize = 50

// Options configures one Sync run.
type Options struct {
	Direction      Direction
	ConflictPolicy ConflictPolicy
	DryRun         bool
	AutoMerge      bool
	PreThreshold   float64
	JudgeThreshold int
	// Progress, if set, is invoked once per processed batch.
	Progress func(processed int)
}

// Summary is the result of one Sync run.
type Summary struct {
	Exported        int
	Imported        int
	Updated         int
	Merged          int
	DuplicatesFound int
	Skipped         int
	Failed          int
	Errors          []string
}

// Syncer reconciles a tenant's person entities against a ContactProvider.
type Syncer struct {
	Store    store.Store
	Provider ContactProvider
	Judge    llm.Judge
}

func NewSyncer(s store.Store, p ContactProvider, j llm.Judge) *Syncer {
	return &Syncer{Store: s, Provider: p, Judge: j}
}

// Sync runs the full reconciliation: load, match, sync matched pairs,
// detect duplicates among the unmatched, import/export unmatched
// records per direction, and return a summary. dry_run performs every
// step except the mutating ones.
func (s *Syncer) Sync(ctx context.Context, userID string, opts Options) (Summary, error) {
	if opts.ConflictPolicy == "" {
		opts.ConflictPolicy = ConflictNewest
	}
	if opts.Direction == "" {
		opts.Direction = DirectionBoth
	}

	var summary Summary

	// 1. Load local persons.
	allEntities, err := s.Store.ListEntities(ctx, userID)
	if err != nil {
		return summary, fmt.Errorf("contacts: load local persons: %w", err)
	}
	var locals []*core.Entity
	for _, e := range allEntities {
		if e.EntityType == core.EntityTypePerson {
			locals = append(locals, e)
		}
	}
	idx := BuildIndex(locals)
	matchedLocal := make(map[string]bool, len(locals))

	// Stream remote pages instead of loading the whole remote set.
	var unmatchedRemote []Contact
	cursor := ""
	processed := 0
	for {
		page, err := s.Provider.List(ctx, cursor, remoteBatchSize)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(rl.RetryAfter):
			}
			page, err = s.Provider.List(ctx, cursor, remoteBatchSize)
		}
		if err != nil {
			return summary, fmt.Errorf("contacts: list remote contacts: %w", err)
		}

		for _, c := range page.Contacts {
			// 2. Match, first match wins.
			local, ok := idx.Match(c)
			if !ok {
				unmatchedRemote = append(unmatchedRemote, c)
				continue
			}
			matchedLocal[local.ID] = true

			// 3. Sync matched pair.
			if err := s.syncMatchedPair(ctx, userID, local, c, opts, &summary); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, err.Error())
			}
		}

		processed += len(page.Contacts)
		if opts.Progress != nil {
			opts.Progress(processed)
		}

		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	// 4. Detect duplicates among the unmatched remote set (and, for
	// export, the unmatched local set too).
	dupCandidates := make([]Contact, len(unmatchedRemote))
	copy(dupCandidates, unmatchedRemote)

	var unmatchedLocal []*core.Entity
	for _, e := range locals {
		if !matchedLocal[e.ID] {
			unmatchedLocal = append(unmatchedLocal, e)
			if opts.Direction == DirectionExport || opts.Direction == DirectionBoth {
				dupCandidates = append(dupCandidates, entityToContact(e))
			}
		}
	}

	pairs, err := FindDuplicates(ctx, dupCandidates, s.Judge, opts.PreThreshold, opts.JudgeThreshold, opts.AutoMerge)
	if err != nil {
		return summary, err
	}
	summary.DuplicatesFound = len(pairs)

	dupUIDs := make(map[string]bool)
	for _, p := range pairs {
		if p.Merged {
			summary.Merged++
			dupUIDs[p.B.UID] = true
		}
	}

	// 5a. Import unmatched remotes as new entities.
	if opts.Direction == DirectionImport || opts.Direction == DirectionBoth {
		for _, c := range unmatchedRemote {
			if dupUIDs[c.UID] {
				summary.Skipped++
				continue
			}
			if opts.DryRun {
				summary.Imported++
				continue
			}
			if err := s.importContact(ctx, userID, c); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, err.Error())
				continue
			}
			summary.Imported++
		}
	}

	// 5b. Export unmatched locals as new remote contacts.
	if opts.Direction == DirectionExport || opts.Direction == DirectionBoth {
		for _, e := range unmatchedLocal {
			if opts.DryRun {
				summary.Exported++
				continue
			}
			if err := s.exportEntity(ctx, userID, e); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, err.Error())
				continue
			}
			summary.Exported++
		}
	}

	return summary, nil
}

func (s *Syncer) syncMatchedPair(ctx context.Context, userID string, local *core.Entity, remote Contact, opts Options, summary *Summary) error {
	if opts.DryRun {
		summary.Updated++
		return nil
	}

	localNewer := local.UpdatedAt.After(remote.UpdatedAt)

	switch opts.ConflictPolicy {
	case ConflictOldest:
		if localNewer {
			return s.pushToRemote(ctx, local)
		}
		return s.pullFromRemote(ctx, userID, local, remote)
	case ConflictMerge:
		return s.mergeEntityAndContact(ctx, userID, local, remote)
	default: // ConflictNewest
		if localNewer {
			return s.pushToRemote(ctx, local)
		}
		return s.pullFromRemote(ctx, userID, local, remote)
	}
}

func (s *Syncer) pushToRemote(ctx context.Context, local *core.Entity) error {
	_, err := s.Provider.Upsert(ctx, entityToContact(local))
	return err
}

func (s *Syncer) pullFromRemote(ctx context.Context, userID string, local *core.Entity, remote Contact) error {
	patch := contactToPatch(remote)
	_, err := s.Store.UpdateEntity(ctx, local.ID, userID, patch)
	return err
}

// mergeEntityAndContact unions non-empty fields into both the entity
// and the remote contact. Where both sides set a field, the side
// updated more recently wins, except Notes: differing notes are kept
// by appending the older side's notes to the newer in a dated block.
func (s *Syncer) mergeEntityAndContact(ctx context.Context, userID string, local *core.Entity, remote Contact) error {
	remoteNewer := remote.UpdatedAt.After(local.UpdatedAt)

	merge := func(localVal, remoteVal string) *string {
		switch {
		case localVal == "" && remoteVal == "":
			return nil
		case localVal == "":
			return &remoteVal
		case remoteVal == "":
			return &localVal
		case remoteNewer:
			return &remoteVal
		default:
			return &localVal
		}
	}

	notes := merge(local.Notes, remote.Notes)
	if local.Notes != "" && remote.Notes != "" && local.Notes != remote.Notes {
		newer, older, olderSide := local.Notes, remote.Notes, "provider"
		if remoteNewer {
			newer, older, olderSide = remote.Notes, local.Notes, "store"
		}
		combined := fmt.Sprintf("%s\n\n--- merged from %s on %s ---\n%s", newer, olderSide, time.Now().UTC().Format("2006-01-02"), older)
		notes = &combined
	}

	patch := &store.EntityPatch{
		Name:      merge(local.Name, remote.Name),
		FirstName: merge(local.FirstName, remote.FirstName),
		LastName:  merge(local.LastName, remote.LastName),
		Company:   merge(local.Company, remote.Company),
		Title:     merge(local.Title, remote.Title),
		Email:     merge(local.Email, remote.Email),
		Phone:     merge(local.Phone, remote.Phone),
		Address:   merge(local.Address, remote.Address),
		Website:   merge(local.Website, remote.Website),
		Notes:     notes,
	}
	if _, err := s.Store.UpdateEntity(ctx, local.ID, userID, patch); err != nil {
		return err
	}

	merged := *local
	for dst, v := range map[*string]*string{
		&merged.Name: patch.Name, &merged.FirstName: patch.FirstName, &merged.LastName: patch.LastName,
		&merged.Company: patch.Company, &merged.Title: patch.Title, &merged.Email: patch.Email,
		&merged.Phone: patch.Phone, &merged.Address: patch.Address, &merged.Website: patch.Website,
		&merged.Notes: patch.Notes,
	} {
		if v != nil {
			*dst = *v
		}
	}
	_, err := s.Provider.Upsert(ctx, entityToContact(&merged))
	return err
}

func (s *Syncer) importContact(ctx context.Context, userID string, c Contact) error {
	now := time.Now()
	e := &core.Entity{
		EntityType: core.EntityTypePerson,
		Name:       c.Name,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Company:    c.Company,
		Title:      c.Title,
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    c.Address,
		Website:    c.Website,
		Notes:      c.Notes,
		Metadata:   map[string]any{externalUIDKey: c.UID},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.Store.CreateEntity(ctx, userID, e)
	return err
}

func (s *Syncer) exportEntity(ctx context.Context, userID string, e *core.Entity) error {
	uid, err := s.Provider.Upsert(ctx, entityToContact(e))
	if err != nil {
		return err
	}
	metadata := map[string]any{externalUIDKey: uid}
	for k, v := range e.Metadata {
		if k != externalUIDKey {
			metadata[k] = v
		}
	}
	_, err = s.Store.UpdateEntity(ctx, e.ID, userID, &store.EntityPatch{Metadata: metadata, MetadataSet: true})
	return err
}

func entityToContact(e *core.Entity) Contact {
	uid := e.ExternalUID()
	if uid == "" {
		// Never round-tripped through a provider yet: stamp the card
		// with this entity's own id rather than an empty UID, so the
		// provider's X-MCP-UUID always resolves back to it.
		uid = e.ID
	}
	return Contact{
		UID:       uid,
		Name:      e.Name,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Company:   e.Company,
		Title:     e.Title,
		Email:     e.Email,
		Phone:     e.Phone,
		Address:   e.Address,
		Website:   e.Website,
		Notes:     e.Notes,
		UpdatedAt: e.UpdatedAt,
	}
}

func contactToPatch(c Contact) *store.EntityPatch {
	return &store.EntityPatch{
		Name:    strPtr(c.Name),
		Company: strPtr(c.Company),
		Title:   strPtr(c.Title),
		Email:   strPtr(c.Email),
		Phone:   strPtr(c.Phone),
		Address: strPtr(c.Address),
		Website: strPtr(c.Website),
		Notes:   strPtr(c.Notes),
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
