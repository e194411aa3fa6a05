package contacts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/contacts"
	"github.com/memscribe/memscribe/pkg/contacts/fake"
	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/llm"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

// fixedJudge returns the same verdict for every pair, for deterministic
// duplicate-detection tests.
type fixedJudge struct {
	result llm.JudgeResult
}

func (j fixedJudge) JudgeDuplicate(ctx context.Context, a, b string) (llm.JudgeResult, error) {
	return j.result, nil
}
func (j fixedJudge) Close() error { return nil }

func newTestStore(t *testing.T) *sqlite.Client {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestExportStampsEntityOwnIDAsUID is S6's first leg: a local entity
// never round-tripped through a provider carries no external uid, so
// the exported card must be stamped with the entity's own id rather
// than an empty uid the provider would otherwise mint one for.
func TestExportStampsEntityOwnIDAsUID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	id, err := st.CreateEntity(ctx, user, &core.Entity{
		EntityType: core.EntityTypePerson,
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
	})
	require.NoError(t, err)

	provider := fake.New()
	syncer := contacts.NewSyncer(st, provider, nil)

	summary, err := syncer.Sync(ctx, user, contacts.Options{Direction: contacts.DirectionExport})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Exported)

	reloaded, err := st.GetEntity(ctx, id, user)
	require.NoError(t, err)
	require.Equal(t, id, reloaded.ExternalUID(), "exported entity must carry its own id as the external uid")

	page, err := provider.List(ctx, "", 50)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 1)
	require.Equal(t, id, page.Contacts[0].UID)
}

// TestReimportMatchesExportedCardByUID is S6's second leg: re-syncing
// after an export matches the round-tripped card by uid rather than
// importing it as a new entity or flagging it as a duplicate.
func TestReimportMatchesExportedCardByUID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	id, err := st.CreateEntity(ctx, user, &core.Entity{
		EntityType: core.EntityTypePerson,
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
	})
	require.NoError(t, err)

	provider := fake.New()
	syncer := contacts.NewSyncer(st, provider, nil)

	_, err = syncer.Sync(ctx, user, contacts.Options{Direction: contacts.DirectionExport})
	require.NoError(t, err)

	summary, err := syncer.Sync(ctx, user, contacts.Options{
		Direction:      contacts.DirectionBoth,
		AutoMerge:      true,
		JudgeThreshold: 90,
	})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Imported, "a re-imported card matched by uid must not be imported as new")
	require.Equal(t, 0, summary.Merged)
	require.Equal(t, 0, summary.DuplicatesFound)

	_ = id
}

// TestDuplicateDetectionHonorsJudgeConfidenceThreshold is S6's third
// leg: a judge verdict at or above the confidence threshold merges the
// pair; below it, the pair is reported but left unmerged.
func TestDuplicateDetectionHonorsJudgeConfidenceThreshold(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	seedDuplicateRemotes := func(provider *fake.Adapter) {
		provider.Seed([]contacts.Contact{
			{UID: "remote-1", Name: "Grace Hopper", Email: "grace@example.com"},
			{UID: "remote-2", Name: "Grace Hopper", Email: "grace@example.com"},
		})
	}

	t.Run("confidence above threshold merges", func(t *testing.T) {
		provider := fake.New()
		seedDuplicateRemotes(provider)
		judge := fixedJudge{result: llm.JudgeResult{Duplicate: true, Confidence: 95}}
		syncer := contacts.NewSyncer(st, provider, judge)

		summary, err := syncer.Sync(ctx, user, contacts.Options{
			Direction:      contacts.DirectionImport,
			AutoMerge:      true,
			JudgeThreshold: 90,
		})
		require.NoError(t, err)
		require.Equal(t, 1, summary.DuplicatesFound)
		require.Equal(t, 1, summary.Merged)
	})

	t.Run("confidence below threshold leaves unmerged", func(t *testing.T) {
		// Fresh store scope isn't needed since import only touches entities,
		// but use a distinct user to keep the two subtests independent.
		provider := fake.New()
		seedDuplicateRemotes(provider)
		judge := fixedJudge{result: llm.JudgeResult{Duplicate: true, Confidence: 80}}
		syncer := contacts.NewSyncer(st, provider, judge)

		summary, err := syncer.Sync(ctx, "u2", contacts.Options{
			Direction:      contacts.DirectionImport,
			AutoMerge:      true,
			JudgeThreshold: 90,
		})
		require.NoError(t, err)
		require.Equal(t, 1, summary.DuplicatesFound)
		require.Equal(t, 0, summary.Merged)
	})
}
