package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/internal/storage/postgres"
	"github.com/scrypster/recollect/pkg/types"
)

// postgresTestDSN returns the DSN for the test database. If
// POSTGRES_TEST_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh Store connected to the test database,
// applies the schema, truncates leftovers, and registers cleanup.
func newTestStore(t *testing.T, opts postgres.Options) *postgres.Store {
	t.Helper()

	if opts.MaxContentChars == 0 {
		opts.MaxContentChars = 20000
	}
	if opts.MaxRawTextChars == 0 {
		opts.MaxRawTextChars = 200000
	}

	store, err := postgres.New(postgresTestDSN(t), opts)
	require.NoError(t, err, "New should succeed")

	require.NoError(t, store.TruncateForTest(context.Background()))
	t.Cleanup(func() { store.Close() })

	return store
}

func createTestContext(t *testing.T, store *postgres.Store, namespace, contextID string) {
	t.Helper()
	_, err := store.CreateContext(context.Background(), &types.Context{
		Namespace: namespace,
		ContextID: contextID,
	})
	require.NoError(t, err)
}

// ---- Context tests ----

func TestCreateContextUpsertMerge(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()

	first, err := store.CreateContext(ctx, &types.Context{
		Namespace:   "proj",
		ContextID:   "main",
		Description: "original description",
		Owner:       "alice",
		Tags:        []string{"one"},
		Metadata:    map[string]interface{}{"a": "1", "b": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "original description", first.Description)

	// Second create with sparse fields: description/owner kept, tags
	// kept (none supplied), metadata merged key-wise.
	second, err := store.CreateContext(ctx, &types.Context{
		Namespace: "proj",
		ContextID: "main",
		Metadata:  map[string]interface{}{"b": "3", "c": "4"},
	})
	require.NoError(t, err)

	assert.Equal(t, "original description", second.Description)
	assert.Equal(t, "alice", second.Owner)
	assert.Equal(t, []string{"one"}, second.Tags)
	assert.Equal(t, "1", second.Metadata["a"])
	assert.Equal(t, "3", second.Metadata["b"])
	assert.Equal(t, "4", second.Metadata["c"])

	// Supplied tags replace wholesale.
	third, err := store.CreateContext(ctx, &types.Context{
		Namespace: "proj",
		ContextID: "main",
		Tags:      []string{"two", "three"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, third.Tags)
}

func TestDeleteContextReturnsBool(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()

	createTestContext(t, store, "proj", "main")

	removed, err := store.DeleteContext(ctx, "proj", "main")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.DeleteContext(ctx, "proj", "main")
	require.NoError(t, err)
	assert.False(t, removed)
}

// ---- Alias tests ----

func TestAliasLifecycle(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()

	createTestContext(t, store, "proj", "main")

	_, err := store.SetAlias(ctx, &types.ContextAlias{Alias: "work", Namespace: "proj", ContextID: "main"})
	require.NoError(t, err)

	ns, cid, err := store.ResolveAlias(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "proj", ns)
	assert.Equal(t, "main", cid)

	_, _, err = store.ResolveAlias(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Alias to a missing context cannot be created.
	_, err = store.SetAlias(ctx, &types.ContextAlias{Alias: "bad", Namespace: "proj", ContextID: "ghost"})
	assert.ErrorIs(t, err, storage.ErrContextNotFound)

	// A dangling alias resolves as not found but is still readable.
	removed, err := store.DeleteContext(ctx, "proj", "main")
	require.NoError(t, err)
	require.True(t, removed)

	_, _, err = store.ResolveAlias(ctx, "work")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	a, err := store.GetAlias(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "main", a.ContextID)
}

// ---- Entry tests ----

func TestUpsertEntryRequiresContext(t *testing.T) {
	store := newTestStore(t, postgres.Options{})

	_, err := store.UpsertEntry(context.Background(), &types.Entry{
		Namespace: "proj",
		ContextID: "ghost",
		EntryType: types.EntryNote,
		Content:   "orphan",
	}, storage.UpsertInsert)
	assert.ErrorIs(t, err, storage.ErrContextNotFound)
}

func TestUpsertEntryInsertGeneratesID(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	stored, err := store.UpsertEntry(ctx, &types.Entry{
		Namespace: "proj",
		ContextID: "main",
		EntryType: types.EntryFact,
		Content:   "the sky is blue",
	}, storage.UpsertInsert)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.EntryID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestUpsertEntryUpdateMissingFails(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	_, err := store.UpsertEntry(ctx, &types.Entry{
		Namespace: "proj",
		ContextID: "main",
		EntryID:   "no-such-entry",
		EntryType: types.EntryNote,
		Content:   "updated",
	}, storage.UpsertUpdate)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertEntryReplaceIsSingleton(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	write := func(content string) {
		_, err := store.UpsertEntry(ctx, &types.Entry{
			Namespace: "proj",
			ContextID: "main",
			EntryID:   "latest_summary",
			EntryType: types.EntrySummary,
			Content:   content,
		}, storage.UpsertReplace)
		require.NoError(t, err)
	}
	write("A")
	write("B")

	results, err := store.SearchEntries(ctx, storage.SearchOptions{
		Namespace: "proj",
		ContextID: "main",
		Types:     []types.EntryType{types.EntrySummary},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "latest_summary", results[0].EntryID)
	assert.Equal(t, "B", results[0].Content)
}

func TestRawTextRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		store := newTestStore(t, postgres.Options{CompressRawText: compress})
		ctx := context.Background()
		createTestContext(t, store, "proj", "main")

		stored, err := store.UpsertEntry(ctx, &types.Entry{
			Namespace: "proj",
			ContextID: "main",
			EntryType: types.EntryNote,
			Content:   "summary of the call",
			RawText:   "full transcript of the call with every word",
		}, storage.UpsertInsert)
		require.NoError(t, err)

		// Withheld by default.
		got, err := store.GetEntry(ctx, "proj", "main", stored.EntryID, false)
		require.NoError(t, err)
		assert.Empty(t, got.RawText)

		// Returned verbatim on explicit request.
		got, err = store.GetEntry(ctx, "proj", "main", stored.EntryID, true)
		require.NoError(t, err)
		assert.Equal(t, "full transcript of the call with every word", got.RawText)
	}
}

func TestSearchEntriesDecisionScenario(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	write := func(entryType types.EntryType, content string, importance int) {
		_, err := store.UpsertEntry(ctx, &types.Entry{
			Namespace:  "proj",
			ContextID:  "main",
			EntryType:  entryType,
			Content:    content,
			Importance: importance,
		}, storage.UpsertInsert)
		require.NoError(t, err)
	}
	write(types.EntryDecision, "we will ship the migration in June", 80)
	write(types.EntryDecision, "lunch menu decided", 10)
	write(types.EntryNote, "migration notes and caveats", 90)

	results, err := store.SearchEntries(ctx, storage.SearchOptions{
		Namespace: "proj",
		ContextID: "main",
		Query:     "migration",
		Types:     []types.EntryType{types.EntryDecision},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "we will ship the migration in June", results[0].Content)
}

func TestCleanupExpiredEntries(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	for _, expiry := range []*time.Time{&past, &future, nil} {
		_, err := store.UpsertEntry(ctx, &types.Entry{
			Namespace: "proj",
			ContextID: "main",
			EntryType: types.EntryNote,
			Content:   "entry",
			ExpiresAt: expiry,
		}, storage.UpsertInsert)
		require.NoError(t, err)
	}

	// The expired entry is invisible to search before cleanup.
	results, err := store.SearchEntries(ctx, storage.SearchOptions{
		Namespace: "proj", ContextID: "main",
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// But visible when expired entries are requested.
	results, err = store.SearchEntries(ctx, storage.SearchOptions{
		Namespace: "proj", ContextID: "main", IncludeExpired: true,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	n, err := store.CleanupExpiredEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteEntryReturnsBool(t *testing.T) {
	store := newTestStore(t, postgres.Options{})
	ctx := context.Background()
	createTestContext(t, store, "proj", "main")

	stored, err := store.UpsertEntry(ctx, &types.Entry{
		Namespace: "proj",
		ContextID: "main",
		EntryType: types.EntryNote,
		Content:   "to be removed",
	}, storage.UpsertInsert)
	require.NoError(t, err)

	removed, err := store.DeleteEntry(ctx, "proj", "main", stored.EntryID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.DeleteEntry(ctx, "proj", "main", stored.EntryID)
	require.NoError(t, err)
	assert.False(t, removed)
}
