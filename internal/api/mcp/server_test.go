package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recollect/internal/config"
	"github.com/scrypster/recollect/internal/policy"
	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

// mockStore is an in-memory storage.Store good enough for dispatcher
// tests. It records the last upsert mode so tests can assert mode
// selection without a database.
type mockStore struct {
	contexts map[string]*types.Context
	aliases  map[string]*types.ContextAlias
	entries  map[string]*types.Entry

	lastUpsertMode  storage.UpsertMode
	lastSearchOpts  storage.SearchOptions
	searchResults   []types.Entry
	cleanupExpired  int
	failNextWithErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		contexts: make(map[string]*types.Context),
		aliases:  make(map[string]*types.ContextAlias),
		entries:  make(map[string]*types.Entry),
	}
}

func contextKey(namespace, contextID string) string {
	return namespace + "/" + contextID
}

func entryKey(namespace, contextID, entryID string) string {
	return namespace + "/" + contextID + "/" + entryID
}

func (m *mockStore) CreateContext(_ context.Context, c *types.Context) (*types.Context, error) {
	if m.failNextWithErr != nil {
		return nil, m.failNextWithErr
	}
	stored := *c
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.contexts[contextKey(c.Namespace, c.ContextID)] = &stored
	return &stored, nil
}

func (m *mockStore) ListContexts(_ context.Context) ([]types.Context, error) {
	var out []types.Context
	for _, c := range m.contexts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockStore) DeleteContext(_ context.Context, namespace, contextID string) (bool, error) {
	key := contextKey(namespace, contextID)
	_, ok := m.contexts[key]
	delete(m.contexts, key)
	return ok, nil
}

func (m *mockStore) SetAlias(_ context.Context, a *types.ContextAlias) (*types.ContextAlias, error) {
	if _, ok := m.contexts[contextKey(a.Namespace, a.ContextID)]; !ok {
		return nil, storage.ErrContextNotFound
	}
	stored := *a
	m.aliases[a.Alias] = &stored
	return &stored, nil
}

func (m *mockStore) ListAliases(_ context.Context) ([]types.ContextAlias, error) {
	var out []types.ContextAlias
	for _, a := range m.aliases {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockStore) GetAlias(_ context.Context, alias string) (*types.ContextAlias, error) {
	a, ok := m.aliases[alias]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (m *mockStore) DeleteAlias(_ context.Context, alias string) (bool, error) {
	_, ok := m.aliases[alias]
	delete(m.aliases, alias)
	return ok, nil
}

func (m *mockStore) ResolveAlias(_ context.Context, alias string) (string, string, error) {
	a, ok := m.aliases[alias]
	if !ok {
		return "", "", storage.ErrNotFound
	}
	if _, ok := m.contexts[contextKey(a.Namespace, a.ContextID)]; !ok {
		return "", "", storage.ErrNotFound
	}
	return a.Namespace, a.ContextID, nil
}

func (m *mockStore) UpsertEntry(_ context.Context, e *types.Entry, mode storage.UpsertMode) (*types.Entry, error) {
	m.lastUpsertMode = mode
	if _, ok := m.contexts[contextKey(e.Namespace, e.ContextID)]; !ok {
		return nil, storage.ErrContextNotFound
	}
	stored := *e
	if stored.EntryID == "" {
		stored.EntryID = fmt.Sprintf("generated-%d", len(m.entries)+1)
	}
	key := entryKey(stored.Namespace, stored.ContextID, stored.EntryID)
	if mode == storage.UpsertUpdate {
		if _, ok := m.entries[key]; !ok {
			return nil, storage.ErrNotFound
		}
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.entries[key] = &stored
	return &stored, nil
}

func (m *mockStore) GetEntry(_ context.Context, namespace, contextID, entryID string, includeRaw bool) (*types.Entry, error) {
	e, ok := m.entries[entryKey(namespace, contextID, entryID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *e
	if !includeRaw {
		out.RawText = ""
	}
	return &out, nil
}

func (m *mockStore) SearchEntries(_ context.Context, opts storage.SearchOptions) ([]types.Entry, error) {
	m.lastSearchOpts = opts
	return m.searchResults, nil
}

func (m *mockStore) DeleteEntry(_ context.Context, namespace, contextID, entryID string) (bool, error) {
	key := entryKey(namespace, contextID, entryID)
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *mockStore) CleanupExpiredEntries(_ context.Context) (int, error) {
	return m.cleanupExpired, nil
}

func (m *mockStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T, store storage.Store, vector bool) *Server {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return NewServer(store, policy.NewEngine(cfg), WithConfig(cfg), WithVectorCapability(vector))
}

func seedContext(t *testing.T, store *mockStore, namespace, contextID string) {
	t.Helper()
	_, err := store.CreateContext(context.Background(), &types.Context{
		Namespace: namespace,
		ContextID: contextID,
		Scope:     types.ScopeLocal,
	})
	require.NoError(t, err)
}

func callRaw(t *testing.T, s *Server, payload string) *JSONRPCResponse {
	t.Helper()
	raw, err := s.HandleRequest(context.Background(), []byte(payload))
	require.NoError(t, err)
	require.NotNil(t, raw)
	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return &resp
}

func callTool(t *testing.T, s *Server, tool string, args map[string]interface{}) *JSONRPCResponse {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      tool,
			"arguments": args,
		},
	})
	require.NoError(t, err)
	return callRaw(t, s, string(payload))
}

// toolResult unmarshals the first content block of a successful tool
// call into dest and returns the remaining blocks.
func toolResult(t *testing.T, resp *JSONRPCResponse, dest interface{}) []MCPToolCallContent {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected JSON-RPC error: %+v", resp.Error)
	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result MCPToolCallResult
	require.NoError(t, json.Unmarshal(resultJSON, &result))
	require.NotEmpty(t, result.Content)
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), dest))
	return result.Content[1:]
}

// ---------------------------------------------------------------------------
// envelope behavior
// ---------------------------------------------------------------------------

func TestHandleRequestParseError(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
	assert.Equal(t, json.RawMessage("null"), resp.ID)
}

func TestHandleRequestInvalidVersion(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"1.0","id":7,"method":"tools/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, json.RawMessage("7"), resp.ID)
}

func TestHandleRequestMethodNotFound(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"no/such"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestHandleRequestNotificationProducesNoResponse(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	raw, err := s.HandleRequest(context.Background(), []byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestHandleRequestNullIDIsNotNotification(t *testing.T) {
	// id:null is present-but-null, which is a real (if discouraged)
	// request id, unlike an absent id.
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":null,"method":"tools/list"}`)
	assert.Nil(t, resp.Error)
}

func TestBatchMixedRequestsAndNotifications(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	payload := `[
		{"jsonrpc":"2.0","id":1,"method":"tools/list"},
		{"jsonrpc":"2.0","method":"initialized"},
		{"jsonrpc":"2.0","id":2,"method":"no/such"}
	]`
	raw, err := s.HandleRequest(context.Background(), []byte(payload))
	require.NoError(t, err)
	var responses []JSONRPCResponse
	require.NoError(t, json.Unmarshal(raw, &responses))
	require.Len(t, responses, 2, "notification must be dropped from batch output")

	byID := map[string]*JSONRPCResponse{}
	for i := range responses {
		byID[string(responses[i].ID)] = &responses[i]
	}
	assert.Nil(t, byID["1"].Error)
	require.NotNil(t, byID["2"].Error)
	assert.Equal(t, ErrCodeMethodNotFound, byID["2"].Error.Code)
}

func TestBatchAllNotifications(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	raw, err := s.HandleRequest(context.Background(), []byte(`[{"jsonrpc":"2.0","method":"initialized"}]`))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestBatchEmpty(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `[]`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t, newMockStore(), true)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	require.Nil(t, resp.Error)
	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result MCPInitializeResult
	require.NoError(t, json.Unmarshal(resultJSON, &result))
	assert.Equal(t, "recollect", result.ServerInfo.Name)
	assert.True(t, result.Vector)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestToolsListCataloguesEveryTool(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, resp.Error)
	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result MCPToolsListResult
	require.NoError(t, json.Unmarshal(resultJSON, &result))

	want := []string{
		"context_create", "context_list", "context_delete",
		"context_alias_set", "context_alias_list", "context_alias_get", "context_alias_delete",
		"entry_upsert", "entry_latest_upsert", "entry_latest_get",
		"entry_get", "entry_search", "entry_delete",
	}
	var got []string
	for _, tool := range result.Tools {
		got = append(got, tool.Name)
	}
	assert.ElementsMatch(t, want, got)
}

func TestUnknownToolIsInvalidParams(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callTool(t, s, "entry_obliterate", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

// ---------------------------------------------------------------------------
// addressing
// ---------------------------------------------------------------------------

func TestResolveAddressRejectsBothForms(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_get", map[string]interface{}{
		"alias": "short", "namespace": "proj", "context_id": "main", "entry_id": "e1",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestResolveAddressRejectsNeitherForm(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callTool(t, s, "entry_get", map[string]interface{}{"entry_id": "e1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestResolveAddressMissingAliasIsServerError(t *testing.T) {
	// A missing alias in an addressing position is a hard failure,
	// not an empty result.
	s := newTestServer(t, newMockStore(), false)
	resp := callTool(t, s, "entry_get", map[string]interface{}{"alias": "ghost", "entry_id": "e1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeServerError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ghost")
}

func TestResolveAddressViaAlias(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	store.aliases["short"] = &types.ContextAlias{Alias: "short", Namespace: "proj", ContextID: "main"}
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"alias":   "short",
		"content": "hello",
	})
	var result EntryUpsertResult
	toolResult(t, resp, &result)
	assert.Equal(t, "proj", result.Entry.Namespace)
	assert.Equal(t, "main", result.Entry.ContextID)
}

// ---------------------------------------------------------------------------
// context and alias tools
// ---------------------------------------------------------------------------

func TestContextCreateAndList(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)

	resp := callTool(t, s, "context_create", map[string]interface{}{
		"namespace":   "proj",
		"context_id":  "main",
		"description": "main working context",
		"tags":        []string{"work"},
	})
	var created ContextCreateResult
	toolResult(t, resp, &created)
	require.NotNil(t, created.Context)
	assert.Equal(t, "proj", created.Context.Namespace)
	assert.Equal(t, types.ScopeLocal, created.Context.Scope)

	resp = callTool(t, s, "context_list", map[string]interface{}{})
	var listed ContextListResult
	toolResult(t, resp, &listed)
	assert.Equal(t, 1, listed.Total)
}

func TestContextCreateRejectsBadIdentifier(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callTool(t, s, "context_create", map[string]interface{}{
		"namespace":  "has spaces!",
		"context_id": "main",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestAliasLifecycle(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "context_alias_set", map[string]interface{}{
		"alias": "short", "namespace": "proj", "context_id": "main",
	})
	var set AliasSetResult
	toolResult(t, resp, &set)
	require.NotNil(t, set.Alias)

	resp = callTool(t, s, "context_alias_get", map[string]interface{}{"alias": "short"})
	var got AliasGetResult
	toolResult(t, resp, &got)
	assert.True(t, got.Found)

	resp = callTool(t, s, "context_alias_get", map[string]interface{}{"alias": "ghost"})
	var missing AliasGetResult
	toolResult(t, resp, &missing)
	assert.False(t, missing.Found)

	resp = callTool(t, s, "context_alias_delete", map[string]interface{}{"alias": "short"})
	var deleted AliasDeleteResult
	toolResult(t, resp, &deleted)
	assert.True(t, deleted.Deleted)
}

func TestAliasSetGhostContextIsServerError(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callTool(t, s, "context_alias_set", map[string]interface{}{
		"alias": "short", "namespace": "proj", "context_id": "ghost",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeServerError, resp.Error.Code)
}

// ---------------------------------------------------------------------------
// entry tools
// ---------------------------------------------------------------------------

func TestEntryUpsertModeSelection(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	// No id: insert under a generated id.
	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "content": "first",
	})
	var inserted EntryUpsertResult
	toolResult(t, resp, &inserted)
	assert.Equal(t, storage.UpsertInsert, store.lastUpsertMode)
	assert.NotEmpty(t, inserted.Entry.EntryID)
	assert.Equal(t, types.EntryNote, inserted.Entry.EntryType)

	// Explicit id: update in place.
	resp = callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"entry_id": inserted.Entry.EntryID, "content": "second",
	})
	var updated EntryUpsertResult
	toolResult(t, resp, &updated)
	assert.Equal(t, storage.UpsertUpdate, store.lastUpsertMode)
	assert.Equal(t, "Entry updated.", updated.Message)
}

func TestEntryUpsertUnknownIDFails(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"entry_id": "never-stored", "content": "x",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeServerError, resp.Error.Code)
}

func TestEntryUpsertImportanceOutOfRange(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	for _, importance := range []float64{-1, 101} {
		resp := callTool(t, s, "entry_upsert", map[string]interface{}{
			"namespace": "proj", "context_id": "main",
			"content": "x", "importance": importance,
		})
		require.NotNil(t, resp.Error, "importance %v must be rejected", importance)
		assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	}
}

func TestEntryUpsertNegativeTTLRejected(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"content": "x", "ttl_seconds": -5,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestEntryUpsertTTLSetsExpiry(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"content": "x", "ttl_seconds": 3600,
	})
	var result EntryUpsertResult
	toolResult(t, resp, &result)
	require.NotNil(t, result.Entry.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *result.Entry.ExpiresAt, time.Minute)
}

func TestEntryUpsertEmbeddingWithoutCapability(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"content": "x", "embedding": []float64{0.1, 0.2},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestEntryLatestUpsertForcesCanonicalID(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_latest_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"entry_type": "summary", "content": "state of the world",
	})
	var result EntryUpsertResult
	extra := toolResult(t, resp, &result)
	assert.Equal(t, "latest_summary", result.Entry.EntryID)
	assert.Equal(t, storage.UpsertReplace, store.lastUpsertMode)
	assert.Empty(t, extra, "no warning expected when no id was supplied")
}

func TestEntryLatestUpsertMismatchedIDWarns(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_latest_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"entry_id": "my-own-id", "entry_type": "summary", "content": "x",
	})
	var result EntryUpsertResult
	extra := toolResult(t, resp, &result)
	assert.Equal(t, "latest_summary", result.Entry.EntryID)
	require.Len(t, extra, 1, "mismatched id must surface a warning block")
	assert.Contains(t, extra[0].Text, "latest_summary")
}

func TestEntryLatestGetRoundTrip(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	callTool(t, s, "entry_latest_upsert", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"entry_type": "decision", "content": "use postgres",
	})

	resp := callTool(t, s, "entry_latest_get", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_type": "decision",
	})
	var got EntryGetResult
	toolResult(t, resp, &got)
	require.True(t, got.Found)
	assert.Equal(t, "use postgres", got.Entry.Content)

	resp = callTool(t, s, "entry_latest_get", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_type": "summary",
	})
	var missing EntryGetResult
	toolResult(t, resp, &missing)
	assert.False(t, missing.Found)
}

func TestEntryGetWithholdsRawTextByDefault(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	store.entries[entryKey("proj", "main", "e1")] = &types.Entry{
		Namespace: "proj", ContextID: "main", EntryID: "e1",
		EntryType: types.EntryNote, Content: "c", RawText: "big payload",
	}
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_get", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_id": "e1",
	})
	var withheld EntryGetResult
	toolResult(t, resp, &withheld)
	require.True(t, withheld.Found)
	assert.Empty(t, withheld.Entry.RawText)

	resp = callTool(t, s, "entry_get", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_id": "e1", "include_raw": true,
	})
	var full EntryGetResult
	toolResult(t, resp, &full)
	assert.Equal(t, "big payload", full.Entry.RawText)
}

func TestEntryGetMissingIsFoundFalse(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_get", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_id": "ghost",
	})
	var result EntryGetResult
	toolResult(t, resp, &result)
	assert.False(t, result.Found)
}

func TestEntryDelete(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	store.entries[entryKey("proj", "main", "e1")] = &types.Entry{
		Namespace: "proj", ContextID: "main", EntryID: "e1", Content: "c",
	}
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_delete", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_id": "e1",
	})
	var result EntryDeleteResult
	toolResult(t, resp, &result)
	assert.True(t, result.Deleted)

	resp = callTool(t, s, "entry_delete", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "entry_id": "e1",
	})
	var second EntryDeleteResult
	toolResult(t, resp, &second)
	assert.False(t, second.Deleted)
}

// ---------------------------------------------------------------------------
// search
// ---------------------------------------------------------------------------

func TestEntrySearchPassesNormalizedOptions(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	store.searchResults = []types.Entry{{EntryID: "e1"}}
	s := newTestServer(t, store, false)

	resp := callTool(t, s, "entry_search", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"query": "migration plan", "types": []string{"decision"},
		"tags": []string{"db"}, "limit": 0,
	})
	var result EntrySearchResult
	toolResult(t, resp, &result)
	assert.Equal(t, 1, result.Total)

	opts := store.lastSearchOpts
	assert.Equal(t, "proj", opts.Namespace)
	assert.Equal(t, storage.ModeFTS, opts.Mode)
	assert.Equal(t, []types.EntryType{types.EntryDecision}, opts.Types)
	assert.Equal(t, 10, opts.Limit, "zero limit must fall to the default")
}

func TestEntrySearchVectorModeNeedsCapability(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, false)

	for _, mode := range []string{"vector", "hybrid"} {
		resp := callTool(t, s, "entry_search", map[string]interface{}{
			"namespace": "proj", "context_id": "main",
			"mode": mode, "embedding": []float64{0.1},
		})
		require.NotNil(t, resp.Error, "mode %s must fail without capability", mode)
		assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	}
}

func TestEntrySearchVectorModeNeedsEmbedding(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, true)

	resp := callTool(t, s, "entry_search", map[string]interface{}{
		"namespace": "proj", "context_id": "main", "mode": "vector",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Contains(t, strings.ToLower(resp.Error.Message), "embedding")
}

func TestEntrySearchHybridMode(t *testing.T) {
	store := newMockStore()
	seedContext(t, store, "proj", "main")
	s := newTestServer(t, store, true)

	resp := callTool(t, s, "entry_search", map[string]interface{}{
		"namespace": "proj", "context_id": "main",
		"mode": "hybrid", "query": "plan", "embedding": []float64{0.1, 0.2},
	})
	var result EntrySearchResult
	toolResult(t, resp, &result)
	assert.Equal(t, storage.ModeHybrid, store.lastSearchOpts.Mode)
	assert.Len(t, store.lastSearchOpts.Embedding, 2)
}

// ---------------------------------------------------------------------------
// resources and prompts
// ---------------------------------------------------------------------------

func TestResourcesReadInstructions(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"memory://instructions"}}`)
	require.Nil(t, resp.Error)
	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result MCPResourcesReadResult
	require.NoError(t, json.Unmarshal(resultJSON, &result))
	require.Len(t, result.Contents, 1)
	assert.Contains(t, result.Contents[0].Text, "entry_latest_upsert")
}

func TestResourcesReadUnknownURI(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"memory://other"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestPromptsGet(t *testing.T) {
	s := newTestServer(t, newMockStore(), false)
	resp := callRaw(t, s, `{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"memory_instructions"}}`)
	require.Nil(t, resp.Error)

	resp = callRaw(t, s, `{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"other"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}
