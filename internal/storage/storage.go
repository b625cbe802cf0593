// Package storage defines the persistence abstraction for the
// Recollect system: context, alias, and entry CRUD plus search
// execution and TTL cleanup. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/scrypster/recollect/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrContextNotFound indicates that an entry write targeted a
	// context that does not exist. Entry writes never auto-create
	// their context.
	ErrContextNotFound = errors.New("context not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// SearchMode selects how entry search is executed and ordered.
type SearchMode string

const (
	// ModeFTS ranks by full-text relevance when a query is present,
	// otherwise by importance and recency.
	ModeFTS SearchMode = "fts"

	// ModeVector orders by distance to the supplied query embedding.
	ModeVector SearchMode = "vector"

	// ModeHybrid applies vector ordering while retaining any
	// full-text predicate as a narrowing filter.
	ModeHybrid SearchMode = "hybrid"
)

// UpsertMode selects how an entry write resolves against existing rows.
type UpsertMode int

const (
	// UpsertInsert inserts a new row under a freshly generated id.
	// Selected when the caller supplied no entry id.
	UpsertInsert UpsertMode = iota

	// UpsertUpdate updates the row with the caller-supplied id and
	// fails with ErrNotFound when no such row exists in the context.
	// This guards against silently creating under an update call.
	UpsertUpdate

	// UpsertReplace inserts or replaces under a deterministic id.
	// Used for the canonical "latest" entry family.
	UpsertReplace
)

// SearchOptions carries normalized entry-search parameters. Search is
// always scoped to exactly one context.
type SearchOptions struct {
	Namespace string
	ContextID string

	// Query is the optional free-text predicate.
	Query string

	// Tags filters to entries overlapping any listed tag.
	Tags []string

	// Types filters to entries matching any listed entry type.
	Types []types.EntryType

	// IncludeExpired retains entries whose TTL has passed.
	IncludeExpired bool

	Mode SearchMode

	// Embedding is the query vector for vector/hybrid modes.
	Embedding []float32

	// Limit is the maximum result count; implementations clamp it to
	// types.MaxSearchLimit regardless of the requested value.
	Limit int
}

// Store exposes context, alias, and entry persistence. Uniqueness of
// (namespace, context_id) and of alias strings is guaranteed by the
// backing engine's atomic conflict resolution on insert, not by
// application-level locking.
type Store interface {
	// CreateContext creates or updates a context (idempotent upsert
	// keyed on namespace + context_id). On conflict, description and
	// owner are replaced only when the new value is non-empty, tags
	// are replaced wholesale only when a tag list was supplied, and
	// metadata is merged key-wise rather than replaced.
	CreateContext(ctx context.Context, c *types.Context) (*types.Context, error)

	// ListContexts returns all contexts ordered by namespace then id.
	ListContexts(ctx context.Context) ([]types.Context, error)

	// DeleteContext removes a context and cascades to its entries.
	// Returns false (not an error) when no such context exists.
	DeleteContext(ctx context.Context, namespace, contextID string) (bool, error)

	// SetAlias creates or updates an alias (upsert keyed on alias).
	SetAlias(ctx context.Context, a *types.ContextAlias) (*types.ContextAlias, error)

	// ListAliases returns all aliases ordered by alias.
	ListAliases(ctx context.Context) ([]types.ContextAlias, error)

	// GetAlias returns the stored alias record, dangling or not.
	// Returns ErrNotFound when the alias does not exist.
	GetAlias(ctx context.Context, alias string) (*types.ContextAlias, error)

	// DeleteAlias removes an alias. Returns false, not an error, when
	// the alias does not exist.
	DeleteAlias(ctx context.Context, alias string) (bool, error)

	// ResolveAlias resolves an alias to its target context. An alias
	// pointing at a deleted context is reported as ErrNotFound, never
	// as an error about the alias itself.
	ResolveAlias(ctx context.Context, alias string) (namespace, contextID string, err error)

	// UpsertEntry writes an entry according to mode. The target
	// context must already exist (ErrContextNotFound otherwise).
	// Returns the stored entry with its final id and timestamps.
	UpsertEntry(ctx context.Context, e *types.Entry, mode UpsertMode) (*types.Entry, error)

	// GetEntry fetches one entry by id within a context. Raw text is
	// withheld unless includeRaw is set; compressed raw text is
	// decompressed transparently. Returns ErrNotFound when missing.
	GetEntry(ctx context.Context, namespace, contextID, entryID string, includeRaw bool) (*types.Entry, error)

	// SearchEntries executes a search built from opts.
	SearchEntries(ctx context.Context, opts SearchOptions) ([]types.Entry, error)

	// DeleteEntry removes one entry. Returns false, not an error,
	// when no row matched.
	DeleteEntry(ctx context.Context, namespace, contextID, entryID string) (bool, error)

	// CleanupExpiredEntries removes every entry whose expiry instant
	// has passed and returns the count removed. Intended to run on a
	// timer external to per-request handling.
	CleanupExpiredEntries(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
