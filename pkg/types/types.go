// Package types defines the core domain types for the Recollect memory
// system: namespaced contexts, the aliases that point at them, and the
// entries they own.
package types

import "time"

// EntryType classifies a single unit of stored memory.
type EntryType string

// The closed set of entry types. Anything outside this set is rejected
// during normalization.
const (
	EntrySummary  EntryType = "summary"
	EntryFact     EntryType = "fact"
	EntryDecision EntryType = "decision"
	EntryQuestion EntryType = "question"
	EntryNote     EntryType = "note"
	EntrySnippet  EntryType = "snippet"
	EntryTodo     EntryType = "todo"
)

// DefaultEntryType is used when a caller omits the entry type and the
// field is not explicitly required.
const DefaultEntryType = EntryNote

// EntryTypes returns all valid entry types in canonical order.
func EntryTypes() []EntryType {
	return []EntryType{
		EntrySummary,
		EntryFact,
		EntryDecision,
		EntryQuestion,
		EntryNote,
		EntrySnippet,
		EntryTodo,
	}
}

// IsValidEntryType reports whether s names a member of the closed entry
// type set.
func IsValidEntryType(s string) bool {
	switch EntryType(s) {
	case EntrySummary, EntryFact, EntryDecision, EntryQuestion,
		EntryNote, EntrySnippet, EntryTodo:
		return true
	}
	return false
}

// Scope controls the sharing semantics of a context.
type Scope string

const (
	// ScopeLocal marks a context owned by a single agent or workspace.
	ScopeLocal Scope = "local"

	// ScopeShared marks a context visible across agents.
	ScopeShared Scope = "shared"
)

// DefaultScope is applied when a caller omits the scope.
const DefaultScope = ScopeLocal

// IsValidScope reports whether s is a recognized scope value.
func IsValidScope(s string) bool {
	return Scope(s) == ScopeLocal || Scope(s) == ScopeShared
}

// Data-model limits. These are fixed properties of the schema, not
// deployment configuration; the content and raw-text ceilings are
// configured per deployment and live in the config package.
const (
	// MaxDescriptionChars bounds a context description.
	MaxDescriptionChars = 500

	// MaxTitleChars bounds an entry title.
	MaxTitleChars = 200

	// MaxTagCount bounds the number of tags on a context or entry.
	MaxTagCount = 64

	// MaxTagChars bounds a single tag.
	MaxTagChars = 160

	// MaxEmbeddingDims bounds a caller-supplied embedding vector.
	MaxEmbeddingDims = 4096

	// MaxImportance is the upper bound of the importance scale.
	MaxImportance = 100

	// MaxSearchLimit is the hard ceiling on search result counts,
	// applied regardless of what the caller requests.
	MaxSearchLimit = 100
)

// Context is a namespaced bucket of entries, identified by
// (namespace, context_id). A context exclusively owns its entries:
// deleting the context cascades to them.
type Context struct {
	Namespace   string                 `json:"namespace"`
	ContextID   string                 `json:"context_id"`
	Description string                 `json:"description,omitempty"` // ≤500 chars
	Tags        []string               `json:"tags,omitempty"`
	Scope       Scope                  `json:"scope"`
	Owner       string                 `json:"owner,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"` // merged, not replaced, on update
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ContextAlias is a stable short name resolving to a (namespace,
// context_id) pair. It is a weak reference: the target context may have
// been deleted, in which case resolution is treated as "not found"
// rather than an error about the alias itself.
type ContextAlias struct {
	Alias     string    `json:"alias"`
	Namespace string    `json:"namespace"`
	ContextID string    `json:"context_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is one unit of stored memory. Its entry_id is unique only
// within its owning context.
type Entry struct {
	Namespace string    `json:"namespace"`
	ContextID string    `json:"context_id"`
	EntryID   string    `json:"entry_id"`
	EntryType EntryType `json:"entry_type"`

	Title   string `json:"title,omitempty"` // ≤200 chars
	Content string `json:"content"`         // required, ≤ configured ceiling

	Tags       []string `json:"tags,omitempty"`
	Importance int      `json:"importance"` // 0–100
	CreatedBy  string   `json:"created_by,omitempty"`

	// RawText is the optional large free-text payload. It is withheld
	// from reads unless the caller explicitly asks for raw content; the
	// store owns whether it is persisted as plaintext or compressed.
	RawText string `json:"raw_text,omitempty"`

	// Embedding is a caller-supplied vector, legal only when the
	// deployment has vector capability enabled.
	Embedding []float32 `json:"embedding,omitempty"`

	Metadata  map[string]interface{} `json:"metadata,omitempty"` // replaced on update
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Expired reports whether the entry's TTL has passed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
