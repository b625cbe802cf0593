// Package normalize converts untrusted caller-supplied values into
// canonical, bounded domain values. It is the single point of defense
// against malformed input: every public field accepted from a caller
// passes through one of these functions before any other component
// sees it, and no other component re-validates.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

// ValidationError reports malformed or out-of-policy input. It always
// names the offending field so the caller can fix the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// invalid builds a ValidationError for the given field.
func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// maxIdentifierChars bounds namespace and context_id values.
const maxIdentifierChars = 128

// maxEntryIDChars bounds caller-supplied entry ids.
const maxEntryIDChars = 256

// hasControl reports whether s contains any control character.
func hasControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}

// hasSpace reports whether s contains any whitespace rune.
func hasSpace(s string) bool {
	return strings.ContainsFunc(s, unicode.IsSpace)
}

// Identifier normalizes a namespace or context_id: trimmed, non-empty,
// no control characters, no embedded whitespace, bounded length.
func Identifier(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalid(field, "is required")
	}
	if len(v) > maxIdentifierChars {
		return "", invalid(field, "exceeds %d characters", maxIdentifierChars)
	}
	if hasControl(v) {
		return "", invalid(field, "contains control characters")
	}
	if hasSpace(v) {
		return "", invalid(field, "must not contain whitespace")
	}
	return v, nil
}

// EntryID normalizes a caller-supplied entry id. Like Identifier but
// with a longer ceiling, since latest-family ids carry a prefix.
func EntryID(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	if len(v) > maxEntryIDChars {
		return "", invalid(field, "exceeds %d characters", maxEntryIDChars)
	}
	if hasControl(v) {
		return "", invalid(field, "contains control characters")
	}
	if hasSpace(v) {
		return "", invalid(field, "must not contain whitespace")
	}
	return v, nil
}

// OptionalString normalizes an optional bounded string: trimmed, no
// control characters other than newlines and tabs, bounded length.
// An empty result is legal.
func OptionalString(field, value string, max int) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	if len(v) > max {
		return "", invalid(field, "exceeds %d characters", max)
	}
	if strings.ContainsFunc(v, func(r rune) bool {
		return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
	}) {
		return "", invalid(field, "contains control characters")
	}
	return v, nil
}

// RequiredString is OptionalString with a non-empty requirement.
func RequiredString(field, value string, max int) (string, error) {
	v, err := OptionalString(field, value, max)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", invalid(field, "is required")
	}
	return v, nil
}

// TagSet normalizes a tag list into a deduplicated set preserving the
// relative order of first occurrence. Exceeding the count or per-item
// length cap is a hard failure, not truncation.
func TagSet(field string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if len(t) > types.MaxTagChars {
			return nil, invalid(field, "tag %q exceeds %d characters", t[:16]+"…", types.MaxTagChars)
		}
		if hasControl(t) {
			return nil, invalid(field, "tag contains control characters")
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > types.MaxTagCount {
		return nil, invalid(field, "more than %d tags", types.MaxTagCount)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// EntryTypeValue normalizes an entry type string against the closed
// set. When required is false an empty value defaults to "note".
func EntryTypeValue(field, value string, required bool) (types.EntryType, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		if required {
			return "", invalid(field, "is required")
		}
		return types.DefaultEntryType, nil
	}
	if !types.IsValidEntryType(v) {
		return "", invalid(field, "unknown entry type %q", v)
	}
	return types.EntryType(v), nil
}

// EntryTypeList normalizes a list of entry type filters.
func EntryTypeList(field string, values []string) ([]types.EntryType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]types.EntryType, 0, len(values))
	for _, v := range values {
		et, err := EntryTypeValue(field, v, true)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

// Importance normalizes an importance score. A nil pointer (the field
// was absent or null) yields 0. The value must be finite and inside
// [0,100]; anything outside the range is a failure rather than a clamp.
// In-range values are rounded to the nearest integer.
func Importance(field string, value *float64) (int, error) {
	if value == nil {
		return 0, nil
	}
	v := *value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(field, "must be a finite number")
	}
	if v < 0 || v > types.MaxImportance {
		return 0, invalid(field, "must be between 0 and %d", types.MaxImportance)
	}
	return int(math.Round(v)), nil
}

// ScopeValue normalizes a context scope, defaulting to "local".
func ScopeValue(field, value string) (types.Scope, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return types.DefaultScope, nil
	}
	if !types.IsValidScope(v) {
		return "", invalid(field, "must be %q or %q", types.ScopeLocal, types.ScopeShared)
	}
	return types.Scope(v), nil
}

// Embedding normalizes a caller-supplied vector: every component must
// be finite and the dimension count is bounded. An empty slice means
// no embedding. vectorEnabled gates whether an embedding is legal at
// all in this deployment.
func Embedding(field string, vec []float64, vectorEnabled bool) ([]float32, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if !vectorEnabled {
		return nil, invalid(field, "vector capability is not enabled on this server")
	}
	if len(vec) > types.MaxEmbeddingDims {
		return nil, invalid(field, "exceeds %d dimensions", types.MaxEmbeddingDims)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(field, "component %d is not finite", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// Metadata normalizes an arbitrary key-value document. Keys are
// trimmed and must be non-empty without control characters; values
// pass through untouched.
func Metadata(field string, meta map[string]interface{}) (map[string]interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, invalid(field, "contains an empty key")
		}
		if hasControl(key) {
			return nil, invalid(field, "key contains control characters")
		}
		out[key] = v
	}
	return out, nil
}

// SearchModeValue normalizes a search mode string, defaulting to FTS.
func SearchModeValue(field, value string) (storage.SearchMode, error) {
	v := strings.TrimSpace(strings.ToLower(value))
	switch storage.SearchMode(v) {
	case "":
		return storage.ModeFTS, nil
	case storage.ModeFTS, storage.ModeVector, storage.ModeHybrid:
		return storage.SearchMode(v), nil
	}
	return "", invalid(field, "must be one of fts, vector, hybrid")
}

// Limit normalizes a result limit: non-positive values take the
// default, and the hard ceiling is applied regardless of the request.
func Limit(value int) int {
	if value <= 0 {
		return 10
	}
	if value > types.MaxSearchLimit {
		return types.MaxSearchLimit
	}
	return value
}
