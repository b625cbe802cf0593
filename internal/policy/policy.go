// Package policy applies write-time business rules to entries after
// normalization and before persistence. Outcomes are either a silent
// pass, advisory warnings attached to a successful write, or a hard
// failure that aborts before any store mutation.
package policy

import (
	"fmt"

	"github.com/scrypster/recollect/internal/config"
	"github.com/scrypster/recollect/internal/normalize"
	"github.com/scrypster/recollect/pkg/types"
)

// Engine evaluates write policies against entries. It is stateless and
// safe for concurrent use.
type Engine struct {
	autoTag        bool
	requireTags    bool
	allowRawText   bool
	latestIDPrefix string
	maxContent     int
	vectorEnabled  bool
}

// NewEngine builds an Engine from server configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		autoTag:        cfg.Policy.AutoTag,
		requireTags:    cfg.Policy.RequireTags,
		allowRawText:   cfg.Policy.AllowRawText,
		latestIDPrefix: cfg.Policy.LatestIDPrefix,
		maxContent:     cfg.Storage.MaxContentChars,
		vectorEnabled:  cfg.Storage.VectorEnabled,
	}
}

// LatestID returns the deterministic id used for the singleton
// "latest" entry of the given type.
func (p *Engine) LatestID(entryType types.EntryType) string {
	return p.latestIDPrefix + string(entryType)
}

// ApplyWrite mutates the entry in place according to the configured
// write policies and returns any advisory warnings. A non-nil error
// means the write must be aborted; the entry must not reach storage.
//
// When latest is true the entry id is forced to the deterministic
// latest id for its type, and a warning is emitted if the caller had
// supplied a different id.
func (p *Engine) ApplyWrite(entry *types.Entry, latest bool) ([]string, error) {
	var warnings []string

	if entry.RawText != "" && !p.allowRawText {
		return nil, &normalize.ValidationError{
			Field:  "raw_text",
			Reason: "raw text storage is disabled on this server",
		}
	}

	if len(entry.Embedding) > 0 && !p.vectorEnabled {
		return nil, &normalize.ValidationError{
			Field:  "embedding",
			Reason: "vector capability is disabled on this server",
		}
	}

	if p.autoTag {
		entry.Tags = mergeTags(entry.Tags,
			"namespace:"+entry.Namespace,
			"context:"+entry.ContextID,
		)
	}

	if p.requireTags && len(entry.Tags) == 0 {
		return nil, &normalize.ValidationError{
			Field:  "tags",
			Reason: "at least one tag is required",
		}
	}

	if latest {
		forced := p.LatestID(entry.EntryType)
		if entry.EntryID != "" && entry.EntryID != forced {
			warnings = append(warnings, fmt.Sprintf(
				"entry_id %q replaced with canonical latest id %q", entry.EntryID, forced))
		}
		entry.EntryID = forced
	}

	if p.maxContent > 0 && len(entry.Content)*10 > p.maxContent*8 {
		warnings = append(warnings, fmt.Sprintf(
			"content length %d exceeds 80%% of the configured maximum %d",
			len(entry.Content), p.maxContent))
	}

	return warnings, nil
}

// mergeTags unions extra tags into tags, preserving existing order and
// appending only tags not already present.
func mergeTags(tags []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(tags)+len(extra))
	out := make([]string, 0, len(tags)+len(extra))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range extra {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
