package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

// planKind selects between the two query shapes. It is chosen exactly
// once, from the capability flag plus the requested mode, before any
// ordering text is generated.
type planKind int

const (
	// planPlain orders without the embedding column (importance or
	// text-relevance ordering).
	planPlain planKind = iota

	// planVector orders by distance to a query embedding. Only legal
	// when vector capability is on.
	planVector
)

// searchPlan is the query specification produced by buildSearchPlan:
// filter predicates, an ordering key, and the positional parameter
// list. It is consumed once by SearchEntries.
type searchPlan struct {
	kind planKind

	predicates []string
	args       []interface{}

	// textParam is the 1-based position of the free-text parameter,
	// recorded when the FTS predicate is added so the ranking
	// expression can reuse it. Zero when no free text was given.
	textParam int

	orderBy string
}

// SQL assembles the final SELECT statement. The limit is always the
// last parameter.
func (p searchPlan) SQL() string {
	return fmt.Sprintf(
		"SELECT %s FROM entries WHERE %s ORDER BY %s LIMIT $%d",
		entrySelectColumns,
		strings.Join(p.predicates, " AND "),
		p.orderBy,
		len(p.args),
	)
}

// buildSearchPlan turns search options into a query plan. The
// construction order below is a contract: it fixes the position of
// every parameter, so it must not be reordered.
//
// Filters: namespace, context_id, expiry (unless included), tag
// overlap, type membership, full-text predicate. Ordering: importance
// then recency by default; distance-first when vector or hybrid mode
// is requested with an embedding and vector capability is on;
// rank-first when free text was given without vector ordering. Hybrid
// keeps the full-text predicate as a narrowing filter while ordering
// by distance. The limit is clamped and appended last.
func buildSearchPlan(opts storage.SearchOptions, vectorEnabled bool) searchPlan {
	var p searchPlan

	addFilter := func(format string, arg interface{}) int {
		p.args = append(p.args, arg)
		pos := len(p.args)
		p.predicates = append(p.predicates, fmt.Sprintf(format, pos))
		return pos
	}

	// 1. Scope to exactly one context.
	addFilter("namespace = $%d", opts.Namespace)
	addFilter("context_id = $%d", opts.ContextID)

	// 2. Expiry filter.
	if !opts.IncludeExpired {
		p.predicates = append(p.predicates, "(expires_at IS NULL OR expires_at > NOW())")
	}

	// 3. Tag overlap: any listed tag matches.
	if len(opts.Tags) > 0 {
		addFilter("tags && $%d", pq.Array(opts.Tags))
	}

	// 4. Type membership.
	if len(opts.Types) > 0 {
		names := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			names[i] = string(t)
		}
		addFilter("entry_type = ANY($%d)", pq.Array(names))
	}

	// 5. Full-text predicate; position recorded for ranking.
	if opts.Query != "" {
		p.textParam = addFilter("search_tsv @@ plainto_tsquery('english', $%d)", opts.Query)
	}

	// 6. Ordering, keyed on the plan kind chosen from the capability
	// flag and requested mode.
	if vectorEnabled &&
		len(opts.Embedding) > 0 &&
		(opts.Mode == storage.ModeVector || opts.Mode == storage.ModeHybrid) {
		p.kind = planVector
	}
	switch {
	case p.kind == planVector:
		p.args = append(p.args, pgvector.NewVector(opts.Embedding))
		p.orderBy = fmt.Sprintf(
			"embedding <=> $%d ASC, importance DESC, created_at DESC", len(p.args))
	case p.textParam > 0:
		p.orderBy = fmt.Sprintf(
			"ts_rank(search_tsv, plainto_tsquery('english', $%d)) DESC, importance DESC, created_at DESC",
			p.textParam)
	default:
		p.orderBy = "importance DESC, created_at DESC"
	}

	// 7. Limit, clamped, always the final parameter.
	limit := opts.Limit
	if limit <= 0 || limit > types.MaxSearchLimit {
		limit = types.MaxSearchLimit
	}
	p.args = append(p.args, limit)

	return p
}
