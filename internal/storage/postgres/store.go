package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

// Ensure *Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// Options configures a postgres Store.
type Options struct {
	// VectorEnabled requests the pgvector embedding column and the
	// vector search modes. The store degrades to VectorEnabled=false
	// when the extension is missing on the server.
	VectorEnabled bool

	// CompressRawText stores raw text gzip-compressed.
	CompressRawText bool

	// MaxContentChars and MaxRawTextChars are write-time ceilings.
	MaxContentChars int
	MaxRawTextChars int
}

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db              *sql.DB
	vectorEnabled   bool
	compressRawText bool
	maxContentChars int
	maxRawTextChars int
}

// New opens a connection pool against dsn, applies the schema and
// migrations, and returns a ready Store.
func New(dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &Store{
		db:              db,
		compressRawText: opts.CompressRawText,
		maxContentChars: opts.MaxContentChars,
		maxRawTextChars: opts.MaxRawTextChars,
	}

	// Apply the base schema (idempotent).
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	// Apply FTS migration (idempotent).
	if _, err := db.Exec(MigrationFTS); err != nil {
		log.Printf("postgres: failed to apply FTS migration (full-text search degraded): %v", err)
	}

	// Enable pgvector only when requested. This may fail on servers
	// without the extension installed — log and continue without
	// vector support.
	if opts.VectorEnabled {
		if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			log.Printf("postgres: pgvector extension not available (vector search disabled): %v", err)
		} else if _, err := db.Exec(MigrationPgvector); err != nil {
			log.Printf("postgres: failed to apply pgvector migration (vector search disabled): %v", err)
		} else {
			s.vectorEnabled = true
		}
	}

	return s, nil
}

// VectorEnabled reports whether the store accepts embeddings and
// supports the vector search modes.
func (s *Store) VectorEnabled() bool {
	return s.vectorEnabled
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---- Contexts ----

// CreateContext creates or updates a context (upsert keyed on
// namespace+context_id). On conflict, description and owner are
// replaced only when the new value is non-null, tags are replaced
// wholesale only when a tag list was supplied, and metadata is merged
// key-wise rather than replaced.
func (s *Store) CreateContext(ctx context.Context, c *types.Context) (*types.Context, error) {
	if c == nil {
		return nil, storage.ErrInvalidInput
	}

	metadataJSON, err := marshalMetadata(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal metadata: %w", err)
	}

	scope := c.Scope
	if scope == "" {
		scope = types.DefaultScope
	}

	query := `
		INSERT INTO contexts (namespace, context_id, description, tags, scope, owner, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (namespace, context_id) DO UPDATE SET
			description = COALESCE(EXCLUDED.description, contexts.description),
			owner = COALESCE(EXCLUDED.owner, contexts.owner),
			tags = COALESCE(EXCLUDED.tags, contexts.tags),
			scope = EXCLUDED.scope,
			metadata = COALESCE(contexts.metadata, '{}'::jsonb) || COALESCE(EXCLUDED.metadata, '{}'::jsonb),
			updated_at = NOW()
		RETURNING namespace, context_id, description, tags, scope, owner, metadata, created_at, updated_at
	`

	row := s.db.QueryRowContext(ctx, query,
		c.Namespace, c.ContextID,
		nullableString(c.Description),
		nullableStringArray(c.Tags),
		string(scope),
		nullableString(c.Owner),
		metadataJSON,
	)

	stored, err := scanContextRow(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to upsert context: %w", err)
	}
	return stored, nil
}

// ListContexts returns every context ordered by namespace then
// context_id.
func (s *Store) ListContexts(ctx context.Context) ([]types.Context, error) {
	query := `
		SELECT namespace, context_id, description, tags, scope, owner, metadata, created_at, updated_at
		FROM contexts
		ORDER BY namespace, context_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list contexts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contexts []types.Context
	for rows.Next() {
		c, err := scanContextRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan context: %w", err)
		}
		contexts = append(contexts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}
	return contexts, nil
}

// DeleteContext removes a context and, via the foreign key cascade,
// every entry under it. Returns false when no context matched.
func (s *Store) DeleteContext(ctx context.Context, namespace, contextID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM contexts WHERE namespace = $1 AND context_id = $2`,
		namespace, contextID)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to delete context: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) contextExists(ctx context.Context, namespace, contextID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM contexts WHERE namespace = $1 AND context_id = $2`,
		namespace, contextID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: failed to check context: %w", err)
	}
	return true, nil
}

// ---- Aliases ----

// SetAlias creates or repoints an alias. The target context must
// exist.
func (s *Store) SetAlias(ctx context.Context, a *types.ContextAlias) (*types.ContextAlias, error) {
	if a == nil {
		return nil, storage.ErrInvalidInput
	}

	exists, err := s.contextExists(ctx, a.Namespace, a.ContextID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrContextNotFound, a.Namespace, a.ContextID)
	}

	query := `
		INSERT INTO context_aliases (alias, namespace, context_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (alias) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			context_id = EXCLUDED.context_id,
			updated_at = NOW()
		RETURNING alias, namespace, context_id, created_at, updated_at
	`
	var stored types.ContextAlias
	err = s.db.QueryRowContext(ctx, query, a.Alias, a.Namespace, a.ContextID).
		Scan(&stored.Alias, &stored.Namespace, &stored.ContextID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to set alias: %w", err)
	}
	return &stored, nil
}

// ListAliases returns every alias ordered by alias name.
func (s *Store) ListAliases(ctx context.Context) ([]types.ContextAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, namespace, context_id, created_at, updated_at
		FROM context_aliases
		ORDER BY alias
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []types.ContextAlias
	for rows.Next() {
		var a types.ContextAlias
		if err := rows.Scan(&a.Alias, &a.Namespace, &a.ContextID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}
	return aliases, nil
}

// GetAlias returns the stored alias record whether or not its target
// context still exists. Missing alias maps to ErrNotFound.
func (s *Store) GetAlias(ctx context.Context, alias string) (*types.ContextAlias, error) {
	var a types.ContextAlias
	err := s.db.QueryRowContext(ctx, `
		SELECT alias, namespace, context_id, created_at, updated_at
		FROM context_aliases
		WHERE alias = $1
	`, alias).Scan(&a.Alias, &a.Namespace, &a.ContextID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alias %s", storage.ErrNotFound, alias)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get alias: %w", err)
	}
	return &a, nil
}

// DeleteAlias removes an alias. Returns false when no alias matched.
func (s *Store) DeleteAlias(ctx context.Context, alias string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM context_aliases WHERE alias = $1`, alias)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to delete alias: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ResolveAlias maps an alias to its namespace and context_id. An alias
// whose target context no longer exists resolves the same as a missing
// alias: ErrNotFound.
func (s *Store) ResolveAlias(ctx context.Context, alias string) (string, string, error) {
	var namespace, contextID string
	err := s.db.QueryRowContext(ctx, `
		SELECT a.namespace, a.context_id
		FROM context_aliases a
		JOIN contexts c ON c.namespace = a.namespace AND c.context_id = a.context_id
		WHERE a.alias = $1
	`, alias).Scan(&namespace, &contextID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: alias %s", storage.ErrNotFound, alias)
	}
	if err != nil {
		return "", "", fmt.Errorf("postgres: failed to resolve alias: %w", err)
	}
	return namespace, contextID, nil
}

// ---- Scan and null helpers ----

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContextRow(row rowScanner) (*types.Context, error) {
	var c types.Context
	var description, owner sql.NullString
	var metadataJSON sql.NullString
	var scope string

	err := row.Scan(
		&c.Namespace,
		&c.ContextID,
		&description,
		pq.Array(&c.Tags),
		&scope,
		&owner,
		&metadataJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Scope = types.Scope(scope)
	if description.Valid {
		c.Description = description.String
	}
	if owner.Valid {
		c.Owner = owner.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}

// nullableString converts an empty string to a NULL database value.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime converts a nil pointer to a NULL database value.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullableStringArray converts a nil slice to a NULL database value so
// that COALESCE in the upsert keeps the stored tags; a non-nil (even
// empty) slice replaces them wholesale.
func nullableStringArray(values []string) interface{} {
	if values == nil {
		return nil
	}
	return pq.Array(values)
}

// marshalMetadata serializes a metadata map, mapping nil to NULL.
func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
