// Package postgres provides a PostgreSQL implementation of the storage
// interfaces.
package postgres

// Schema contains the SQL statements to create the database schema for
// PostgreSQL. All statements are idempotent (IF NOT EXISTS) so the
// schema can be applied on every startup.
const Schema = `
-- Contexts table: namespaced containers for memory entries
CREATE TABLE IF NOT EXISTS contexts (
    namespace TEXT NOT NULL,
    context_id TEXT NOT NULL,
    description TEXT,
    tags TEXT[],
    scope TEXT NOT NULL DEFAULT 'local',
    owner TEXT,
    metadata JSONB,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (namespace, context_id)
);

-- Aliases table: short stable names pointing at a context
CREATE TABLE IF NOT EXISTS context_aliases (
    alias TEXT PRIMARY KEY,
    namespace TEXT NOT NULL,
    context_id TEXT NOT NULL,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Entries table: typed memory records scoped to one context
CREATE TABLE IF NOT EXISTS entries (
    namespace TEXT NOT NULL,
    context_id TEXT NOT NULL,
    entry_id TEXT NOT NULL,
    entry_type TEXT NOT NULL,
    title TEXT,
    content TEXT NOT NULL,
    tags TEXT[],
    importance INTEGER NOT NULL DEFAULT 0,
    created_by TEXT,

    -- Raw text is stored as exactly one of raw_text (plaintext) or
    -- raw_blob (gzip), depending on server policy; the other is NULL.
    raw_text TEXT,
    raw_blob BYTEA,

    metadata JSONB,
    expires_at TIMESTAMPTZ,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (namespace, context_id, entry_id),
    FOREIGN KEY (namespace, context_id)
        REFERENCES contexts (namespace, context_id) ON DELETE CASCADE
);

-- Index support for the fixed search filter shape
CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(namespace, context_id, entry_type);
CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at);
CREATE INDEX IF NOT EXISTS idx_entries_importance ON entries(namespace, context_id, importance DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_entries_tags ON entries USING GIN(tags);
CREATE INDEX IF NOT EXISTS idx_context_aliases_target ON context_aliases(namespace, context_id);
`

// MigrationFTS contains SQL to add full-text search support to the
// entries table. Uses PostgreSQL's built-in tsvector/GIN index
// approach. Safe to run multiple times.
const MigrationFTS = `
-- Add tsvector column for full-text search if it doesn't already exist.
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'entries' AND column_name = 'search_tsv'
    ) THEN
        ALTER TABLE entries ADD COLUMN search_tsv tsvector;
    END IF;
END
$$;

-- Populate the tsvector column for any existing rows.
UPDATE entries
SET search_tsv = to_tsvector('english', COALESCE(title, '') || ' ' || content)
WHERE search_tsv IS NULL;

-- Create a GIN index for fast FTS queries.
CREATE INDEX IF NOT EXISTS idx_entries_search_tsv ON entries USING GIN(search_tsv);

-- Create trigger to auto-populate search_tsv on INSERT/UPDATE.
CREATE OR REPLACE FUNCTION entries_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.search_tsv := to_tsvector('english', COALESCE(NEW.title, '') || ' ' || COALESCE(NEW.content, ''));
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS entries_tsv_trigger ON entries;
CREATE TRIGGER entries_tsv_trigger
    BEFORE INSERT OR UPDATE OF title, content
    ON entries
    FOR EACH ROW
    EXECUTE FUNCTION entries_tsv_update();
`

// MigrationPgvector contains SQL to add the embedding column to the
// entries table. Applied only when the vector extension is available
// and vector capability is enabled. Safe to run multiple times.
const MigrationPgvector = `
-- Add embedding column if it doesn't already exist.
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'entries' AND column_name = 'embedding'
    ) THEN
        ALTER TABLE entries ADD COLUMN embedding vector;
    END IF;
END
$$;

-- ivfflat index for approximate nearest-neighbor search. ivfflat
-- requires at least one row to exist, so guard with a DO block.
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'idx_entries_embedding_cosine'
  ) THEN
    IF EXISTS (SELECT 1 FROM entries WHERE embedding IS NOT NULL LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_entries_embedding_cosine ON entries USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
