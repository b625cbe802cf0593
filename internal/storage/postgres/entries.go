package postgres

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

// entrySelectColumns is the canonical SELECT column list for entry
// reads. It must match the scan order in scanEntryRow. Raw text and
// embeddings are deliberately excluded — raw text is fetched only on
// explicit request, and embeddings are write-only search inputs.
const entrySelectColumns = `
	namespace, context_id, entry_id, entry_type, title, content,
	tags, importance, created_by, metadata, expires_at,
	created_at, updated_at
`

// UpsertEntry writes an entry according to mode. The target context
// must already exist; entries are never auto-created into a missing
// context. Length ceilings are enforced here as the last line of
// defense before the row is written.
func (s *Store) UpsertEntry(ctx context.Context, e *types.Entry, mode storage.UpsertMode) (*types.Entry, error) {
	if e == nil {
		return nil, storage.ErrInvalidInput
	}
	if e.Content == "" {
		return nil, fmt.Errorf("%w: entry content is required", storage.ErrInvalidInput)
	}
	if s.maxContentChars > 0 && len(e.Content) > s.maxContentChars {
		return nil, fmt.Errorf("%w: content exceeds %d character limit", storage.ErrInvalidInput, s.maxContentChars)
	}
	if len(e.Title) > types.MaxTitleChars {
		return nil, fmt.Errorf("%w: title exceeds %d character limit", storage.ErrInvalidInput, types.MaxTitleChars)
	}
	if s.maxRawTextChars > 0 && len(e.RawText) > s.maxRawTextChars {
		return nil, fmt.Errorf("%w: raw_text exceeds %d character limit", storage.ErrInvalidInput, s.maxRawTextChars)
	}
	if len(e.Embedding) > 0 && !s.vectorEnabled {
		return nil, fmt.Errorf("%w: embeddings require vector capability", storage.ErrInvalidInput)
	}

	exists, err := s.contextExists(ctx, e.Namespace, e.ContextID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrContextNotFound, e.Namespace, e.ContextID)
	}

	rawText, rawBlob, err := s.encodeRawText(e.RawText)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to compress raw text: %w", err)
	}

	metadataJSON, err := marshalMetadata(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal metadata: %w", err)
	}

	switch mode {
	case storage.UpsertInsert:
		if e.EntryID == "" {
			e.EntryID = uuid.NewString()
		}
		return s.insertEntry(ctx, e, rawText, rawBlob, metadataJSON, false)
	case storage.UpsertReplace:
		return s.insertEntry(ctx, e, rawText, rawBlob, metadataJSON, true)
	case storage.UpsertUpdate:
		return s.updateEntry(ctx, e, rawText, rawBlob, metadataJSON)
	default:
		return nil, fmt.Errorf("%w: unknown upsert mode %d", storage.ErrInvalidInput, mode)
	}
}

// insertEntry writes a new row. With replace set, an existing row
// under the same id is overwritten wholesale (keeping its created_at).
func (s *Store) insertEntry(ctx context.Context, e *types.Entry, rawText, rawBlob, metadataJSON interface{}, replace bool) (*types.Entry, error) {
	cols := []string{
		"namespace", "context_id", "entry_id", "entry_type", "title", "content",
		"tags", "importance", "created_by", "raw_text", "raw_blob",
		"metadata", "expires_at",
	}
	args := []interface{}{
		e.Namespace, e.ContextID, e.EntryID, string(e.EntryType),
		nullableString(e.Title), e.Content,
		pq.Array(e.Tags), e.Importance, nullableString(e.CreatedBy),
		rawText, rawBlob,
		metadataJSON, nullableTime(e.ExpiresAt),
	}
	if s.vectorEnabled {
		cols = append(cols, "embedding")
		args = append(args, embeddingValue(e.Embedding))
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO entries (%s, created_at, updated_at) VALUES (%s, NOW(), NOW())",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if replace {
		// Overwrite every non-key column on conflict.
		var sets []string
		for _, col := range cols[3:] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		sets = append(sets, "updated_at = NOW()")
		query += fmt.Sprintf(
			" ON CONFLICT (namespace, context_id, entry_id) DO UPDATE SET %s",
			strings.Join(sets, ", "))
	}
	query += " RETURNING created_at, updated_at"

	stored := *e
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, fmt.Errorf("postgres: failed to insert entry: %w", err)
	}
	stored.RawText = ""
	stored.Embedding = nil
	return &stored, nil
}

// updateEntry rewrites an existing row in place. A missing row is
// ErrNotFound so that an update call never silently creates.
func (s *Store) updateEntry(ctx context.Context, e *types.Entry, rawText, rawBlob, metadataJSON interface{}) (*types.Entry, error) {
	sets := []string{
		"entry_type = $4", "title = $5", "content = $6", "tags = $7",
		"importance = $8", "created_by = $9", "raw_text = $10", "raw_blob = $11",
		"metadata = $12", "expires_at = $13", "updated_at = NOW()",
	}
	args := []interface{}{
		e.Namespace, e.ContextID, e.EntryID,
		string(e.EntryType), nullableString(e.Title), e.Content, pq.Array(e.Tags),
		e.Importance, nullableString(e.CreatedBy), rawText, rawBlob,
		metadataJSON, nullableTime(e.ExpiresAt),
	}
	if s.vectorEnabled {
		args = append(args, embeddingValue(e.Embedding))
		sets = append(sets, fmt.Sprintf("embedding = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE entries SET %s
		WHERE namespace = $1 AND context_id = $2 AND entry_id = $3
		RETURNING created_at, updated_at
	`, strings.Join(sets, ", "))

	stored := *e
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", storage.ErrNotFound, e.EntryID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to update entry: %w", err)
	}
	stored.RawText = ""
	stored.Embedding = nil
	return &stored, nil
}

// GetEntry fetches one entry. Raw text is withheld unless includeRaw
// is set; compressed raw text is decompressed transparently.
func (s *Store) GetEntry(ctx context.Context, namespace, contextID, entryID string, includeRaw bool) (*types.Entry, error) {
	query := `
		SELECT ` + entrySelectColumns + `, raw_text, raw_blob
		FROM entries
		WHERE namespace = $1 AND context_id = $2 AND entry_id = $3
	`
	row := s.db.QueryRowContext(ctx, query, namespace, contextID, entryID)

	var e types.Entry
	var rawText sql.NullString
	var rawBlob []byte
	if err := scanEntryFields(row, &e, &rawText, &rawBlob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: entry %s", storage.ErrNotFound, entryID)
		}
		return nil, fmt.Errorf("postgres: failed to get entry: %w", err)
	}

	if includeRaw {
		switch {
		case rawText.Valid:
			e.RawText = rawText.String
		case len(rawBlob) > 0:
			text, err := decompressRawText(rawBlob)
			if err != nil {
				return nil, fmt.Errorf("postgres: failed to decompress raw text: %w", err)
			}
			e.RawText = text
		}
	}
	return &e, nil
}

// SearchEntries builds a query plan from opts and executes it.
func (s *Store) SearchEntries(ctx context.Context, opts storage.SearchOptions) ([]types.Entry, error) {
	plan := buildSearchPlan(opts, s.vectorEnabled)

	rows, err := s.db.QueryContext(ctx, plan.SQL(), plan.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to search entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.Entry
	for rows.Next() {
		var e types.Entry
		if err := scanEntryFields(rows, &e, nil, nil); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes one entry. Returns false when no row matched.
func (s *Store) DeleteEntry(ctx context.Context, namespace, contextID, entryID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE namespace = $1 AND context_id = $2 AND entry_id = $3`,
		namespace, contextID, entryID)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to delete entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// CleanupExpiredEntries removes every entry whose expiry instant has
// passed and returns the count removed.
func (s *Store) CleanupExpiredEntries(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to clean up expired entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// scanEntryFields scans one row in entrySelectColumns order. When
// rawText/rawBlob are non-nil the row is expected to carry the two raw
// columns at the end.
func scanEntryFields(row rowScanner, e *types.Entry, rawText *sql.NullString, rawBlob *[]byte) error {
	var title, createdBy, metadataJSON sql.NullString
	var expiresAt sql.NullTime
	var entryType string

	dest := []interface{}{
		&e.Namespace, &e.ContextID, &e.EntryID, &entryType, &title, &e.Content,
		pq.Array(&e.Tags), &e.Importance, &createdBy, &metadataJSON, &expiresAt,
		&e.CreatedAt, &e.UpdatedAt,
	}
	if rawText != nil && rawBlob != nil {
		dest = append(dest, rawText, rawBlob)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}

	e.EntryType = types.EntryType(entryType)
	if title.Valid {
		e.Title = title.String
	}
	if createdBy.Valid {
		e.CreatedBy = createdBy.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	return nil
}

// embeddingValue converts an embedding to its database value, mapping
// an empty slice to NULL.
func embeddingValue(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// encodeRawText maps raw text to its stored representation: exactly
// one of the plaintext column or the gzip blob column is non-NULL,
// depending on server policy, and both are NULL when there is no raw
// text.
func (s *Store) encodeRawText(text string) (rawText, rawBlob interface{}, err error) {
	if text == "" {
		return nil, nil, nil
	}
	if !s.compressRawText {
		return text, nil, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		return nil, nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, nil, err
	}
	return nil, buf.Bytes(), nil
}

// decompressRawText reverses encodeRawText's gzip representation.
func decompressRawText(blob []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	defer func() { _ = zr.Close() }()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
