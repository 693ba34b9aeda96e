// Package sqlite is the SQLite-backed driven.CaptureStore. Multi-row
// writes run inside one transaction so the chunk-count and document
// reconstruction invariants hold after every commit.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/glimpsed/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driven"
)

// hashBatchSize bounds the IN clause of the message-hash lookup.
const hashBatchSize = 100

var _ driven.CaptureStore = (*Store)(nil)

// Store is the SQLite capture store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the capture database. An empty dataDir
// defaults to ~/.glimpsed/data/captures.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".glimpsed", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "captures.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// GetSourceByPath retrieves a source by its normalized URL.
func (s *Store) GetSourceByPath(ctx context.Context, sourcePath string) (*domain.ContentSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_type, source_path, content_hash, ehl_doc_id,
		       chunk_count, ingestion_status, created_at, updated_at
		FROM content_sources
		WHERE source_path = ?
	`, sourcePath)

	var src domain.ContentSource
	err := row.Scan(&src.ID, &src.SourceType, &src.SourcePath, &src.ContentHash,
		&src.EhlDocID, &src.ChunkCount, &src.Status, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source path %s", domain.ErrNotFound, sourcePath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning source: %v", domain.ErrStorage, err)
	}
	return &src, nil
}

// CreateSource inserts a new source row and its chunks in one
// transaction.
func (s *Store) CreateSource(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO content_sources
				(source_type, source_path, content_hash, ehl_doc_id, chunk_count, ingestion_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, src.SourceType, src.SourcePath, src.ContentHash, src.EhlDocID,
			src.ChunkCount, src.Status, src.CreatedAt.UTC(), src.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("inserting source: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			src.ID = id
		}
		return insertChunks(ctx, tx, chunks)
	})
}

// ReplaceChunks soft-deletes the live chunks for src.EhlDocID, inserts
// the replacements, and updates the source row.
func (s *Store) ReplaceChunks(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE chunks SET is_deleted = 1
			WHERE is_deleted = 0 AND json_extract(meta, '$.id') = ?
		`, src.EhlDocID)
		if err != nil {
			return fmt.Errorf("soft-deleting chunks: %w", err)
		}
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		return updateSource(ctx, tx, src)
	})
}

// AppendChunks inserts additional chunks without touching existing ones
// and updates the source row.
func (s *Store) AppendChunks(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		return updateSource(ctx, tx, src)
	})
}

// GetChunks returns the non-deleted chunks for a document in ascending
// chunk-index order.
func (s *Store) GetChunks(ctx context.Context, ehlDocID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector_index, text, meta, is_deleted, created_at
		FROM chunks
		WHERE is_deleted = 0 AND json_extract(meta, '$.id') = ?
		ORDER BY json_extract(meta, '$.chunk_index') ASC
	`, ehlDocID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			c       domain.Chunk
			metaRaw string
		)
		if err := rows.Scan(&c.ID, &c.VectorIndex, &c.Text, &metaRaw, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", domain.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(metaRaw), &c.Meta); err != nil {
			return nil, fmt.Errorf("%w: decoding chunk meta: %v", domain.ErrStorage, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of non-deleted chunks for a document.
func (s *Store) CountChunks(ctx context.Context, ehlDocID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks
		WHERE is_deleted = 0 AND json_extract(meta, '$.id') = ?
	`, ehlDocID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %v", domain.ErrStorage, err)
	}
	return count, nil
}

// ExistingMessageHashes reports which of the given hashes already exist
// for a source URL, querying in batches of at most 100.
func (s *Store) ExistingMessageHashes(ctx context.Context, sourceURL string, hashes []string) (map[string]bool, error) {
	existing := make(map[string]bool)

	for start := 0; start < len(hashes); start += hashBatchSize {
		end := start + hashBatchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, 0, len(batch)+1)
		args = append(args, sourceURL)
		for _, h := range batch {
			args = append(args, h)
		}

		rows, err := s.db.QueryContext(ctx, `
			SELECT message_hash FROM messages
			WHERE source_url = ? AND message_hash IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: querying message hashes: %v", domain.ErrStorage, err)
		}
		for rows.Next() {
			var h string
			if err := rows.Scan(&h); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scanning message hash: %v", domain.ErrStorage, err)
			}
			existing[h] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: reading message hashes: %v", domain.ErrStorage, err)
		}
		rows.Close()
	}
	return existing, nil
}

// AppendMessages inserts new messages, rebuilds the document's chunks,
// and upserts the source row, all in one transaction.
func (s *Store) AppendMessages(ctx context.Context, msgs []domain.Message, src *domain.ContentSource, chunks []domain.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range msgs {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO messages
					(source_url, message_hash, message_text, message_order, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, m.SourceURL, m.MessageHash, m.MessageText, m.MessageOrder, m.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("inserting message: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE chunks SET is_deleted = 1
			WHERE is_deleted = 0 AND json_extract(meta, '$.id') = ?
		`, src.EhlDocID)
		if err != nil {
			return fmt.Errorf("soft-deleting chunks: %w", err)
		}
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		return upsertSource(ctx, tx, src)
	})
}

// GetMessages returns all messages for a source URL ordered by
// (message_order, created_at).
func (s *Store) GetMessages(ctx context.Context, sourceURL string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, message_hash, message_text, message_order, created_at
		FROM messages
		WHERE source_url = ?
		ORDER BY message_order ASC, created_at ASC
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: querying messages: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SourceURL, &m.MessageHash, &m.MessageText,
			&m.MessageOrder, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning message: %v", domain.ErrStorage, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if errors.Is(err, domain.ErrStorage) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStorage, err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk) error {
	for _, c := range chunks {
		meta, err := json.Marshal(c.Meta)
		if err != nil {
			return fmt.Errorf("marshalling chunk meta: %w", err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (vector_index, text, meta, is_deleted, created_at)
			VALUES (?, ?, ?, 0, ?)
		`, c.VectorIndex, c.Text, string(meta), createdAt.UTC())
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	return nil
}

func updateSource(ctx context.Context, tx *sql.Tx, src *domain.ContentSource) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE content_sources
		SET content_hash = ?, chunk_count = ?, ingestion_status = ?, updated_at = ?
		WHERE source_path = ?
	`, src.ContentHash, src.ChunkCount, src.Status, src.UpdatedAt.UTC(), src.SourcePath)
	if err != nil {
		return fmt.Errorf("updating source: %w", err)
	}
	return nil
}

func upsertSource(ctx context.Context, tx *sql.Tx, src *domain.ContentSource) error {
	createdAt := src.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := src.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO content_sources
			(source_type, source_path, content_hash, ehl_doc_id, chunk_count, ingestion_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			ingestion_status = excluded.ingestion_status,
			updated_at = excluded.updated_at
	`, src.SourceType, src.SourcePath, src.ContentHash, src.EhlDocID,
		src.ChunkCount, src.Status, createdAt.UTC(), updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting source: %w", err)
	}
	return nil
}
