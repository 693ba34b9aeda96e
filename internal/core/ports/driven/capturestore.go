package driven

import (
	"context"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// CaptureStore persists content sources, chunks, and chat messages.
// Backed by SQLite. Every method that writes more than one row runs in a
// single transaction so the chunk-count and reconstruction invariants
// hold after commit.
type CaptureStore interface {
	// GetSourceByPath retrieves a source by its normalized URL.
	// Returns domain.ErrNotFound when the path is unknown.
	GetSourceByPath(ctx context.Context, sourcePath string) (*domain.ContentSource, error)

	// CreateSource inserts a new source row and its chunks in one
	// transaction.
	CreateSource(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error

	// ReplaceChunks soft-deletes the live chunks for src.EhlDocID, inserts
	// the replacements, and updates the source row, in one transaction.
	ReplaceChunks(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error

	// AppendChunks inserts additional chunks for src.EhlDocID without
	// touching existing ones, and updates the source row, in one
	// transaction. Existing chunks keep their original meta.
	AppendChunks(ctx context.Context, src *domain.ContentSource, chunks []domain.Chunk) error

	// GetChunks returns the non-deleted chunks for a document in
	// ascending chunk-index order.
	GetChunks(ctx context.Context, ehlDocID string) ([]domain.Chunk, error)

	// CountChunks returns the number of non-deleted chunks for a document.
	CountChunks(ctx context.Context, ehlDocID string) (int, error)

	// ExistingMessageHashes reports which of the given hashes already
	// exist for a source URL. Queries in batches of at most 100.
	ExistingMessageHashes(ctx context.Context, sourceURL string, hashes []string) (map[string]bool, error)

	// AppendMessages inserts new messages, rebuilds the document's chunks
	// (soft-delete plus insert), and upserts the source row, all in one
	// transaction.
	AppendMessages(ctx context.Context, msgs []domain.Message, src *domain.ContentSource, chunks []domain.Chunk) error

	// GetMessages returns all messages for a source URL ordered by
	// (message_order, created_at).
	GetMessages(ctx context.Context, sourceURL string) ([]domain.Message, error)

	// Close releases the database connection.
	Close() error
}
