package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chunkFor(docID, text string, index, total int) domain.Chunk {
	return domain.Chunk{
		Text: text,
		Meta: domain.ChunkMeta{
			ID:          docID,
			Source:      "web",
			URL:         "https://example.com/doc",
			ChunkIndex:  index,
			TotalChunks: total,
			SourceType:  "web",
		},
		CreatedAt: time.Now(),
	}
}

func sourceFor(path, docID, hash string, chunkCount int) *domain.ContentSource {
	now := time.Now()
	return &domain.ContentSource{
		SourceType:  "web",
		SourcePath:  path,
		ContentHash: hash,
		EhlDocID:    docID,
		ChunkCount:  chunkCount,
		Status:      domain.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateAndGetSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := sourceFor("https://example.com/doc", "doc-1", "hash-a", 2)
	chunks := []domain.Chunk{
		chunkFor("doc-1", "part one", 0, 2),
		chunkFor("doc-1", "part two", 1, 2),
	}
	require.NoError(t, s.CreateSource(ctx, src, chunks))
	assert.NotZero(t, src.ID)

	got, err := s.GetSourceByPath(ctx, "https://example.com/doc")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.EhlDocID)
	assert.Equal(t, "hash-a", got.ContentHash)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	count, err := s.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetSourceByPathNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSourceByPath(context.Background(), "https://nowhere")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourcePathIsUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSource(ctx, sourceFor("https://example.com/doc", "doc-1", "h", 0), nil))
	err := s.CreateSource(ctx, sourceFor("https://example.com/doc", "doc-2", "h", 0), nil)
	assert.Error(t, err)
}

func TestReplaceChunksKeepsReconstructionInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := sourceFor("https://example.com/doc", "doc-1", "hash-a", 2)
	require.NoError(t, s.CreateSource(ctx, src, []domain.Chunk{
		chunkFor("doc-1", "old one", 0, 2),
		chunkFor("doc-1", "old two", 1, 2),
	}))

	src.ContentHash = "hash-b"
	src.ChunkCount = 1
	src.UpdatedAt = time.Now()
	require.NoError(t, s.ReplaceChunks(ctx, src, []domain.Chunk{
		chunkFor("doc-1", "fresh text", 0, 1),
	}))

	chunks, err := s.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "fresh text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Meta.ChunkIndex)

	got, err := s.GetSourceByPath(ctx, "https://example.com/doc")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.EhlDocID, "doc id is stable across updates")
	assert.Equal(t, "hash-b", got.ContentHash)

	count, err := s.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, got.ChunkCount, count, "chunk_count matches live chunks")
}

func TestAppendChunksPreservesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := sourceFor("ocr://app/title/fp", "doc-1", "hash-a", 1)
	require.NoError(t, s.CreateSource(ctx, src, []domain.Chunk{
		chunkFor("doc-1", "first view", 0, 1),
	}))

	src.ContentHash = "hash-b"
	src.ChunkCount = 2
	src.UpdatedAt = time.Now()
	require.NoError(t, s.AppendChunks(ctx, src, []domain.Chunk{
		chunkFor("doc-1", "novel lines", 1, 2),
	}))

	chunks, err := s.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first view", chunks[0].Text)
	assert.Equal(t, "novel lines", chunks[1].Text)
}

func TestChunkOrderingFollowsMetaIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Inserted out of order on purpose; reads follow meta.chunk_index.
	src := sourceFor("https://example.com/doc", "doc-1", "h", 3)
	require.NoError(t, s.CreateSource(ctx, src, []domain.Chunk{
		chunkFor("doc-1", "third", 2, 3),
		chunkFor("doc-1", "first", 0, 3),
		chunkFor("doc-1", "second", 1, 3),
	}))

	chunks, err := s.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
	assert.Equal(t, "third", chunks[2].Text)
}

func TestMessageDedupFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "accessibility://Slack/general"

	msgs := []domain.Message{
		{SourceURL: url, MessageHash: "h1", MessageText: "[alice] [10:00 AM] hi", MessageOrder: 600, CreatedAt: time.Now()},
		{SourceURL: url, MessageHash: "h2", MessageText: "[bob] [10:01 AM] hello", MessageOrder: 601, CreatedAt: time.Now()},
	}
	src := sourceFor(url, "doc-1", "hash-a", 1)
	src.SourceType = "slack"
	require.NoError(t, s.AppendMessages(ctx, msgs, src, []domain.Chunk{
		chunkFor("doc-1", "rebuilt log", 0, 1),
	}))

	existing, err := s.ExistingMessageHashes(ctx, url, []string{"h1", "h2", "h3"})
	require.NoError(t, err)
	assert.True(t, existing["h1"])
	assert.True(t, existing["h2"])
	assert.False(t, existing["h3"])

	// Hashes scoped per source URL.
	other, err := s.ExistingMessageHashes(ctx, "accessibility://Slack/random", []string{"h1"})
	require.NoError(t, err)
	assert.Empty(t, other)

	got, err := s.GetMessages(ctx, url)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 600, got[0].MessageOrder)
	assert.Equal(t, 601, got[1].MessageOrder)
}

func TestExistingMessageHashesLargeBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "accessibility://Slack/busy"

	var msgs []domain.Message
	var hashes []string
	for i := 0; i < 250; i++ {
		h := fmt.Sprintf("hash-%03d", i)
		hashes = append(hashes, h)
		msgs = append(msgs, domain.Message{
			SourceURL:   url,
			MessageHash: h,
			MessageText: fmt.Sprintf("message %d", i),
			CreatedAt:   time.Now(),
		})
	}
	src := sourceFor(url, "doc-busy", "h", 1)
	require.NoError(t, s.AppendMessages(ctx, msgs, src, []domain.Chunk{
		chunkFor("doc-busy", "log", 0, 1),
	}))

	existing, err := s.ExistingMessageHashes(ctx, url, hashes)
	require.NoError(t, err)
	assert.Len(t, existing, 250)
}

func TestAppendMessagesIgnoresDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "accessibility://Slack/general"

	msg := domain.Message{SourceURL: url, MessageHash: "h1", MessageText: "[alice] [10:00 AM] hi", MessageOrder: 600, CreatedAt: time.Now()}
	src := sourceFor(url, "doc-1", "hash-a", 1)
	require.NoError(t, s.AppendMessages(ctx, []domain.Message{msg}, src, []domain.Chunk{
		chunkFor("doc-1", "log", 0, 1),
	}))
	require.NoError(t, s.AppendMessages(ctx, []domain.Message{msg}, src, []domain.Chunk{
		chunkFor("doc-1", "log", 0, 1),
	}))

	got, err := s.GetMessages(ctx, url)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.GetSourceByPath(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
