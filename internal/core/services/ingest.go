package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driven"
	"github.com/custodia-labs/glimpsed/internal/logger"
	"github.com/custodia-labs/glimpsed/internal/postprocessors/chunker"
)

// minAppendChars is the smallest amount of novel OCR text worth a write.
const minAppendChars = 50

// wordOverlapLimit marks an OCR line as already-seen when at least this
// share of its words appears in the prior document.
const wordOverlapLimit = 0.8

// messageTimeRe matches the embedded per-message timestamp.
var messageTimeRe = regexp.MustCompile(`\[(\d{1,2}):(\d{2})\s*(AM|PM)\]`)

// Pipeline converts capture payloads into deduplicated, chunked
// storage. One payload at a time: the mutex guards the store
// connection, the dedup cache, and the chunker.
type Pipeline struct {
	mu      sync.Mutex
	store   driven.CaptureStore
	chunker *chunker.Chunker
	cache   *dedupCache

	now      func() time.Time
	newDocID func() string

	ingested int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithChunker overrides the default chunker.
func WithChunker(c *chunker.Chunker) PipelineOption {
	return func(p *Pipeline) { p.chunker = c }
}

// WithCache sizes the dedup cache.
func WithCache(ttl time.Duration, capacity int) PipelineOption {
	return func(p *Pipeline) { p.cache = newDedupCache(ttl, capacity) }
}

// NewPipeline builds an ingestion pipeline over a capture store.
func NewPipeline(store driven.CaptureStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		chunker:  chunker.New(),
		cache:    newDedupCache(DefaultCacheTTL, DefaultCacheCapacity),
		now:      time.Now,
		newDocID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest lands one payload. It never returns an error: failures are
// reported in the result so callers, wire or in-process, keep serving.
func (p *Pipeline) Ingest(ctx context.Context, payload domain.CapturePayload) domain.IngestResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if payload.Source == "" {
		return domain.Errored("payload has no source")
	}
	if strings.TrimSpace(payload.URL) == "" {
		return domain.Errored("payload has no url")
	}
	if strings.TrimSpace(payload.Content) == "" {
		return domain.Skipped("empty content")
	}

	sourcePath := NormalizeURL(payload.Source, payload.URL)

	var result domain.IngestResult
	switch domain.ClassOf(payload.Source) {
	case domain.ClassMessaging:
		result = p.ingestMessages(ctx, payload, sourcePath)
	case domain.ClassScreenCapture:
		result = p.ingestScreenCapture(ctx, payload, sourcePath)
	default:
		result = p.ingestContent(ctx, payload, sourcePath)
	}

	p.ingested++
	if p.ingested%1000 == 0 {
		hits, misses, evictions := p.cache.Stats()
		logger.Debug("ingested %d payloads, dedup cache holds %d entries (%d hits, %d misses, %d evictions)",
			p.ingested, p.cache.Len(), hits, misses, evictions)
	}
	return result
}

// ingestContent is the content-level replace strategy: same fingerprint
// is a duplicate, a changed fingerprint replaces every chunk.
func (p *Pipeline) ingestContent(ctx context.Context, payload domain.CapturePayload, sourcePath string) domain.IngestResult {
	hash := fingerprint(payload.Content)

	if cachedHash, _, ok := p.cache.Lookup(sourcePath); ok && cachedHash == hash {
		return domain.Skipped("unchanged content")
	}

	src, err := p.store.GetSourceByPath(ctx, sourcePath)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return p.createSource(ctx, payload, sourcePath, hash)
	case err != nil:
		return domain.Errored(fmt.Sprintf("lookup %s: %v", sourcePath, err))
	}

	if src.ContentHash == hash {
		p.cache.Store(sourcePath, hash, src.EhlDocID)
		return domain.Skipped("unchanged content")
	}

	chunks := p.buildChunks(payload, sourcePath, src.EhlDocID, payload.Content, 0)
	src.ContentHash = hash
	src.ChunkCount = len(chunks)
	src.UpdatedAt = p.now()

	if err := p.store.ReplaceChunks(ctx, src, chunks); err != nil {
		return domain.Errored(fmt.Sprintf("replace chunks for %s: %v", sourcePath, err))
	}
	p.cache.Store(sourcePath, hash, src.EhlDocID)
	return domain.Updated(src.EhlDocID, len(chunks))
}

func (p *Pipeline) createSource(ctx context.Context, payload domain.CapturePayload, sourcePath, hash string) domain.IngestResult {
	docID := p.newDocID()
	chunks := p.buildChunks(payload, sourcePath, docID, payload.Content, 0)
	now := p.now()

	src := &domain.ContentSource{
		SourceType:  payload.Source,
		SourcePath:  sourcePath,
		ContentHash: hash,
		EhlDocID:    docID,
		ChunkCount:  len(chunks),
		Status:      domain.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.CreateSource(ctx, src, chunks); err != nil {
		return domain.Errored(fmt.Sprintf("create %s: %v", sourcePath, err))
	}
	p.cache.Store(sourcePath, hash, docID)
	return domain.Created(docID, len(chunks))
}

// ingestMessages deduplicates chat content line by line, then rebuilds
// the document's chunks from the full ordered message log.
func (p *Pipeline) ingestMessages(ctx context.Context, payload domain.CapturePayload, sourcePath string) domain.IngestResult {
	lines := nonEmptyLines(payload.Content)
	if len(lines) == 0 {
		return domain.Skipped("no messages")
	}

	now := p.now()
	seen := make(map[string]bool, len(lines))
	var incoming []domain.Message
	var hashes []string
	for _, line := range lines {
		h := fingerprint(line)
		if seen[h] {
			continue
		}
		seen[h] = true
		hashes = append(hashes, h)
		incoming = append(incoming, domain.Message{
			SourceURL:    sourcePath,
			MessageHash:  h,
			MessageText:  line,
			MessageOrder: messageOrder(line),
			CreatedAt:    now,
		})
	}

	existing, err := p.store.ExistingMessageHashes(ctx, sourcePath, hashes)
	if err != nil {
		return domain.Errored(fmt.Sprintf("message hashes for %s: %v", sourcePath, err))
	}

	var fresh []domain.Message
	for _, m := range incoming {
		if !existing[m.MessageHash] {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return domain.Skipped("no new messages")
	}

	src, err := p.store.GetSourceByPath(ctx, sourcePath)
	created := false
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created = true
		src = &domain.ContentSource{
			SourceType: payload.Source,
			SourcePath: sourcePath,
			EhlDocID:   p.newDocID(),
			Status:     domain.StatusCompleted,
			CreatedAt:  now,
		}
	case err != nil:
		return domain.Errored(fmt.Sprintf("lookup %s: %v", sourcePath, err))
	}

	prior, err := p.store.GetMessages(ctx, sourcePath)
	if err != nil {
		return domain.Errored(fmt.Sprintf("messages for %s: %v", sourcePath, err))
	}

	log := append(prior, fresh...)
	sort.SliceStable(log, func(i, j int) bool {
		if log[i].MessageOrder != log[j].MessageOrder {
			return log[i].MessageOrder < log[j].MessageOrder
		}
		return log[i].CreatedAt.Before(log[j].CreatedAt)
	})

	texts := make([]string, len(log))
	for i, m := range log {
		texts[i] = m.MessageText
	}
	full := strings.Join(texts, "\n")

	chunks := p.buildChunks(payload, sourcePath, src.EhlDocID, full, 0)
	src.ContentHash = fingerprint(full)
	src.ChunkCount = len(chunks)
	src.UpdatedAt = now

	if err := p.store.AppendMessages(ctx, fresh, src, chunks); err != nil {
		return domain.Errored(fmt.Sprintf("append messages for %s: %v", sourcePath, err))
	}
	p.cache.Store(sourcePath, src.ContentHash, src.EhlDocID)

	if created {
		return domain.Created(src.EhlDocID, len(chunks))
	}
	return domain.Updated(src.EhlDocID, len(chunks))
}

// ingestScreenCapture appends only lines novel against the prior text.
// OCR of the same screen drifts slightly between captures; exact-line
// and word-set checks absorb that noise.
func (p *Pipeline) ingestScreenCapture(ctx context.Context, payload domain.CapturePayload, sourcePath string) domain.IngestResult {
	hash := fingerprint(payload.Content)

	if cachedHash, _, ok := p.cache.Lookup(sourcePath); ok && cachedHash == hash {
		return domain.Skipped("unchanged capture")
	}

	src, err := p.store.GetSourceByPath(ctx, sourcePath)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return p.createSource(ctx, payload, sourcePath, hash)
	case err != nil:
		return domain.Errored(fmt.Sprintf("lookup %s: %v", sourcePath, err))
	}

	if src.ContentHash == hash {
		p.cache.Store(sourcePath, hash, src.EhlDocID)
		return domain.Skipped("unchanged capture")
	}

	chunks, err := p.store.GetChunks(ctx, src.EhlDocID)
	if err != nil {
		return domain.Errored(fmt.Sprintf("chunks for %s: %v", sourcePath, err))
	}
	prior := reconstruct(chunks)

	newText := novelLines(prior, payload.Content)
	if len(newText) < minAppendChars {
		return domain.Skipped("no novel text")
	}

	fresh := p.buildChunks(payload, sourcePath, src.EhlDocID, newText, src.ChunkCount)
	src.ContentHash = fingerprint(prior + "\n\n" + newText)
	src.ChunkCount += len(fresh)
	src.UpdatedAt = p.now()

	if err := p.store.AppendChunks(ctx, src, fresh); err != nil {
		return domain.Errored(fmt.Sprintf("append chunks for %s: %v", sourcePath, err))
	}
	p.cache.Store(sourcePath, src.ContentHash, src.EhlDocID)
	return domain.Updated(src.EhlDocID, len(fresh))
}

// novelLines collects the incoming lines absent from the prior text,
// where absent means no exact match and under 80 percent word overlap.
func novelLines(prior, incoming string) string {
	priorLines := make(map[string]bool)
	priorWords := make(map[string]bool)
	for _, line := range nonEmptyLines(prior) {
		priorLines[line] = true
		for _, w := range strings.Fields(line) {
			priorWords[strings.ToLower(w)] = true
		}
	}

	var novel []string
	for _, line := range nonEmptyLines(incoming) {
		if priorLines[line] {
			continue
		}
		words := strings.Fields(line)
		if len(words) > 0 {
			known := 0
			for _, w := range words {
				if priorWords[strings.ToLower(w)] {
					known++
				}
			}
			if float64(known)/float64(len(words)) >= wordOverlapLimit {
				continue
			}
		}
		novel = append(novel, line)
	}
	return strings.Join(novel, "\n")
}

// buildChunks splits text and wraps each slice with its metadata.
// startIndex shifts chunk indices for append-style writes; the new
// chunks' meta carries the extended total.
func (p *Pipeline) buildChunks(payload domain.CapturePayload, sourcePath, docID, text string, startIndex int) []domain.Chunk {
	parts := p.chunker.Split(text)
	total := startIndex + len(parts)
	now := p.now()

	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{
			Text: part,
			Meta: domain.ChunkMeta{
				ID:          docID,
				Source:      payload.Source,
				URL:         sourcePath,
				Title:       payload.Title,
				Author:      payload.Author,
				Channel:     payload.Channel,
				ChunkIndex:  startIndex + i,
				TotalChunks: total,
				SourceType:  payload.Source,
				AppName:     payload.AppName,
				BundleID:    payload.BundleID,
			},
			CreatedAt: now,
		}
	}
	return chunks
}

// reconstruct rebuilds a document from its live chunks.
func reconstruct(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// messageOrder derives the total-order key from an embedded
// [HH:MM AM/PM] timestamp, as minutes since midnight. Lines without a
// timestamp order first.
func messageOrder(line string) int {
	m := messageTimeRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	hour %= 12
	if m[3] == "PM" {
		hour += 12
	}
	return hour*60 + minute
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
