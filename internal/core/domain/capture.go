package domain

import "time"

// ContentSource is a persisted document identity. SourcePath is the
// normalized URL and is unique; EhlDocID is assigned on first insertion
// and never changes across updates.
type ContentSource struct {
	ID          int64
	SourceType  string
	SourcePath  string
	ContentHash string
	EhlDocID    string
	ChunkCount  int
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ingestion statuses for a content source.
const (
	StatusCompleted = "completed"
)

// ChunkMeta is the JSON metadata embedded in every chunk row.
// Readers reconstruct a document by taking non-deleted chunks whose
// meta id matches, in ascending ChunkIndex.
type ChunkMeta struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	SourceType  string `json:"source_type"`
	AppName     string `json:"app_name,omitempty"`
	BundleID    string `json:"bundle_id,omitempty"`
}

// Chunk is a persisted bounded-token slice of a document.
type Chunk struct {
	ID          int64
	VectorIndex *int64
	Text        string
	Meta        ChunkMeta
	IsDeleted   bool
	CreatedAt   time.Time
}

// Message is one deduplicated chat line. Unique on (SourceURL, MessageHash);
// MessageOrder is minutes-since-midnight derived from an embedded timestamp,
// 0 when the line carries none.
type Message struct {
	ID           int64
	SourceURL    string
	MessageHash  string
	MessageText  string
	MessageOrder int
	CreatedAt    time.Time
}

// IngestStatus is the outcome class of one payload.
type IngestStatus string

// Payload outcomes, as reported on the wire protocol.
const (
	IngestCreated IngestStatus = "created"
	IngestUpdated IngestStatus = "updated"
	IngestSkipped IngestStatus = "skipped"
	IngestError   IngestStatus = "error"
)

// IngestResult is the pipeline's response for a single payload.
type IngestResult struct {
	Status   IngestStatus `json:"status"`
	EhlDocID string       `json:"ehl_doc_id,omitempty"`
	Chunks   int          `json:"chunks,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Created builds a created result.
func Created(docID string, chunks int) IngestResult {
	return IngestResult{Status: IngestCreated, EhlDocID: docID, Chunks: chunks}
}

// Updated builds an updated result.
func Updated(docID string, chunks int) IngestResult {
	return IngestResult{Status: IngestUpdated, EhlDocID: docID, Chunks: chunks}
}

// Skipped builds a skipped (duplicate) result.
func Skipped(reason string) IngestResult {
	return IngestResult{Status: IngestSkipped, Message: reason}
}

// Errored builds an error result.
func Errored(msg string) IngestResult {
	return IngestResult{Status: IngestError, Message: msg}
}
