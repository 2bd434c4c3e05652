package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// IndexedRecord is the persisted form of a chunk. The backing store owns
// these; callers never mutate a record after handing it to UpsertBatch.
type IndexedRecord struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SearchResult is a transient per-query hit. Score is cosine similarity,
// identical on the accelerated and fallback paths.
type SearchResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float32                `json:"score"`
}

// RecordID derives the stable id for a chunk from its source filename and
// document-wide chunk index. Re-ingesting the same file overwrites the
// same ids instead of appending.
func RecordID(source string, chunkIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", source, chunkIndex)))
	return hex.EncodeToString(sum[:])
}
