package model

import "time"

// Document is the per-file registry row: one row per ingested source,
// summarizing what the chunk store holds for it.
type Document struct {
	Filename   string    `json:"filename" db:"filename"`
	FileType   string    `json:"file_type" db:"file_type"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	UnitCount  int       `json:"unit_count" db:"unit_count"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	FileHash   string    `json:"file_hash" db:"file_hash"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}
