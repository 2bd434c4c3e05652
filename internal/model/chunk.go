package model

// LocationKind identifies the unit a chunk was extracted from.
type LocationKind string

const (
	LocationPage  LocationKind = "page"
	LocationSlide LocationKind = "slide"
)

// Location points at the page or slide a chunk came from. Number is
// 1-based; 0 means the source format has no page/slide notion (docx).
type Location struct {
	Kind   LocationKind `json:"kind"`
	Number int          `json:"number"`
}

// Chunk is a bounded text segment with provenance, the unit of embedding
// and retrieval. ChunkIndex is a document-wide ordinal, so
// (Source, ChunkIndex) identifies a chunk stably across re-ingests.
type Chunk struct {
	Text       string                 `json:"text"`
	Source     string                 `json:"source"`
	Location   Location               `json:"location"`
	ChunkIndex int                    `json:"chunk_index"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}
