package model

// Citation is a structured reference extracted from generated answer
// text. It drives presentation assembly and is never persisted.
type Citation struct {
	SourceName     string       `json:"source_name"`
	LocationKind   LocationKind `json:"location_kind"`
	LocationNumber int          `json:"location_number"`
}
