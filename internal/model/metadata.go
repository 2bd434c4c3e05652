package model

// Metadata keys every stored chunk carries.
const (
	MetaSource         = "source"
	MetaLocationKind   = "location_kind"
	MetaLocationNumber = "location_number"
	MetaChunkIndex     = "chunk_index"
	MetaFileType       = "file_type"
)
