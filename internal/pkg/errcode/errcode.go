package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrUnsupportedFormat
	ErrDimensionMismatch
	ErrUploadFailed
	ErrUploadTooLarge
	ErrAIUnavailable
	ErrNoCitations
	ErrTooMany
)
