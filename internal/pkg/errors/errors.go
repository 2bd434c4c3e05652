package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrAIUnavailable     = errors.New("ai provider unavailable")
	ErrNoCitations       = errors.New("no citations in conversation")
	ErrUploadTooLarge    = errors.New("upload too large")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}
