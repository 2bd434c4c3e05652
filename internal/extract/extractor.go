package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

// Unit is one provenance-bearing piece of a source document: a PDF
// page, a presentation slide, or a word-processing body (number 0,
// position unknown).
type Unit struct {
	Kind   model.LocationKind
	Number int
	Text   string
}

// IExtractor pulls text units out of one document format.
type IExtractor interface {
	Name() string
	Extract(ctx context.Context, path string) ([]Unit, error)
}

var extractorsByExt = map[string]IExtractor{}

func register(e IExtractor, exts ...string) {
	for _, ext := range exts {
		extractorsByExt[ext] = e
	}
}

// ForFile picks the extractor matching the file extension.
func ForFile(path string) (IExtractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := extractorsByExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, ext)
	}
	return e, nil
}

// SupportedExtensions lists the extensions ForFile accepts.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extractorsByExt))
	for ext := range extractorsByExt {
		out = append(out, ext)
	}
	return out
}

// IsSupported reports whether path has an ingestible extension.
func IsSupported(path string) bool {
	_, ok := extractorsByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}
