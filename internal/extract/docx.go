package extract

import (
	"archive/zip"
	"context"
	"fmt"

	"github.com/xxxsen/docchat/internal/model"
)

type docxExtractor struct{}

func (d *docxExtractor) Name() string {
	return "docx"
}

// Extract returns the whole document body as a single unit. OOXML
// word-processing files carry no page boundaries in their markup, so
// the unit number stays 0 (position unknown).
func (d *docxExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document body: %w", err)
		}
		text, err := collectRunText(rc, "t", "p")
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse document body: %w", err)
		}
		return []Unit{{
			Kind:   model.LocationPage,
			Number: 0,
			Text:   text,
		}}, nil
	}
	return nil, fmt.Errorf("docx has no word/document.xml entry")
}

func init() {
	register(&docxExtractor{}, ".docx", ".docm")
}
