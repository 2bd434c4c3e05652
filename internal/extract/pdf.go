package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/xxxsen/docchat/internal/model"
)

type pdfExtractor struct{}

func (p *pdfExtractor) Name() string {
	return "pdf"
}

func (p *pdfExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, nil
	}

	outDir, err := os.MkdirTemp("", "docchat-pdf-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	conf := pdfmodel.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extract pdf content: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = decodeContentText(raw)
	}

	units := make([]Unit, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		units = append(units, Unit{
			Kind:   model.LocationPage,
			Number: pageNum,
			Text:   pageTexts[pageNum],
		})
	}
	return units, nil
}

// decodeContentText pulls the show-text operands out of a PDF content
// stream. Literal strings ahead of Tj/TJ/' operators carry the page
// text; everything else is drawing operators.
func decodeContentText(raw []byte) string {
	var sb strings.Builder
	var current strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			if escaped {
				switch c {
				case 'n':
					current.WriteByte('\n')
				case 't':
					current.WriteByte('\t')
				case 'r', 'b', 'f':
				default:
					current.WriteByte(c)
				}
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case ')':
				inString = false
				if current.Len() > 0 {
					if sb.Len() > 0 {
						sb.WriteByte(' ')
					}
					sb.WriteString(current.String())
					current.Reset()
				}
			default:
				current.WriteByte(c)
			}
			continue
		}
		if c == '(' {
			inString = true
		}
	}
	return strings.TrimSpace(sb.String())
}

func init() {
	register(&pdfExtractor{}, ".pdf")
}
