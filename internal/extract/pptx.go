package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xxxsen/docchat/internal/model"
)

var slideEntryRegex = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type pptxExtractor struct{}

func (p *pptxExtractor) Name() string {
	return "pptx"
}

func (p *pptxExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	type slideEntry struct {
		num  int
		file *zip.File
	}
	var slides []slideEntry
	for _, f := range zr.File {
		m := slideEntryRegex.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideEntry{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	units := make([]Unit, 0, len(slides))
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("open slide %d: %w", s.num, err)
		}
		text, err := collectRunText(rc, "t", "p")
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", s.num, err)
		}
		units = append(units, Unit{
			Kind:   model.LocationSlide,
			Number: s.num,
			Text:   text,
		})
	}
	return units, nil
}

// collectRunText walks OOXML and joins the character data of every
// <textElem> run, inserting a newline at each </paraElem>. Works for
// DrawingML (a:t / a:p) and WordprocessingML (w:t / w:p) alike since
// the decoder matches on local names.
func collectRunText(r io.Reader, textElem, paraElem string) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	depth := 0
	inText := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == textElem {
				inText = depth
			}
		case xml.EndElement:
			if t.Name.Local == textElem && inText == depth {
				inText = 0
			}
			if t.Name.Local == paraElem {
				sb.WriteByte('\n')
			}
			depth--
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// SlideCount returns the number of slides without extracting text.
func SlideCount(path string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()
	count := 0
	for _, f := range zr.File {
		if slideEntryRegex.MatchString(f.Name) {
			count++
		}
	}
	return count, nil
}

func init() {
	register(&pptxExtractor{}, ".pptx", ".pptm")
}
