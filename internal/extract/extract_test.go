package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestForFileDispatch(t *testing.T) {
	cases := []struct {
		path string
		name string
	}{
		{"report.pdf", "pdf"},
		{"Deck.PPTX", "pptx"},
		{"deck.pptm", "pptx"},
		{"notes.docx", "docx"},
		{"notes.docm", "docx"},
	}
	for _, c := range cases {
		e, err := ForFile(c.path)
		require.NoError(t, err, c.path)
		require.Equal(t, c.name, e.Name(), c.path)
	}
}

func TestForFileUnsupported(t *testing.T) {
	_, err := ForFile("data.csv")
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.False(t, IsSupported("image.png"))
	require.True(t, IsSupported("slides.pptx"))
}

func TestPptxExtractOrdersSlidesNumerically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	slideXML := func(text string) string {
		return `<?xml version="1.0"?>` +
			`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
			`<a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:sld>`
	}
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml": slideXML("tenth slide"),
		"ppt/slides/slide2.xml":  slideXML("second slide"),
		"ppt/slides/slide1.xml":  slideXML("first slide"),
		"ppt/presentation.xml":   `<p:presentation/>`,
	})

	units, err := (&pptxExtractor{}).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.Equal(t, 1, units[0].Number)
	require.Equal(t, "first slide", units[0].Text)
	require.Equal(t, 2, units[1].Number)
	require.Equal(t, 10, units[2].Number)
	require.Equal(t, "tenth slide", units[2].Text)
	for _, u := range units {
		require.Equal(t, model.LocationSlide, u.Kind)
	}
}

func TestPptxExtractJoinsRunsAndParagraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide1.xml": `<p:sld>` +
			`<a:p><a:r><a:t>Hello </a:t></a:r><a:r><a:t>world</a:t></a:r></a:p>` +
			`<a:p><a:r><a:t>Second paragraph</a:t></a:r></a:p>` +
			`</p:sld>`,
	})

	units, err := (&pptxExtractor{}).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, "Hello world\nSecond paragraph", units[0].Text)
}

func TestDocxExtractSingleUnknownUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<w:document>` +
			`<w:body><w:p><w:r><w:t>Alpha</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Beta</w:t></w:r></w:p></w:body>` +
			`</w:document>`,
	})

	units, err := (&docxExtractor{}).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, model.LocationPage, units[0].Kind)
	require.Equal(t, 0, units[0].Number)
	require.Equal(t, "Alpha\nBeta", units[0].Text)
}

func TestDocxExtractMissingBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	writeZip(t, path, map[string]string{"other.xml": `<x/>`})

	_, err := (&docxExtractor{}).Extract(context.Background(), path)
	require.Error(t, err)
}

func TestDecodeContentText(t *testing.T) {
	stream := `BT /F1 12 Tf 72 712 Td (Hello) Tj (World) Tj ET`
	require.Equal(t, "Hello World", decodeContentText([]byte(stream)))

	escaped := `(Line \(one\)) Tj (tab\there) Tj`
	require.Equal(t, "Line (one) tab\there", decodeContentText([]byte(escaped)))

	require.Equal(t, "", decodeContentText([]byte(`0 0 m 100 100 l S`)))
}

func TestFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	fp, err := Fingerprint(path)
	require.NoError(t, err)
	require.Equal(t, int64(5), fp.Size)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", fp.Hash)
}
