package deck

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

func TestGroupCitationsPreservesFirstAppearanceOrder(t *testing.T) {
	citations := []model.Citation{
		{SourceName: "b.pptx", LocationKind: model.LocationSlide, LocationNumber: 2},
		{SourceName: "a.pdf", LocationKind: model.LocationPage, LocationNumber: 1},
		{SourceName: "b.pptx", LocationKind: model.LocationSlide, LocationNumber: 5},
		{SourceName: "a.pdf", LocationKind: model.LocationPage, LocationNumber: 3},
	}
	groups := groupCitations(citations)
	require.Len(t, groups, 2)
	require.Equal(t, "b.pptx", groups[0].Source)
	require.Len(t, groups[0].Refs, 2)
	require.Equal(t, 2, groups[0].Refs[0].LocationNumber)
	require.Equal(t, 5, groups[0].Refs[1].LocationNumber)
	require.Equal(t, "a.pdf", groups[1].Source)
}

func TestResolverStrategies(t *testing.T) {
	dir := t.TempDir()
	mk := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	mk("Quarterly Report.pptx")
	mk("notes.pdf")
	r := NewResolver(dir)

	// exact
	path, ok := r.Find("notes.pdf", []string{".pdf"})
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "notes.pdf"), path)

	// case-insensitive
	_, ok = r.Find("quarterly report.pptx", []string{".pptx", ".pptm"})
	require.True(t, ok)

	// cited name is a substring of the file name
	_, ok = r.Find("Quarterly", []string{".pptx", ".pptm"})
	require.True(t, ok)

	// file name is a substring of the cited name
	_, ok = r.Find("Final Quarterly Report.pptx v2", []string{".pptx", ".pptm"})
	require.True(t, ok)

	// stem equality across extensions
	_, ok = r.Find("Quarterly Report.ppt", []string{".pptx", ".pptm"})
	require.True(t, ok)

	// extension filter applies
	_, ok = r.Find("notes.pdf", []string{".pptx"})
	require.False(t, ok)

	_, ok = r.Find("missing.pptx", []string{".pptx"})
	require.False(t, ok)
}

func TestRenderMarkdownLines(t *testing.T) {
	md := "# Findings\n\nRevenue grew.\n\n- point one\n- point two\n"
	lines := renderMarkdownLines(md)
	require.Equal(t, []renderedLine{
		{style: lineHeading, text: "Findings"},
		{style: lineBody, text: "Revenue grew."},
		{style: lineBullet, text: "point one"},
		{style: lineBullet, text: "point two"},
	}, lines)
}

func writeFakeDeck(t *testing.T, dir, name string, slideCount int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for i := 1; i <= slideCount; i++ {
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i))
		require.NoError(t, err)
		_, err = w.Write([]byte(`<p:sld><a:p><a:r><a:t>text</a:t></a:r></a:p></p:sld>`))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestAssembleRequiresCitations(t *testing.T) {
	g := NewGenerator(Config{DataDir: t.TempDir(), OutputDir: t.TempDir()})
	_, err := g.Assemble(context.Background(), "q", "a", nil)
	require.ErrorIs(t, err, appErr.ErrNoCitations)
}

func TestAssembleSlideCitations(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	writeFakeDeck(t, dataDir, "strategy.pptx", 3)
	g := NewGenerator(Config{DataDir: dataDir, OutputDir: outDir})

	citations := []model.Citation{
		{SourceName: "strategy.pptx", LocationKind: model.LocationSlide, LocationNumber: 2},
		{SourceName: "strategy.pptx", LocationKind: model.LocationSlide, LocationNumber: 99},
	}
	path, err := g.Assemble(context.Background(), "what is the plan?", "# Plan\n\nTwo launches (Source: strategy.pptx, Slide 2).", citations)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Regexp(t, regexp.MustCompile(`presentation_\d{8}_\d{6}\.pdf$`), path)
}

func writePdf(t *testing.T, dir, name string, pages int) {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(40, 10, fmt.Sprintf("page %d", i))
	}
	require.NoError(t, pdf.OutputFileAndClose(filepath.Join(dir, name)))
}

func TestAssembleOpensEachSourceOnce(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	writePdf(t, dataDir, "report.pdf", 3)

	opens := map[string]int{}
	orig := readSourceFile
	readSourceFile = func(name string) ([]byte, error) {
		opens[filepath.Base(name)]++
		return orig(name)
	}
	defer func() { readSourceFile = orig }()

	g := NewGenerator(Config{DataDir: dataDir, OutputDir: outDir})
	citations := []model.Citation{
		{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 1},
		{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 3},
		{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 2},
	}
	path, err := g.Assemble(context.Background(), "q", "three pages cited", citations)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, 1, opens["report.pdf"])
}

func TestTruncateSummaryCapsLongAnswers(t *testing.T) {
	require.Equal(t, "brief", truncateSummary("brief"))
	long := strings.Repeat("ab", summaryMaxChars)
	got := truncateSummary(long)
	require.Len(t, []rune(got), summaryMaxChars+3)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestAssembleSkipsUnresolvableSources(t *testing.T) {
	g := NewGenerator(Config{DataDir: t.TempDir(), OutputDir: t.TempDir()})
	citations := []model.Citation{
		{SourceName: "ghost.pdf", LocationKind: model.LocationPage, LocationNumber: 1},
	}
	path, err := g.Assemble(context.Background(), "q", "answer text", citations)
	require.NoError(t, err)
	require.FileExists(t, path)
}
