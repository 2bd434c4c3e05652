package deck

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/extract"
	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

const watermarkDesc = "font:Helvetica, points:12, pos:tc, off:0 -15, scale:1 abs, rot:0"

// summaryMaxChars caps the front-matter summary to one page.
const summaryMaxChars = 1000

func truncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= summaryMaxChars {
		return s
	}
	return string(runes[:summaryMaxChars]) + "..."
}

type Config struct {
	DataDir   string
	OutputDir string
}

// Generator assembles a citation-driven deck as a PDF. Pages cited
// from PDF sources are copied verbatim with a provenance stamp; slide
// citations get a labeled placeholder page, since slide content cannot
// be transplanted into a PDF without its rendering engine.
type Generator struct {
	cfg      Config
	resolver *Resolver
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, resolver: NewResolver(cfg.DataDir)}
}

type citationGroup struct {
	Source string
	Refs   []model.Citation
}

// groupCitations buckets citations by source, preserving the order in
// which sources first appear. Each source file is then opened once no
// matter how many of its pages are cited.
func groupCitations(citations []model.Citation) []citationGroup {
	index := map[string]int{}
	var groups []citationGroup
	for _, c := range citations {
		i, ok := index[c.SourceName]
		if !ok {
			i = len(groups)
			index[c.SourceName] = i
			groups = append(groups, citationGroup{Source: c.SourceName})
		}
		groups[i].Refs = append(groups[i].Refs, c)
	}
	return groups
}

// Assemble builds the deck for one answered query and returns the
// output path.
func (g *Generator) Assemble(ctx context.Context, query string, answer string, citations []model.Citation) (string, error) {
	if len(citations) == 0 {
		return "", appErr.ErrNoCitations
	}
	logger := logutil.GetLogger(ctx)
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return "", err
	}
	workDir, err := os.MkdirTemp("", "docchat-deck-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	frontPath := filepath.Join(workDir, "front.pdf")
	if err := g.writeFrontMatter(frontPath, query, answer); err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}
	parts := []string{frontPath}

	partNum := 0
	for _, group := range groupCitations(citations) {
		added, err := g.appendGroup(ctx, workDir, &partNum, group)
		if err != nil {
			logger.Warn("skip cited source", zap.String("source", group.Source), zap.Error(err))
			continue
		}
		parts = append(parts, added...)
	}

	if len(parts) == 1 {
		// nothing was copyable, fall back to a labeled reference list
		refPath := filepath.Join(workDir, "references.pdf")
		if err := g.writeReferenceList(refPath, citations); err != nil {
			return "", fmt.Errorf("render reference list: %w", err)
		}
		parts = append(parts, refPath)
		logger.Warn("no cited content could be copied, deck lists references only")
	}

	outPath := filepath.Join(g.cfg.OutputDir, fmt.Sprintf("presentation_%s.pdf", time.Now().Format("20060102_150405")))
	conf := pdfmodel.NewDefaultConfiguration()
	if err := api.MergeCreateFile(parts, outPath, false, conf); err != nil {
		return "", fmt.Errorf("merge deck: %w", err)
	}
	logger.Info("deck assembled",
		zap.String("path", outPath),
		zap.Int("cited_parts", len(parts)-1),
	)
	return outPath, nil
}

// readSourceFile loads a cited source into memory; swapped in tests
// to observe how often sources are opened.
var readSourceFile = os.ReadFile

// appendGroup renders the pages for one source's citations into
// workDir and returns the paths in citation order. The source is
// resolved and read once no matter how many citations point at it.
func (g *Generator) appendGroup(ctx context.Context, workDir string, partNum *int, group citationGroup) ([]string, error) {
	if group.Refs[0].LocationKind == model.LocationSlide {
		return g.appendSlideGroup(ctx, workDir, partNum, group)
	}
	return g.appendPageGroup(ctx, workDir, partNum, group)
}

func (g *Generator) appendPageGroup(ctx context.Context, workDir string, partNum *int, group citationGroup) ([]string, error) {
	logger := logutil.GetLogger(ctx)
	srcPath, ok := g.resolver.Find(group.Source, []string{".pdf"})
	if !ok {
		return nil, fmt.Errorf("source file not found: %s", group.Source)
	}
	raw, err := readSourceFile(srcPath)
	if err != nil {
		return nil, err
	}
	conf := pdfmodel.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContext(bytes.NewReader(raw), conf)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", group.Source, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("read source %s: %w", group.Source, err)
	}
	pageCount := pdfCtx.PageCount

	var paths []string
	for _, ref := range group.Refs {
		if ref.LocationNumber < 1 || ref.LocationNumber > pageCount {
			logger.Warn("skip citation, page out of range",
				zap.String("source", ref.SourceName),
				zap.Int("page", ref.LocationNumber),
				zap.Int("page_count", pageCount),
			)
			continue
		}
		*partNum++
		partPath := filepath.Join(workDir, fmt.Sprintf("part_%03d.pdf", *partNum))
		if err := g.copyStampedPage(raw, partPath, ref, conf); err != nil {
			logger.Warn("skip citation",
				zap.String("source", ref.SourceName),
				zap.Int("page", ref.LocationNumber),
				zap.Error(err),
			)
			continue
		}
		paths = append(paths, partPath)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no usable citations for %s", group.Source)
	}
	return paths, nil
}

// copyStampedPage trims one page out of the already loaded source and
// stamps it with its provenance.
func (g *Generator) copyStampedPage(raw []byte, outPath string, ref model.Citation, conf *pdfmodel.Configuration) error {
	trimmed := outPath + ".trim"
	f, err := os.Create(trimmed)
	if err != nil {
		return err
	}
	err = api.Trim(bytes.NewReader(raw), f, []string{strconv.Itoa(ref.LocationNumber)}, conf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy page: %w", err)
	}
	defer os.Remove(trimmed)
	stamp := fmt.Sprintf("Source: %s - Page %d", ref.SourceName, ref.LocationNumber)
	if err := api.AddTextWatermarksFile(trimmed, outPath, nil, true, stamp, watermarkDesc, conf); err != nil {
		return fmt.Errorf("stamp page: %w", err)
	}
	return nil
}

func (g *Generator) appendSlideGroup(ctx context.Context, workDir string, partNum *int, group citationGroup) ([]string, error) {
	logger := logutil.GetLogger(ctx)
	srcPath, ok := g.resolver.Find(group.Source, []string{".pptx", ".pptm"})
	if !ok {
		return nil, fmt.Errorf("source file not found: %s", group.Source)
	}
	slideCount, err := extract.SlideCount(srcPath)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, ref := range group.Refs {
		if ref.LocationNumber < 1 || ref.LocationNumber > slideCount {
			logger.Warn("skip citation, slide out of range",
				zap.String("source", ref.SourceName),
				zap.Int("slide", ref.LocationNumber),
				zap.Int("slide_count", slideCount),
			)
			continue
		}
		*partNum++
		partPath := filepath.Join(workDir, fmt.Sprintf("part_%03d.pdf", *partNum))
		if err := renderSlidePlaceholder(partPath, ref, srcPath); err != nil {
			logger.Warn("skip citation",
				zap.String("source", ref.SourceName),
				zap.Int("slide", ref.LocationNumber),
				zap.Error(err),
			)
			continue
		}
		paths = append(paths, partPath)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no usable citations for %s", group.Source)
	}
	return paths, nil
}

// renderSlidePlaceholder emits a labeled page pointing back at the
// source deck; slide content cannot be transplanted into a PDF.
func renderSlidePlaceholder(outPath string, ref model.Citation, srcPath string) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Source: %s - Slide %d", ref.SourceName, ref.LocationNumber)), "", 1, "C", false, 0, "")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 7, tr(fmt.Sprintf("Referenced slide %d of %s.", ref.LocationNumber, filepath.Base(srcPath))), "", "C", false)
	return pdf.OutputFileAndClose(outPath)
}

// writeReferenceList emits a page naming every cited location. Used
// when none of the cited sources could contribute actual content.
func (g *Generator) writeReferenceList(path string, citations []model.Citation) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, "Referenced Sources (content unavailable)", "", "L", false)
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "", 11)
	for _, group := range groupCitations(citations) {
		for _, ref := range group.Refs {
			kind := "Page"
			if ref.LocationKind == model.LocationSlide {
				kind = "Slide"
			}
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("- Source: %s - %s %d", ref.SourceName, kind, ref.LocationNumber)), "", "L", false)
		}
	}
	return pdf.OutputFileAndClose(path)
}

func (g *Generator) writeFrontMatter(path string, query string, answer string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 24)
	pdf.Ln(60)
	pdf.MultiCell(0, 12, "Generated Presentation", "", "C", false)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 13)
	pdf.MultiCell(0, 8, tr("Query: "+query), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 7, "Generated: "+time.Now().Format("2006-01-02 15:04"), "", "C", false)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, "Summary", "", "L", false)
	pdf.Ln(3)
	for _, line := range renderMarkdownLines(truncateSummary(answer)) {
		switch line.style {
		case lineHeading:
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 8, tr(line.text), "", "L", false)
		case lineBullet:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr("- "+line.text), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(line.text), "", "L", false)
		}
		pdf.Ln(1)
	}
	return pdf.OutputFileAndClose(path)
}
