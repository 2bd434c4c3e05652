package chunker

import (
	"strings"

	"github.com/xxxsen/docchat/internal/model"
)

// defaultSeparators is ordered coarse to fine so larger semantic units
// survive whole whenever they fit the chunk budget.
var defaultSeparators = []string{"\n\n\n", "\n\n", "\n", ". ", " ", ""}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Splitter cuts plain text into overlapping segments. Splitting is pure:
// the same input always yields the same chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewSplitter(cfg Config) *Splitter {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 800
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{
		chunkSize:  size,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split cuts text into chunks of at most ChunkSize characters, preferring
// coarser separators and carrying ChunkOverlap characters across
// boundaries. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	parts := s.split(text, s.separators)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// SplitWithProvenance splits one extraction unit and tags every chunk
// with its source and location. startIndex is the document-wide ordinal
// of the first produced chunk; the caller threads it across units so
// chunk ids stay unique within a document.
func (s *Splitter) SplitWithProvenance(text, source string, loc model.Location, startIndex int) []model.Chunk {
	pieces := s.Split(text)
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, model.Chunk{
			Text:       piece,
			Source:     source,
			Location:   loc,
			ChunkIndex: startIndex + i,
		})
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	sep := ""
	var finer []string
	for i, cand := range separators {
		if cand == "" {
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			finer = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = hardWrap(text, s.chunkSize)
	} else {
		pieces = strings.SplitAfter(text, sep)
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, ""))
		current, currentLen = s.overlapTail(current)
	}

	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if len(piece) > s.chunkSize && sep != "" {
			flush()
			current, currentLen = nil, 0
			chunks = append(chunks, s.split(piece, finer)...)
			continue
		}
		if currentLen+len(piece) > s.chunkSize && currentLen > 0 {
			flush()
		}
		current = append(current, piece)
		currentLen += len(piece)
	}
	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// overlapTail keeps the trailing pieces of a flushed chunk, up to the
// configured overlap, as the seed of the next chunk.
func (s *Splitter) overlapTail(pieces []string) ([]string, int) {
	if s.overlap <= 0 {
		return nil, 0
	}
	total := 0
	start := len(pieces)
	for i := len(pieces) - 1; i >= 0; i-- {
		if total+len(pieces[i]) > s.overlap {
			break
		}
		total += len(pieces[i])
		start = i
	}
	if start == len(pieces) {
		return nil, 0
	}
	tail := make([]string, len(pieces)-start)
	copy(tail, pieces[start:])
	return tail, total
}

func hardWrap(text string, width int) []string {
	runes := []rune(text)
	if len(runes) <= width {
		return []string{text}
	}
	var out []string
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
