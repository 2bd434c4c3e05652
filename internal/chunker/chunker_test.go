package chunker

import (
	"reflect"
	"strings"
	"testing"

	"github.com/xxxsen/docchat/internal/model"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 800, ChunkOverlap: 150})
	// 40 chars, well under one chunk
	text := strings.Repeat("abcd ", 8)
	got := s.Split(text)
	if len(got) != 1 {
		t.Fatalf("Split() produced %d chunks, want 1", len(got))
	}
	if got[0] != strings.TrimSpace(text) {
		t.Errorf("Split() = %q, want trimmed input", got[0])
	}
}

func TestSplitDropsWhitespaceOnly(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 100, ChunkOverlap: 10})
	for _, input := range []string{"", "   ", "\n\n\n", "\t \n"} {
		if got := s.Split(input); len(got) != 0 {
			t.Errorf("Split(%q) = %v, want no chunks", input, got)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 60, ChunkOverlap: 0})
	para1 := strings.Repeat("a", 40)
	para2 := strings.Repeat("b", 40)
	got := s.Split(para1 + "\n\n" + para2)
	if len(got) != 2 {
		t.Fatalf("Split() produced %d chunks, want 2: %v", len(got), got)
	}
	if got[0] != para1 || got[1] != para2 {
		t.Errorf("Split() did not cut at the paragraph break: %v", got)
	}
}

func TestSplitOverlapCarriesTail(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 50, ChunkOverlap: 20})
	var sentences []string
	for _, word := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"} {
		sentences = append(sentences, "sentence about "+word+". ")
	}
	got := s.Split(strings.Join(sentences, ""))
	if len(got) < 2 {
		t.Fatalf("Split() produced %d chunks, want at least 2", len(got))
	}
	for i := 1; i < len(got); i++ {
		head := got[i][:strings.Index(got[i]+".", ".")]
		if !strings.Contains(got[i-1], head) {
			t.Errorf("chunk %d does not overlap its predecessor: %q then %q", i, got[i-1], got[i])
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 80, ChunkOverlap: 20})
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	first := s.Split(text)
	second := s.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("Split() is not deterministic for identical input")
	}
}

func TestSplitHardWrapWithoutSeparators(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 10, ChunkOverlap: 0})
	got := s.Split(strings.Repeat("x", 25))
	if len(got) != 3 {
		t.Fatalf("Split() produced %d chunks, want 3: %v", len(got), got)
	}
	for i, chunk := range got {
		if len(chunk) > 10 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(chunk))
		}
	}
}

func TestSplitWithProvenance(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 800, ChunkOverlap: 150})
	loc := model.Location{Kind: model.LocationPage, Number: 3}
	chunks := s.SplitWithProvenance("page three text", "report.pdf", loc, 7)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Source != "report.pdf" || c.Location != loc || c.ChunkIndex != 7 {
		t.Errorf("provenance not threaded: %+v", c)
	}
}
