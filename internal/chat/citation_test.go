package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docchat/internal/model"
)

func TestExtractCitations(t *testing.T) {
	answer := "Revenue grew 12% (Source: report.pdf, Page 2). " +
		"Margins held steady (Source: report.pdf, Page 5) while the roadmap " +
		"was outlined earlier (Source: strategy.pptx, Slide 3)."
	citations := ExtractCitations(answer)
	require.Equal(t, []model.Citation{
		{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 2},
		{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 5},
		{SourceName: "strategy.pptx", LocationKind: model.LocationSlide, LocationNumber: 3},
	}, citations)
}

func TestExtractCitationsCaseInsensitive(t *testing.T) {
	answer := "(source: Deck.PPTX, slide 7) and (SOURCE: notes.pdf, PAGE 1)"
	citations := ExtractCitations(answer)
	require.Len(t, citations, 2)
	require.Equal(t, model.LocationSlide, citations[0].LocationKind)
	require.Equal(t, "Deck.PPTX", citations[0].SourceName)
	require.Equal(t, model.LocationPage, citations[1].LocationKind)
}

func TestExtractCitationsDeduplicatesPreservingOrder(t *testing.T) {
	answer := "(Source: a.pdf, Page 1) then (Source: b.pdf, Page 2) then (Source: a.pdf, Page 1)"
	citations := ExtractCitations(answer)
	require.Len(t, citations, 2)
	require.Equal(t, "a.pdf", citations[0].SourceName)
	require.Equal(t, "b.pdf", citations[1].SourceName)
}

func TestExtractCitationsIgnoresMalformed(t *testing.T) {
	require.Nil(t, ExtractCitations("No citations here."))
	require.Nil(t, ExtractCitations("(Source: x.pdf, Chapter 3)"))
	require.Nil(t, ExtractCitations("(Source: x.pdf, Page three)"))
}

func TestExtractCitationsTrimsSourceName(t *testing.T) {
	citations := ExtractCitations("(Source:   spaced name.pdf , Page 4)")
	require.Len(t, citations, 1)
	require.Equal(t, "spaced name.pdf", citations[0].SourceName)
}
