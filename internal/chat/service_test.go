package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

type fakeSearcher struct {
	results []*model.SearchResult
	lastK   int
}

func (f *fakeSearcher) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]*model.SearchResult, error) {
	f.lastK = topK
	return f.results, nil
}

type fakeQueryEmbedder struct {
	lastTaskType string
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.lastTaskType = taskType
	return []float32{1, 0, 0}, nil
}

type fakeGenerator struct {
	answer string
	calls  int
	prompt string
	system string
}

func (f *fakeGenerator) Complete(ctx context.Context, system string, prompt string) (string, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	return f.answer, nil
}

func chunkResult(source string, kind model.LocationKind, number int, text string) *model.SearchResult {
	return &model.SearchResult{
		ID:   model.RecordID(source, number),
		Text: text,
		Metadata: map[string]interface{}{
			model.MetaSource:         source,
			model.MetaLocationKind:   string(kind),
			model.MetaLocationNumber: float64(number), // jsonb numbers decode as float64
		},
		Score: 0.9,
	}
}

func TestAskEmptyIndexSkipsModel(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	svc := NewService(&fakeSearcher{}, &fakeQueryEmbedder{}, gen, Config{TopK: 10})

	conv, err := svc.Ask(context.Background(), "s1", "what is the roadmap?")
	require.NoError(t, err)
	require.Equal(t, notFoundAnswer, conv.Answer)
	require.Zero(t, conv.ChunksUsed)
	require.Empty(t, conv.Citations)
	require.Zero(t, gen.calls)

	stored, err := svc.GetConversation("s1")
	require.NoError(t, err)
	require.Equal(t, conv, stored)
}

func TestAskBuildsGroundedAnswer(t *testing.T) {
	searcher := &fakeSearcher{results: []*model.SearchResult{
		chunkResult("report.pdf", model.LocationPage, 2, "Revenue grew 12% in Q3."),
		chunkResult("strategy.pptx", model.LocationSlide, 3, "Roadmap targets two launches."),
	}}
	emb := &fakeQueryEmbedder{}
	gen := &fakeGenerator{answer: "Revenue grew 12% (Source: report.pdf, Page 2). Two launches planned (Source: strategy.pptx, Slide 3)."}
	svc := NewService(searcher, emb, gen, Config{TopK: 10})

	conv, err := svc.Ask(context.Background(), "s1", "how did Q3 go?")
	require.NoError(t, err)
	require.Equal(t, "RETRIEVAL_QUERY", emb.lastTaskType)
	require.Equal(t, 10, searcher.lastK)
	require.Equal(t, 2, conv.ChunksUsed)
	require.Equal(t, []string{"report.pdf", "strategy.pptx"}, conv.Sources)
	require.Len(t, conv.Citations, 2)
	require.Equal(t, model.Citation{SourceName: "report.pdf", LocationKind: model.LocationPage, LocationNumber: 2}, conv.Citations[0])

	require.Contains(t, gen.prompt, "### CONTEXT CHUNK 1 ###")
	require.Contains(t, gen.prompt, "Source: report.pdf")
	require.Contains(t, gen.prompt, "Location: Page 2")
	require.Contains(t, gen.prompt, "Location: Slide 3")
	require.Contains(t, gen.prompt, "Question: how did Q3 go?")
	require.Contains(t, gen.system, "(Source: filename, Page/Slide X)")
}

func TestAskUnknownLocationLeftBlank(t *testing.T) {
	searcher := &fakeSearcher{results: []*model.SearchResult{
		chunkResult("notes.docx", model.LocationPage, 0, "Body text."),
	}}
	gen := &fakeGenerator{answer: "Something (Source: notes.docx, Page 1)."}
	svc := NewService(searcher, &fakeQueryEmbedder{}, gen, Config{})

	_, err := svc.Ask(context.Background(), "s1", "q")
	require.NoError(t, err)
	require.Contains(t, gen.prompt, "Location: \nContent: Body text.")
}

func TestConversationLifecyclePerSession(t *testing.T) {
	searcher := &fakeSearcher{results: []*model.SearchResult{
		chunkResult("a.pdf", model.LocationPage, 1, "text"),
	}}
	svc := NewService(searcher, &fakeQueryEmbedder{}, &fakeGenerator{answer: "ok"}, Config{})

	_, err := svc.Ask(context.Background(), "alice", "q1")
	require.NoError(t, err)
	_, err = svc.GetConversation("alice")
	require.NoError(t, err)

	_, err = svc.GetConversation("bob")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	svc.ClearConversation("alice")
	_, err = svc.GetConversation("alice")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFindSimilarUsesQueryTaskType(t *testing.T) {
	searcher := &fakeSearcher{results: []*model.SearchResult{
		chunkResult("a.pdf", model.LocationPage, 1, "text"),
	}}
	emb := &fakeQueryEmbedder{}
	svc := NewService(searcher, emb, &fakeGenerator{}, Config{TopK: 10})

	results, err := svc.FindSimilar(context.Background(), "similar to this", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "RETRIEVAL_QUERY", emb.lastTaskType)
	require.Equal(t, 5, searcher.lastK)
}
