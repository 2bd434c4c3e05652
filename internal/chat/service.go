package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/ai"
	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

// ISearcher is the retrieval slice of the chunk store.
type ISearcher interface {
	Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]*model.SearchResult, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
}

type Config struct {
	TopK int
}

// Service answers questions against the ingested corpus. Every answer
// is grounded in retrieved chunks; when retrieval comes back empty the
// service returns a fixed response without calling the model at all.
type Service struct {
	searcher  ISearcher
	embedder  IEmbedder
	generator IGenerator
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*model.Conversation
}

func NewService(searcher ISearcher, embedder IEmbedder, generator IGenerator, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return &Service{
		searcher:  searcher,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		sessions:  make(map[string]*model.Conversation),
	}
}

// Ask answers query and records the result as the session's current
// conversation, which the deck generator later reads citations from.
func (s *Service) Ask(ctx context.Context, sessionID string, query string) (*model.Conversation, error) {
	logger := logutil.GetLogger(ctx)
	vec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.searcher.Search(ctx, vec, s.cfg.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(results) == 0 {
		logger.Info("no relevant chunks for query")
		conv := &model.Conversation{
			Query:  query,
			Answer: notFoundAnswer,
		}
		s.saveConversation(sessionID, conv)
		return conv, nil
	}

	prompt := buildUserPrompt(formatContext(results), query)
	answer, err := s.generator.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	conv := &model.Conversation{
		Query:      query,
		Answer:     answer,
		Citations:  ExtractCitations(answer),
		Sources:    collectSources(results),
		ChunksUsed: len(results),
	}
	s.saveConversation(sessionID, conv)
	logger.Info("answered query",
		zap.Int("chunks_used", conv.ChunksUsed),
		zap.Int("citations", len(conv.Citations)),
	)
	return conv, nil
}

// FindSimilar returns the chunks closest to the given text without
// involving the chat model.
func (s *Service) FindSimilar(ctx context.Context, text string, topK int) ([]*model.SearchResult, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	vec, err := s.embedder.Embed(ctx, text, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return s.searcher.Search(ctx, vec, topK, nil)
}

// SourceMatch is one existing source ranked against probe text.
type SourceMatch struct {
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

// FindSimilarSources ranks ingested sources by their best similarity
// to any of the probe texts, highest first.
func (s *Service) FindSimilarSources(ctx context.Context, texts []string, topK int) ([]SourceMatch, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	best := map[string]float32{}
	for _, text := range texts {
		results, err := s.FindSimilar(ctx, text, topK)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			source := metaString(res.Metadata, model.MetaSource, "Unknown")
			if res.Score > best[source] {
				best[source] = res.Score
			}
		}
	}
	matches := make([]SourceMatch, 0, len(best))
	for source, score := range best {
		matches = append(matches, SourceMatch{Source: source, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Source < matches[j].Source
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// GetConversation returns the session's current conversation.
func (s *Service) GetConversation(sessionID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return conv, nil
}

// ClearConversation drops the session's current conversation.
func (s *Service) ClearConversation(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Service) saveConversation(sessionID string, conv *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = conv
}

func collectSources(results []*model.SearchResult) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, res := range results {
		source := metaString(res.Metadata, model.MetaSource, "Unknown")
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}
