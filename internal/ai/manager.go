package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout   time.Duration
	Dimension int
}

// Manager fronts the configured chat and embedding providers with
// timeouts and dimension checks. The embedding dimension is fixed per
// deployment; a vector of any other length never leaves this package.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{generator: generator, embedder: embedder, cfg: cfg}
}

func (m *Manager) Complete(ctx context.Context, system string, prompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := m.generator.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	values, err := m.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := m.checkDimension(len(values)); err != nil {
		return nil, err
	}
	return values, nil
}

func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	vectors, err := m.embedder.EmbedBatch(ctx, texts, taskType)
	if err != nil {
		return nil, err
	}
	for _, values := range vectors {
		if err := m.checkDimension(len(values)); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) Dimension() int {
	return m.cfg.Dimension
}

func (m *Manager) checkDimension(got int) error {
	if m.cfg.Dimension > 0 && got != m.cfg.Dimension {
		return fmt.Errorf("embedding dimension mismatch: model returned %d, configured %d", got, m.cfg.Dimension)
	}
	return nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, m.cfg.Timeout)
	}
	return ctx, func() {}
}
