package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/ai"
	"github.com/xxxsen/docchat/internal/chunker"
	"github.com/xxxsen/docchat/internal/extract"
	"github.com/xxxsen/docchat/internal/model"
)

// IVectorStore is the slice of the chunk store ingestion needs.
type IVectorStore interface {
	UpsertBatch(ctx context.Context, records []*model.IndexedRecord) (int, error)
	Delete(ctx context.Context, filter map[string]string) (int64, error)
}

// IEmbedder mirrors ai.IEmbedder's embedding calls. Embed is the
// per-chunk retry path when a whole batch fails.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// IRegistry records which files the store currently represents.
type IRegistry interface {
	Upsert(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, filename string) error
}

type Config struct {
	BatchSize int
}

// Report summarizes one ingestion run.
type Report struct {
	Source        string `json:"source"`
	UnitCount     int    `json:"unit_count"`
	ChunkCount    int    `json:"chunk_count"`
	ChunksWritten int    `json:"chunks_written"`
	Replaced      bool   `json:"replaced"`
	Deleted       int64  `json:"deleted"`
}

// Orchestrator runs the extract, chunk, embed, store pipeline for one
// file at a time. Re-ingesting a file replaces every chunk it
// previously contributed before new chunks are written.
type Orchestrator struct {
	store    IVectorStore
	embedder IEmbedder
	registry IRegistry
	splitter *chunker.Splitter
	cfg      Config
}

func NewOrchestrator(store IVectorStore, embedder IEmbedder, registry IRegistry, splitter *chunker.Splitter, cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Orchestrator{
		store:    store,
		embedder: embedder,
		registry: registry,
		splitter: splitter,
		cfg:      cfg,
	}
}

// Ingest processes the file at path, stored under canonicalName.
// Validation runs before any store mutation, so an unsupported or
// unreadable file leaves existing chunks untouched.
func (o *Orchestrator) Ingest(ctx context.Context, path string, canonicalName string) (*Report, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("source", canonicalName))

	extractor, err := extract.ForFile(canonicalName)
	if err != nil {
		return nil, err
	}
	fp, err := extract.Fingerprint(path)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", canonicalName, err)
	}
	units, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", canonicalName, err)
	}

	chunks := o.chunkUnits(units, canonicalName)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(canonicalName)), ".")
	extra := map[string]interface{}{
		model.MetaFileType: fileType,
		"file_size":        fp.Size,
		"file_hash":        fp.Hash,
		"unit_count":       len(units),
	}
	for i := range chunks {
		chunks[i].Extra = extra
	}

	deleted, err := o.store.Delete(ctx, map[string]string{model.MetaSource: canonicalName})
	if err != nil {
		return nil, fmt.Errorf("remove previous chunks of %s: %w", canonicalName, err)
	}
	if deleted > 0 {
		logger.Info("replacing previously ingested file", zap.Int64("removed_chunks", deleted))
	}

	written := o.embedAndStore(ctx, logger, chunks)

	doc := &model.Document{
		Filename:   canonicalName,
		FileType:   fileType,
		ChunkCount: written,
		UnitCount:  len(units),
		FileSize:   fp.Size,
		FileHash:   fp.Hash,
		IngestedAt: time.Now(),
	}
	if err := o.registry.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("update registry for %s: %w", canonicalName, err)
	}

	logger.Info("file ingested",
		zap.Int("units", len(units)),
		zap.Int("chunks", len(chunks)),
		zap.Int("written", written),
	)
	return &Report{
		Source:        canonicalName,
		UnitCount:     len(units),
		ChunkCount:    len(chunks),
		ChunksWritten: written,
		Replaced:      deleted > 0,
		Deleted:       deleted,
	}, nil
}

// PreviewChunks extracts and chunks a file without touching the store,
// returning at most limit chunk texts. Used to probe the corpus for
// similar content before committing to an ingest.
func (o *Orchestrator) PreviewChunks(ctx context.Context, path string, canonicalName string, limit int) ([]string, error) {
	extractor, err := extract.ForFile(canonicalName)
	if err != nil {
		return nil, err
	}
	units, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", canonicalName, err)
	}
	chunks := o.chunkUnits(units, canonicalName)
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return texts, nil
}

// Remove deletes every chunk a file contributed plus its registry row.
func (o *Orchestrator) Remove(ctx context.Context, canonicalName string) (int64, error) {
	deleted, err := o.store.Delete(ctx, map[string]string{model.MetaSource: canonicalName})
	if err != nil {
		return 0, err
	}
	if err := o.registry.Delete(ctx, canonicalName); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (o *Orchestrator) chunkUnits(units []extract.Unit, canonicalName string) []model.Chunk {
	var chunks []model.Chunk
	index := 0
	for _, unit := range units {
		loc := model.Location{Kind: unit.Kind, Number: unit.Number}
		part := o.splitter.SplitWithProvenance(unit.Text, canonicalName, loc, index)
		index += len(part)
		chunks = append(chunks, part...)
	}
	return chunks
}

// embedAndStore embeds chunks batch by batch. A failed batch embedding
// degrades to per-chunk calls so one bad chunk is skipped, not fifty.
// Records that could not be flushed ride along into the next flush;
// the registry ends up reflecting only what was actually written.
func (o *Orchestrator) embedAndStore(ctx context.Context, logger *zap.Logger, chunks []model.Chunk) int {
	written := 0
	var pending []*model.IndexedRecord
	flush := func() {
		if len(pending) == 0 {
			return
		}
		n, err := o.store.UpsertBatch(ctx, pending)
		if err != nil {
			logger.Warn("store flush failed, records carried to next flush",
				zap.Int("pending", len(pending)),
				zap.Error(err),
			)
			return
		}
		written += n
		pending = pending[:0]
	}

	for start := 0; start < len(chunks); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, c.Text)
		}
		vectors, err := o.embedder.EmbedBatch(ctx, texts, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("embedding batch failed, retrying chunks individually",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			pending = append(pending, o.embedOneByOne(ctx, logger, batch)...)
		} else {
			for i, c := range batch {
				pending = append(pending, buildRecord(c, vectors[i]))
			}
		}
		flush()
	}
	flush()
	if len(pending) > 0 {
		logger.Error("chunks not written after repeated store failures",
			zap.Int("count", len(pending)))
	}
	return written
}

// embedOneByOne embeds each chunk of a failed batch on its own,
// skipping only the chunks that still fail.
func (o *Orchestrator) embedOneByOne(ctx context.Context, logger *zap.Logger, batch []model.Chunk) []*model.IndexedRecord {
	records := make([]*model.IndexedRecord, 0, len(batch))
	for _, c := range batch {
		vec, err := o.embedder.Embed(ctx, c.Text, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("skip chunk that failed to embed",
				zap.Int("chunk_index", c.ChunkIndex),
				zap.Error(err),
			)
			continue
		}
		records = append(records, buildRecord(c, vec))
	}
	return records
}

func buildRecord(c model.Chunk, embedding []float32) *model.IndexedRecord {
	meta := map[string]interface{}{
		model.MetaSource:         c.Source,
		model.MetaLocationKind:   string(c.Location.Kind),
		model.MetaLocationNumber: c.Location.Number,
		model.MetaChunkIndex:     c.ChunkIndex,
	}
	for k, v := range SerializeMetadata(c.Extra) {
		if _, reserved := meta[k]; !reserved {
			meta[k] = v
		}
	}
	return &model.IndexedRecord{
		ID:        model.RecordID(c.Source, c.ChunkIndex),
		Text:      c.Text,
		Embedding: embedding,
		Metadata:  meta,
	}
}
