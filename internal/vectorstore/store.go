package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

const (
	dimensionMetaKey = "embedding_dimension"

	// Without a vector index the store cannot rank in SQL, so it pulls
	// a wider candidate set and ranks in process.
	fallbackCandidateFactor = 5
)

// Store persists chunk records in Postgres. Embeddings always land in
// a jsonb column; when the pgvector extension is installable a typed
// vector column plus hnsw index is added on top and searches go
// through it. If the extension is missing, or an accelerated query
// fails at runtime, the store falls back to scanning jsonb embeddings
// and ranking by cosine in process. Both paths return results in
// cosine-descending order.
type Store struct {
	db          *sql.DB
	dimension   int
	accelerated atomic.Bool
}

func New(conn *sql.DB, dimension int) *Store {
	return &Store{db: conn, dimension: dimension}
}

// Accelerated reports whether the typed vector path is active.
func (s *Store) Accelerated() bool {
	return s.accelerated.Load()
}

func (s *Store) Dimension() int {
	return s.dimension
}

// EnsureIndex validates the stored dimension and probes for pgvector.
// A dimension change is an error the operator must resolve (see
// ResetForDimensionChange); a missing extension is not, the store just
// runs degraded.
func (s *Store) EnsureIndex(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	stored, ok, err := s.getStoredDimension(ctx)
	if err != nil {
		return err
	}
	if ok && stored != s.dimension {
		return fmt.Errorf("%w: store holds %d-dim embeddings, configured model produces %d",
			appErr.ErrDimensionMismatch, stored, s.dimension)
	}
	if !ok {
		if err := s.setStoredDimension(ctx, s.dimension); err != nil {
			return err
		}
	}
	if err := s.setupVectorColumn(ctx); err != nil {
		logger.Warn("vector index unavailable, using in-process cosine search", zap.Error(err))
		s.accelerated.Store(false)
		return nil
	}
	backfilled, err := s.backfillVectorColumn(ctx)
	if err != nil {
		logger.Warn("vector backfill failed, using in-process cosine search", zap.Error(err))
		s.accelerated.Store(false)
		return nil
	}
	if backfilled > 0 {
		logger.Info("backfilled vector column from jsonb embeddings", zap.Int64("rows", backfilled))
	}
	s.accelerated.Store(true)
	logger.Info("vector index ready", zap.Int("dimension", s.dimension))
	return nil
}

// backfillVectorColumn fills embedding_vec for rows written while the
// store ran degraded. Until it runs, such rows are only reachable
// through the fallback scan.
func (s *Store) backfillVectorColumn(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET embedding_vec = (embedding #>> '{}')::vector WHERE embedding_vec IS NULL`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) setupVectorColumn(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`ALTER TABLE chunks ADD COLUMN IF NOT EXISTS embedding_vec vector(%d)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding_vec ON chunks USING hnsw (embedding_vec vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) getStoredDimension(ctx context.Context) (int, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = $1`, dimensionMetaKey)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt %s meta value %q: %w", dimensionMetaKey, value, err)
	}
	return dim, true, nil
}

func (s *Store) setStoredDimension(ctx context.Context, dim int) error {
	const query = `
		INSERT INTO store_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := s.db.ExecContext(ctx, query, dimensionMetaKey, strconv.Itoa(dim))
	return err
}

// ResetForDimensionChange drops every stored chunk and the typed
// vector column, then records the new dimension. Destructive; only
// reachable through the explicit operator command.
func (s *Store) ResetForDimensionChange(ctx context.Context) error {
	stmts := []string{
		`DELETE FROM chunks`,
		`ALTER TABLE chunks DROP COLUMN IF EXISTS embedding_vec`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := s.setStoredDimension(ctx, s.dimension); err != nil {
		return err
	}
	s.accelerated.Store(false)
	return nil
}

// UpsertBatch writes records keyed by ID, updating rows that already
// exist. Records whose embedding does not match the configured
// dimension are skipped with a warning rather than failing the batch.
// Returns the number of rows written.
func (s *Store) UpsertBatch(ctx context.Context, records []*model.IndexedRecord) (int, error) {
	logger := logutil.GetLogger(ctx)
	written := 0
	for _, rec := range records {
		if len(rec.Embedding) != s.dimension {
			logger.Warn("skip record with mismatched embedding dimension",
				zap.String("id", rec.ID),
				zap.Int("got", len(rec.Embedding)),
				zap.Int("want", s.dimension),
			)
			continue
		}
		if err := s.upsertOne(ctx, rec); err != nil {
			return written, fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
		written++
	}
	return written, nil
}

func (s *Store) upsertOne(ctx context.Context, rec *model.IndexedRecord) error {
	embJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	now := time.Now()
	if s.accelerated.Load() {
		const query = `
			INSERT INTO chunks (id, content, embedding, embedding_vec, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				embedding_vec = EXCLUDED.embedding_vec,
				metadata = EXCLUDED.metadata,
				updated_at = EXCLUDED.updated_at
		`
		_, err = s.db.ExecContext(ctx, query, rec.ID, rec.Text, embJSON, pgvector.NewVector(rec.Embedding), metaJSON, now)
		if err == nil {
			return nil
		}
		// Degrade store-wide: a row written without embedding_vec is
		// invisible to the accelerated query, so searches must use the
		// fallback scan until the next EnsureIndex backfills it.
		s.accelerated.Store(false)
		logutil.GetLogger(ctx).Warn("accelerated upsert failed, store degraded to jsonb embeddings", zap.Error(err))
	}
	const query = `
		INSERT INTO chunks (id, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, rec.ID, rec.Text, embJSON, metaJSON, now)
	return err
}

// Search returns up to topK records ranked by cosine similarity to
// query, highest first. filter restricts candidates by metadata field
// equality.
func (s *Store) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]*model.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, store expects %d",
			appErr.ErrDimensionMismatch, len(query), s.dimension)
	}
	if s.accelerated.Load() {
		results, err := s.searchAccelerated(ctx, query, topK, filter)
		if err == nil {
			return results, nil
		}
		logutil.GetLogger(ctx).Warn("accelerated search failed, falling back to in-process cosine", zap.Error(err))
	}
	return s.searchFallback(ctx, query, topK, filter)
}

func (s *Store) searchAccelerated(ctx context.Context, query []float32, topK int, filter map[string]string) ([]*model.SearchResult, error) {
	sqlStr := `
		SELECT id, content, metadata, 1 - (embedding_vec <=> $1) AS score
		FROM chunks
		WHERE embedding_vec IS NOT NULL
	`
	args := []interface{}{pgvector.NewVector(query)}
	sqlStr, args = appendMetadataFilter(sqlStr, args, filter)
	sqlStr += fmt.Sprintf(" ORDER BY embedding_vec <=> $1 LIMIT %d", topK)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*model.SearchResult
	for rows.Next() {
		var (
			id, content string
			metaJSON    []byte
			score       float64
		)
		if err := rows.Scan(&id, &content, &metaJSON, &score); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		results = append(results, &model.SearchResult{
			ID:       id,
			Text:     content,
			Metadata: meta,
			Score:    float32(score),
		})
	}
	return results, rows.Err()
}

func (s *Store) searchFallback(ctx context.Context, query []float32, topK int, filter map[string]string) ([]*model.SearchResult, error) {
	sqlStr := `
		SELECT id, content, embedding, metadata
		FROM chunks
		WHERE embedding IS NOT NULL
	`
	args := []interface{}{}
	sqlStr, args = appendMetadataFilter(sqlStr, args, filter)
	sqlStr += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", topK*fallbackCandidateFactor)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		candidates []*model.SearchResult
		embeddings [][]float32
	)
	for rows.Next() {
		var (
			id, content       string
			embJSON, metaJSON []byte
		)
		if err := rows.Scan(&id, &content, &embJSON, &metaJSON); err != nil {
			return nil, err
		}
		var embedding []float32
		if err := json.Unmarshal(embJSON, &embedding); err != nil {
			logutil.GetLogger(ctx).Warn("skip chunk with corrupt embedding", zap.String("id", id), zap.Error(err))
			continue
		}
		meta, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, &model.SearchResult{ID: id, Text: content, Metadata: meta})
		embeddings = append(embeddings, embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranked := rankByCosine(query, embeddings)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	results := make([]*model.SearchResult, 0, len(ranked))
	for _, sc := range ranked {
		item := candidates[sc.index]
		item.Score = sc.score
		results = append(results, item)
	}
	return results, nil
}

// Delete removes every chunk matching the metadata filter and returns
// the number of rows removed.
func (s *Store) Delete(ctx context.Context, filter map[string]string) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete requires a metadata filter")
	}
	sqlStr := `DELETE FROM chunks WHERE TRUE`
	args := []interface{}{}
	sqlStr, args = appendMetadataFilter(sqlStr, args, filter)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns chunk metadata without embeddings, for registry and
// inspection use.
func (s *Store) List(ctx context.Context, filter map[string]string, limit int) ([]*model.SearchResult, error) {
	sqlStr := `SELECT id, content, metadata FROM chunks WHERE TRUE`
	args := []interface{}{}
	sqlStr, args = appendMetadataFilter(sqlStr, args, filter)
	sqlStr += ` ORDER BY id`
	if limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*model.SearchResult
	for rows.Next() {
		var (
			id, content string
			metaJSON    []byte
		)
		if err := rows.Scan(&id, &content, &metaJSON); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		results = append(results, &model.SearchResult{ID: id, Text: content, Metadata: meta})
	}
	return results, rows.Err()
}

func decodeMetadata(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode chunk metadata: %w", err)
	}
	return meta, nil
}

func appendMetadataFilter(sqlStr string, args []interface{}, filter map[string]string) (string, []interface{}) {
	for _, key := range sortedKeys(filter) {
		args = append(args, key, filter[key])
		sqlStr += fmt.Sprintf(" AND metadata->>($%d::text) = $%d", len(args)-1, len(args))
	}
	return sqlStr, args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
