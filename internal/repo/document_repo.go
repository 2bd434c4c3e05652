package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

var documentFields = []string{
	"filename", "file_type", "chunk_count", "unit_count", "file_size", "file_hash", "ingested_at",
}

// DocumentRepo is the ingestion registry: one row per source file
// currently represented in the chunk store.
type DocumentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepo(conn *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: sqlx.NewDb(conn, "postgres")}
}

// Upsert replaces the registry row for doc.Filename. Re-ingesting a
// file overwrites its counters rather than stacking a second row.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO documents (filename, file_type, chunk_count, unit_count, file_size, file_hash, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (filename) DO UPDATE SET
			file_type = EXCLUDED.file_type,
			chunk_count = EXCLUDED.chunk_count,
			unit_count = EXCLUDED.unit_count,
			file_size = EXCLUDED.file_size,
			file_hash = EXCLUDED.file_hash,
			ingested_at = EXCLUDED.ingested_at
	`
	ingestedAt := doc.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		doc.Filename,
		doc.FileType,
		doc.ChunkCount,
		doc.UnitCount,
		doc.FileSize,
		doc.FileHash,
		ingestedAt,
	)
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, filename string) (*model.Document, error) {
	where := map[string]interface{}{
		"filename": filename,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	doc := &model.Document{}
	if err := r.db.GetContext(ctx, doc, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) List(ctx context.Context) ([]*model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "filename asc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var docs []*model.Document
	if err := r.db.SelectContext(ctx, &docs, sqlStr, args...); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, filename string) error {
	where := map[string]interface{}{
		"filename": filename,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
