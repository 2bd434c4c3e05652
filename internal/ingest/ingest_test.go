package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docchat/internal/chunker"
	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

type fakeStore struct {
	records     []*model.IndexedRecord
	batches     []int
	deletes     []map[string]string
	deleteHits  int64
	failFlushes int
	upsertCalls int
}

func (f *fakeStore) UpsertBatch(ctx context.Context, records []*model.IndexedRecord) (int, error) {
	f.upsertCalls++
	if f.failFlushes > 0 {
		f.failFlushes--
		return 0, errors.New("store down")
	}
	f.records = append(f.records, records...)
	f.batches = append(f.batches, len(records))
	return len(records), nil
}

func (f *fakeStore) Delete(ctx context.Context, filter map[string]string) (int64, error) {
	f.deletes = append(f.deletes, filter)
	return f.deleteHits, nil
}

type fakeEmbedder struct {
	batches  []int
	failOn   int
	calls    int
	singles  int
	failText string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.singles++
	if f.failText != "" && strings.Contains(text, f.failText) {
		return nil, errors.New("provider down")
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("provider down")
	}
	f.batches = append(f.batches, len(texts))
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{1, 0, 0})
	}
	return out, nil
}

type fakeRegistry struct {
	upserts []*model.Document
	deletes []string
}

func (f *fakeRegistry) Upsert(ctx context.Context, doc *model.Document) error {
	f.upserts = append(f.upserts, doc)
	return nil
}

func (f *fakeRegistry) Delete(ctx context.Context, filename string) error {
	f.deletes = append(f.deletes, filename)
	return nil
}

func writeDocx(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	var sb strings.Builder
	sb.WriteString(`<w:document><w:body>`)
	for _, para := range strings.Split(body, "\n") {
		sb.WriteString(`<w:p><w:r><w:t>` + para + `</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	_, err = w.Write([]byte(sb.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func newTestOrchestrator(store *fakeStore, emb *fakeEmbedder, reg *fakeRegistry, batchSize int) *Orchestrator {
	splitter := chunker.NewSplitter(chunker.Config{ChunkSize: 40, ChunkOverlap: 8})
	return NewOrchestrator(store, emb, reg, splitter, Config{BatchSize: batchSize})
}

func TestIngestRejectsUnsupportedBeforeMutation(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, &fakeEmbedder{}, &fakeRegistry{}, 50)

	_, err := o.Ingest(context.Background(), "/tmp/nope.csv", "nope.csv")
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.Empty(t, store.deletes)
	require.Empty(t, store.records)
}

func TestIngestReplacesPreviousChunks(t *testing.T) {
	store := &fakeStore{deleteHits: 7}
	reg := &fakeRegistry{}
	o := newTestOrchestrator(store, &fakeEmbedder{}, reg, 50)
	path := writeDocx(t, t.TempDir(), "notes.docx", "some body text that will chunk")

	report, err := o.Ingest(context.Background(), path, "notes.docx")
	require.NoError(t, err)
	require.True(t, report.Replaced)
	require.Equal(t, int64(7), report.Deleted)
	require.Len(t, store.deletes, 1)
	require.Equal(t, map[string]string{model.MetaSource: "notes.docx"}, store.deletes[0])
	require.Len(t, reg.upserts, 1)
	require.Equal(t, "docx", reg.upserts[0].FileType)
	require.NotEmpty(t, reg.upserts[0].FileHash)
}

func TestIngestBatchesEmbeddingCalls(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	o := newTestOrchestrator(store, emb, &fakeRegistry{}, 3)

	var paras []string
	for i := 0; i < 8; i++ {
		paras = append(paras, fmt.Sprintf("paragraph number %d with filler text", i))
	}
	path := writeDocx(t, t.TempDir(), "big.docx", strings.Join(paras, "\n"))

	report, err := o.Ingest(context.Background(), path, "big.docx")
	require.NoError(t, err)
	require.Equal(t, report.ChunkCount, report.ChunksWritten)
	require.GreaterOrEqual(t, len(emb.batches), 2)
	for _, n := range emb.batches {
		require.LessOrEqual(t, n, 3)
	}
}

func TestIngestFailedBatchRetriesChunksIndividually(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{failOn: 1, failText: "paragraph number 0"}
	o := newTestOrchestrator(store, emb, &fakeRegistry{}, 2)

	var paras []string
	for i := 0; i < 4; i++ {
		paras = append(paras, fmt.Sprintf("paragraph number %d with filler text", i))
	}
	path := writeDocx(t, t.TempDir(), "partial.docx", strings.Join(paras, "\n"))

	report, err := o.Ingest(context.Background(), path, "partial.docx")
	require.NoError(t, err)
	require.Greater(t, emb.singles, 0)
	require.Equal(t, report.ChunkCount-1, report.ChunksWritten)
}

func TestIngestTransientBatchFailureLosesNothing(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{failOn: 1}
	o := newTestOrchestrator(store, emb, &fakeRegistry{}, 2)

	var paras []string
	for i := 0; i < 4; i++ {
		paras = append(paras, fmt.Sprintf("paragraph number %d with filler text", i))
	}
	path := writeDocx(t, t.TempDir(), "flaky.docx", strings.Join(paras, "\n"))

	report, err := o.Ingest(context.Background(), path, "flaky.docx")
	require.NoError(t, err)
	require.Equal(t, report.ChunkCount, report.ChunksWritten)
}

func TestIngestCarriesFailedFlushToNextBatch(t *testing.T) {
	store := &fakeStore{failFlushes: 1}
	emb := &fakeEmbedder{}
	o := newTestOrchestrator(store, emb, &fakeRegistry{}, 2)

	var paras []string
	for i := 0; i < 4; i++ {
		paras = append(paras, fmt.Sprintf("paragraph number %d with filler text", i))
	}
	path := writeDocx(t, t.TempDir(), "carry.docx", strings.Join(paras, "\n"))

	report, err := o.Ingest(context.Background(), path, "carry.docx")
	require.NoError(t, err)
	require.Equal(t, report.ChunkCount, report.ChunksWritten)
	// first flush failed, so the second carries both batches at once
	require.Equal(t, []int{report.ChunkCount}, store.batches)
	require.Equal(t, 2, store.upsertCalls)
}

func TestIngestChunkIndexIsDocumentWide(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, &fakeEmbedder{}, &fakeRegistry{}, 50)

	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, fmt.Sprintf("paragraph number %d with filler text", i))
	}
	path := writeDocx(t, t.TempDir(), "idx.docx", strings.Join(paras, "\n"))

	_, err := o.Ingest(context.Background(), path, "idx.docx")
	require.NoError(t, err)
	require.NotEmpty(t, store.records)
	seen := map[string]bool{}
	for i, rec := range store.records {
		require.Equal(t, i, rec.Metadata[model.MetaChunkIndex])
		require.Equal(t, model.RecordID("idx.docx", i), rec.ID)
		require.False(t, seen[rec.ID], "duplicate record id")
		seen[rec.ID] = true
	}
}

func TestRemoveDeletesChunksAndRegistryRow(t *testing.T) {
	store := &fakeStore{deleteHits: 3}
	reg := &fakeRegistry{}
	o := newTestOrchestrator(store, &fakeEmbedder{}, reg, 50)

	deleted, err := o.Remove(context.Background(), "old.pdf")
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)
	require.Equal(t, []string{"old.pdf"}, reg.deletes)
}

func TestSerializeMetadata(t *testing.T) {
	in := map[string]interface{}{
		"str":   "x",
		"num":   42,
		"flt":   1.5,
		"yes":   true,
		"list":  []interface{}{"a", "b", 3},
		"strs":  []string{"p", "q"},
		"inner": map[string]interface{}{"k": "v"},
	}
	out := SerializeMetadata(in)
	require.Equal(t, "x", out["str"])
	require.Equal(t, 42, out["num"])
	require.Equal(t, 1.5, out["flt"])
	require.Equal(t, true, out["yes"])
	require.Equal(t, "a,b,3", out["list"])
	require.Equal(t, "p,q", out["strs"])
	require.JSONEq(t, `{"k":"v"}`, out["inner"].(string))
	require.Nil(t, SerializeMetadata(nil))
}
