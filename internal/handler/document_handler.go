package handler

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/chat"
	"github.com/xxxsen/docchat/internal/extract"
	"github.com/xxxsen/docchat/internal/filestore"
	"github.com/xxxsen/docchat/internal/ingest"
	"github.com/xxxsen/docchat/internal/pkg/errcode"
	"github.com/xxxsen/docchat/internal/pkg/response"
	"github.com/xxxsen/docchat/internal/repo"
)

const maxUploadBytes = 100 << 20

const similarProbeChunks = 3

type DocumentHandler struct {
	orchestrator *ingest.Orchestrator
	registry     *repo.DocumentRepo
	store        filestore.Store
	chat         *chat.Service
}

func NewDocumentHandler(orchestrator *ingest.Orchestrator, registry *repo.DocumentRepo, store filestore.Store, chatSvc *chat.Service) *DocumentHandler {
	return &DocumentHandler{
		orchestrator: orchestrator,
		registry:     registry,
		store:        store,
		chat:         chatSvc,
	}
}

// Upload ingests one document: the file is staged to a temp path,
// chunked and embedded, then archived in the file store under its
// original name.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return
	}
	if file.Size > maxUploadBytes {
		response.Error(c, errcode.ErrUploadTooLarge, "upload too large")
		return
	}
	name := filepath.Base(file.Filename)
	if !extract.IsSupported(name) {
		response.Error(c, errcode.ErrUnsupportedFormat, "unsupported file format")
		return
	}

	tmpPath, cleanup, err := stageUpload(file)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read upload")
		return
	}
	defer cleanup()

	report, err := h.orchestrator.Ingest(c.Request.Context(), tmpPath, name)
	if err != nil {
		handleError(c, err)
		return
	}

	if err := h.archive(c, tmpPath, name); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("failed to archive upload",
			zap.String("source", name), zap.Error(err))
	}
	response.Success(c, report)
}

// List returns the document registry.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.registry.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs, "total": len(docs)})
}

// Delete removes a document's chunks, registry row and archived copy.
func (h *DocumentHandler) Delete(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "" || name == "." {
		response.Error(c, errcode.ErrInvalid, "document name is required")
		return
	}
	deleted, err := h.orchestrator.Remove(c.Request.Context(), name)
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.store.Remove(c.Request.Context(), name); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("failed to remove archived file",
			zap.String("source", name), zap.Error(err))
	}
	response.Success(c, gin.H{"filename": name, "deleted_chunks": deleted})
}

// Similar probes the corpus with the first chunks of an uploaded file
// without ingesting it.
func (h *DocumentHandler) Similar(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return
	}
	name := filepath.Base(file.Filename)
	if !extract.IsSupported(name) {
		response.Error(c, errcode.ErrUnsupportedFormat, "unsupported file format")
		return
	}
	tmpPath, cleanup, err := stageUpload(file)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read upload")
		return
	}
	defer cleanup()

	texts, err := h.orchestrator.PreviewChunks(c.Request.Context(), tmpPath, name, similarProbeChunks)
	if err != nil {
		handleError(c, err)
		return
	}
	matches, err := h.chat.FindSimilarSources(c.Request.Context(), texts, 0)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"matches": matches})
}

func (h *DocumentHandler) archive(c *gin.Context, tmpPath string, name string) error {
	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return h.store.Save(c.Request.Context(), name, f, info.Size())
}

func stageUpload(file *multipart.FileHeader) (string, func(), error) {
	src, err := file.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()
	tmp, err := os.CreateTemp("", fmt.Sprintf("docchat-upload-*%s", filepath.Ext(file.Filename)))
	if err != nil {
		return "", nil, err
	}
	path := tmp.Name()
	cleanup := func() { os.Remove(path) }
	if _, err := tmp.ReadFrom(src); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
