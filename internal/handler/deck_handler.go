package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/chat"
	"github.com/xxxsen/docchat/internal/deck"
	"github.com/xxxsen/docchat/internal/pkg/errcode"
	"github.com/xxxsen/docchat/internal/pkg/response"
)

type DeckHandler struct {
	chat      *chat.Service
	generator *deck.Generator
	outputDir string
}

func NewDeckHandler(chatSvc *chat.Service, generator *deck.Generator, outputDir string) *DeckHandler {
	return &DeckHandler{chat: chatSvc, generator: generator, outputDir: outputDir}
}

// Generate assembles a deck from the citations of the session's last
// answered question.
func (h *DeckHandler) Generate(c *gin.Context) {
	conv, err := h.chat.GetConversation(sessionID(c))
	if err != nil {
		response.Error(c, errcode.ErrNotFound, "no conversation to build a presentation from")
		return
	}
	if len(conv.Citations) == 0 {
		response.Error(c, errcode.ErrNoCitations, "last answer contains no citations")
		return
	}
	path, err := h.generator.Assemble(c.Request.Context(), conv.Query, conv.Answer, conv.Citations)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"filename":  filepath.Base(path),
		"citations": len(conv.Citations),
	})
}

// Download serves a generated deck by file name.
func (h *DeckHandler) Download(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "" || name == "." || !strings.HasSuffix(name, ".pdf") {
		response.Error(c, errcode.ErrInvalid, "invalid presentation name")
		return
	}
	path := filepath.Join(h.outputDir, name)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/pdf")
	http.ServeFile(c.Writer, c.Request, path)
}
