package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/chat"
	"github.com/xxxsen/docchat/internal/pkg/errcode"
	"github.com/xxxsen/docchat/internal/pkg/response"
)

type ChatHandler struct {
	chat *chat.Service
}

func NewChatHandler(chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: chatSvc}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	conv, err := h.chat.Ask(c.Request.Context(), sessionID(c), question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chat.GetConversation(sessionID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}

func (h *ChatHandler) ClearConversation(c *gin.Context) {
	h.chat.ClearConversation(sessionID(c))
	response.Success(c, gin.H{"cleared": true})
}
