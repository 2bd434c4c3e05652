package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Chat      *ChatHandler
	Decks     *DeckHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	// ingestion and deck assembly are expensive, keep them paced
	heavy := middleware.RateLimit(2 * time.Second)

	api.POST("/documents", heavy, deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.DELETE("/documents/:name", deps.Documents.Delete)
	api.POST("/documents/similar", deps.Documents.Similar)

	api.POST("/ask", deps.Chat.Ask)
	api.GET("/conversation", deps.Chat.GetConversation)
	api.DELETE("/conversation", deps.Chat.ClearConversation)

	api.POST("/presentations", heavy, deps.Decks.Generate)
	api.GET("/presentations/:name", deps.Decks.Download)
}
