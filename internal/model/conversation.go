package model

// Conversation is the working memory of one chat session: the last query,
// its answer and the citations pulled out of it. Losing it costs nothing
// but the ability to rebuild a deck without re-asking.
type Conversation struct {
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Sources    []string   `json:"sources"`
	ChunksUsed int        `json:"chunks_used"`
}
