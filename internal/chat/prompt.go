package chat

import (
	"fmt"
	"strings"

	"github.com/xxxsen/docchat/internal/model"
)

const systemPrompt = `You are an expert document analyst. Provide precise, comprehensive answers based ONLY on the provided documents.

CRITICAL RULES:
1. Answer ONLY from the provided context - never use external knowledge
2. If information isn't in the context, state: "This information is not available in the provided documents"
3. Always cite sources using exact format: (Source: filename, Page/Slide X)
4. Be specific and detailed when information is available
5. Structure your response clearly with headings and bullet points when appropriate

CITATION REQUIREMENTS:
- Every factual statement must have a citation
- Use the exact format: (Source: filename, Page/Slide X)
- Place citations immediately after the relevant information
- If multiple sources support a point, cite all relevant sources`

const notFoundAnswer = "I couldn't find any relevant information in the uploaded documents to answer your question. Please make sure you have uploaded relevant documents or try rephrasing your question."

// formatContext renders retrieved chunks into the delimited block the
// model answers from. Chunks with unknown position get an empty
// Location line instead of a fabricated one.
func formatContext(results []*model.SearchResult) string {
	parts := make([]string, 0, len(results))
	for i, res := range results {
		source := metaString(res.Metadata, model.MetaSource, "Unknown")
		location := formatLocation(res.Metadata)
		parts = append(parts, fmt.Sprintf(
			"### CONTEXT CHUNK %d ###\nSource: %s\nLocation: %s\nContent: %s\n### END CHUNK %d ###",
			i+1, source, location, res.Text, i+1,
		))
	}
	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(contextText string, query string) string {
	return fmt.Sprintf(
		"Context from documents:\n%s\n\nQuestion: %s\n\nPlease provide a comprehensive answer based on the context above, following all citation requirements.",
		contextText, query,
	)
}

func formatLocation(meta map[string]interface{}) string {
	number := metaInt(meta, model.MetaLocationNumber)
	if number <= 0 {
		return ""
	}
	switch metaString(meta, model.MetaLocationKind, "") {
	case string(model.LocationSlide):
		return fmt.Sprintf("Slide %d", number)
	case string(model.LocationPage):
		return fmt.Sprintf("Page %d", number)
	default:
		return ""
	}
}

func metaString(meta map[string]interface{}, key string, fallback string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// metaInt tolerates the numeric types a jsonb round trip can produce.
func metaInt(meta map[string]interface{}, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
