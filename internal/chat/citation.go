package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xxxsen/docchat/internal/model"
)

// citationRegex matches the citation format the system prompt
// mandates: (Source: filename, Page N) or (Source: filename, Slide N).
var citationRegex = regexp.MustCompile(`(?i)\(Source:\s*([^,]+),\s*(Page|Slide)\s*(\d+)\)`)

// ExtractCitations pulls every well-formed citation out of an answer,
// deduplicated, in first-appearance order. Malformed citations are
// ignored rather than failing the answer.
func ExtractCitations(answer string) []model.Citation {
	matches := citationRegex.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[model.Citation]struct{}, len(matches))
	out := make([]model.Citation, 0, len(matches))
	for _, m := range matches {
		number, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		kind := model.LocationPage
		if strings.EqualFold(m[2], "slide") {
			kind = model.LocationSlide
		}
		c := model.Citation{
			SourceName:     strings.TrimSpace(m[1]),
			LocationKind:   kind,
			LocationNumber: number,
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
