package generator

import (
	"encoding/json"
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// ParseRecommendations is the defensive decode step. The generation
// capability is not guaranteed to emit well-formed structured output, so
// parsing locates the first top-level JSON array in the text, falls back
// to decoding the whole text, drops elements missing a title or content
// individually, and returns an empty list on total failure. It never
// returns an error.
func ParseRecommendations(text string) []*Recommendation {
	text = stripCodeFences(text)

	raw := decodeArray(extractFirstArray(text))
	if raw == nil {
		raw = decodeArray(text)
	}
	if raw == nil {
		return []*Recommendation{}
	}

	recommendations := make([]*Recommendation, 0, len(raw))
	for _, element := range raw {
		rec := &Recommendation{
			Title:          asString(element["title"]),
			Content:        asString(element["content"]),
			Rationale:      asString(element["rationale"]),
			Priority:       asString(element["priority"]),
			ExpectedImpact: asString(element["expected_impact"]),
			Category:       asString(element["category"]),
		}
		if rec.Title == "" || rec.Content == "" {
			continue
		}
		rec.UID = shortuuid.New()
		recommendations = append(recommendations, rec)
	}
	return recommendations
}

func decodeArray(text string) []map[string]any {
	if text == "" {
		return nil
	}
	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil
	}
	return raw
}

// extractFirstArray returns the first balanced top-level array literal
// in the text, skipping brackets inside string literals.
func extractFirstArray(text string) string {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}
