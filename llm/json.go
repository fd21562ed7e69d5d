package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the outermost JSON object out of a completion:
// Markdown fences are stripped, then the first '{' through the last '}'
// is parsed. Failure yields a FORMAT-classified error.
func ExtractJSON(text string) (map[string]any, error) {
	cleaned := stripFences(strings.TrimSpace(text))

	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start != -1 && end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		snippet := cleaned
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &Error{
			Category: Format,
			Provider: "unknown",
			Model:    "unknown",
			Message:  "JSON extraction failed: " + err.Error() + "; head: " + snippet,
		}
	}
	return out, nil
}

// DecodeJSON extracts and re-decodes into a typed value.
func DecodeJSON(text string, v any) error {
	obj, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	end := len(lines) - 1
	if strings.TrimSpace(lines[end]) == "```" {
		return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
	}
	return strings.TrimSpace(strings.Join(lines[1:], "\n"))
}
