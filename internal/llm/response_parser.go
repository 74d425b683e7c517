package llm

import "strings"

// ExtractJSON pulls the outermost JSON object out of a raw model response.
// Models frequently wrap JSON in markdown code fences or surround it with
// prose; this strips both. Returns the candidate JSON text and whether an
// object-shaped region was found at all. Callers still unmarshal and
// validate the result — this only isolates the region.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	// Strip a markdown code fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			// Drop the language tag line ("json", "JSON", or empty).
			first := strings.TrimSpace(s[:idx])
			if len(first) <= 8 {
				s = s[idx+1:]
			}
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
