package memory

import (
	"strings"
	"unicode"

	"github.com/faragon/langlab/internal/llm"
)

// nonInformative lists lowercase replies that carry nothing worth
// remembering. Mostly acknowledgements, in the languages the demo corpus
// sees in practice.
var nonInformative = map[string]bool{
	"ok":        true,
	"vale":      true,
	"si":        true,
	"sí":        true,
	".":         true,
	"bien":      true,
	"correcto":  true,
	"entendido": true,
	"perfecto":  true,
}

// Clean normalizes a model-extracted memory fragment and decides whether it
// is worth persisting. It strips invisible characters and surrounding
// whitespace, and returns the empty string for the no-memory sentinel and
// for non-informative acknowledgements. An empty result means "store
// nothing".
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isInvisible(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == llm.NoMemorySentinel {
		return ""
	}
	if nonInformative[strings.ToLower(cleaned)] {
		return ""
	}
	return cleaned
}

// isInvisible reports zero-width and formatting code points (U+200B..U+200D,
// U+2060, U+FEFF and the rest of category Cf) that models occasionally emit
// and that would otherwise persist as garbage fragments.
func isInvisible(r rune) bool {
	return unicode.Is(unicode.Cf, r)
}
