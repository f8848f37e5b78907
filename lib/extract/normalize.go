package extract

import "regexp"

var (
	quoteEntity  = regexp.MustCompile(`(?i)&(?:quot|#0*34|#x0*22);`)
	escapedQuote = regexp.MustCompile(`\\+"`)
	unicodeQuote = regexp.MustCompile(`\\+u0022`)
	lineEscape   = regexp.MustCompile(`\\+[rn]`)
)

// stripping a \r escape can glue the halves of an entity or escape back
// together, the second pass picks those up and the third only confirms.
const maxNormalizePasses = 4

// Normalize rewrites every quoting variant the producing page may use
// (HTML entities, backslash escapes, \u0022 escapes) into a literal double
// quote, strips \r escapes and turns \n escapes into real newlines.
//
// It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	text := raw
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizePass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func normalizePass(text string) string {
	text = quoteEntity.ReplaceAllLiteralString(text, `"`)
	text = escapedQuote.ReplaceAllLiteralString(text, `"`)
	text = unicodeQuote.ReplaceAllLiteralString(text, `"`)
	text = lineEscape.ReplaceAllStringFunc(text, func(escape string) string {
		if escape[len(escape)-1] == 'n' {
			return "\n"
		}
		return ""
	})
	return text
}
