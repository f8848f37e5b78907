package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key is the identity of a record name. Two names with the same key are the
// same person.
func Key(name string) string {
	return strings.ToLower(name)
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Fold reduces a name to a form suitable for fuzzy comparison: diacritics
// are removed, case is lowered and whitespace runs collapse into a single
// space. It is never used as an identity, see Key.
func Fold(name string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.Trim(folded, " \n\t")
	folded = whitespaceRegex.ReplaceAllString(folded, " ")
	return folded
}
