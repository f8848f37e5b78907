package extract

import (
	"fmt"
	"regexp"
)

type fieldKind int

const (
	kindAnchor fieldKind = iota
	kindName
	kindGrowth
	kindList
)

// Field is a quoted key followed by a value of a particular shape.
type Field struct {
	Key     string
	kind    fieldKind
	pattern *regexp.Regexp
}

func newField(key string, kind fieldKind, valuePattern string) Field {
	return Field{
		Key:     key,
		kind:    kind,
		pattern: regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*%s`, regexp.QuoteMeta(key), valuePattern)),
	}
}

// ObjectField matches a key whose value opens an object: "key": {
func ObjectField(key string) Field {
	return newField(key, kindAnchor, `\{`)
}

// NameField matches a key with a non-empty string value and captures it.
func NameField(key string) Field {
	return newField(key, kindName, `"([^"]+)"`)
}

// GrowthField matches a key with an optionally negative integer value and captures it.
func GrowthField(key string) Field {
	return newField(key, kindGrowth, `(-?\d+)`)
}

// ListField matches a key whose value is a list and captures the list body up to
// the first closing bracket.
func ListField(key string) Field {
	return newField(key, kindList, `\[([\s\S]*?)\]`)
}

type occurrence struct {
	start int
	end   int
	value string
}

// occurrences returns every match of the field ordered by start offset. Unlike
// FindAll, matches may overlap: a search resumes one byte after the previous
// match's start so that every position a leftmost scan could begin at is seen.
func (f Field) occurrences(text string) []occurrence {
	if f.pattern == nil {
		return nil
	}

	var out []occurrence
	pos := 0
	for pos < len(text) {
		loc := f.pattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		occ := occurrence{start: pos + loc[0], end: pos + loc[1]}
		if len(loc) >= 4 && loc[2] >= 0 {
			occ.value = text[pos+loc[2] : pos+loc[3]]
		}
		out = append(out, occ)
		pos = occ.start + 1
	}
	return out
}

func (f Field) first(text string) (occurrence, bool) {
	if f.pattern == nil {
		return occurrence{}, false
	}
	loc := f.pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return occurrence{}, false
	}
	occ := occurrence{start: loc[0], end: loc[1]}
	if len(loc) >= 4 && loc[2] >= 0 {
		occ.value = text[loc[2]:loc[3]]
	}
	return occ, true
}
