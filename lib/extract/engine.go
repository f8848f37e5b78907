// Package extract pulls (name, growth) records out of server rendered pages,
// flight payloads and JSON fragments without parsing them. The text is
// treated as opaque: a cascade of matchers looks for a name and a growth
// field close enough to each other, and the first value seen for a name
// wins.
//
// Nothing in this package performs I/O or keeps state between calls, every
// function is safe for concurrent use.
package extract

type Engine struct {
	matchers []Matcher
}

// NewEngine returns an engine running the matchers in the given order.
func NewEngine(matchers ...Matcher) Engine {
	return Engine{matchers: matchers}
}

// Default returns the engine for DefaultKeys and DefaultSpans.
func Default() Engine {
	return NewEngine(Cascade(DefaultKeys(), DefaultSpans())...)
}

var defaultEngine = Default()

// Extract normalizes text and returns the unique records found in it, in the
// order their names were first seen. It never fails, text without any match
// gives an empty slice.
func (e Engine) Extract(text string) []Record {
	return e.ExtractAll(text)
}

// ExtractAll works like Extract over several blobs sharing one working set,
// so a name found in an earlier blob wins over later blobs.
func (e Engine) ExtractAll(blobs ...string) []Record {
	records := newCollection()
	for _, blob := range blobs {
		text := Normalize(blob)
		for _, m := range e.matchers {
			for _, candidate := range m.FindPairs(text) {
				records.accept(candidate)
			}
		}
	}
	return records.values()
}

// Extract runs the default engine.
func Extract(text string) []Record {
	return defaultEngine.Extract(text)
}

// ExtractAll runs the default engine over several blobs.
func ExtractAll(blobs ...string) []Record {
	return defaultEngine.ExtractAll(blobs...)
}
