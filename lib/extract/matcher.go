package extract

import (
	"sort"
	"unicode/utf8"
)

// Candidate is a tentative (name, growth) token pair found by a Matcher,
// it has not been validated yet.
type Candidate struct {
	Name   string
	Growth string
}

// Matcher locates candidate pairs in normalized text. Matchers hold no state
// between calls.
type Matcher interface {
	FindPairs(text string) []Candidate
}

// Gap bounds the number of characters between the end of one step and the start
// of the next.
type Gap struct {
	Min int
	Max int
}

type Step struct {
	Field Field
	// ignored on the first step
	Gap Gap
}

// Sequence finds its steps in text order, each one starting within the Gap
// of the previous step's end. It scans like a lazy, non-overlapping regular
// expression: the nearest continuation that can complete the whole sequence
// wins and scanning resumes after the end of each match.
type Sequence struct {
	Steps []Step
}

func (s Sequence) FindPairs(text string) []Candidate {
	n := len(s.Steps)
	if n == 0 {
		return nil
	}

	occs := make([][]occurrence, n)
	for i, step := range s.Steps {
		occs[i] = step.Field.occurrences(text)
		if len(occs[i]) == 0 {
			return nil
		}
	}
	// from here on offsets count characters, not bytes.
	if offsets := runeOffsets(text); offsets != nil {
		for _, list := range occs {
			for k := range list {
				list[k].start = offsets[list[k].start]
				list[k].end = offsets[list[k].end]
			}
		}
	}

	// pick[i][k] is the occurrence of step i+1 that completes occurrence k of
	// step i, or -1 if nothing does. every occurrence of the last step is
	// complete by itself. the continuation of an occurrence only depends on
	// its end offset, so each one is resolved once.
	pick := make([][]int, n)
	// firstDone[i][k] is the smallest index >= k whose occurrence completes,
	// or len(occs[i]).
	firstDone := make([][]int, n)
	for i := n - 1; i >= 0; i-- {
		pick[i] = make([]int, len(occs[i]))
		for k, occ := range occs[i] {
			if i == n-1 {
				pick[i][k] = k
				continue
			}
			pick[i][k] = follow(occs[i+1], firstDone[i+1], occ.end, s.Steps[i+1].Gap)
		}

		firstDone[i] = make([]int, len(occs[i])+1)
		firstDone[i][len(occs[i])] = len(occs[i])
		for k := len(occs[i]) - 1; k >= 0; k-- {
			if pick[i][k] >= 0 {
				firstDone[i][k] = k
			} else {
				firstDone[i][k] = firstDone[i][k+1]
			}
		}
	}

	var out []Candidate
	cursor := 0
	for k, occ := range occs[0] {
		if occ.start < cursor || pick[0][k] < 0 {
			continue
		}

		var candidate Candidate
		idx := k
		end := occ.end
		for i := 0; i < n; i++ {
			current := occs[i][idx]
			switch s.Steps[i].Field.kind {
			case kindName:
				candidate.Name = current.value
			case kindGrowth:
				candidate.Growth = current.value
			}
			end = current.end
			if i < n-1 {
				idx = pick[i][idx]
			}
		}

		out = append(out, candidate)
		cursor = end
	}
	return out
}

// runeOffsets maps every byte offset of text to the number of characters
// before it. It returns nil for pure ASCII text where both are equal.
func runeOffsets(text string) []int {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return nil
	}

	out := make([]int, len(text)+1)
	count := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		for j := 0; j < size; j++ {
			out[i+j] = count
		}
		count++
		i += size
	}
	out[len(text)] = count
	return out
}

// follow returns the index of the first completing occurrence in next that
// starts within gap of end, or -1.
func follow(next []occurrence, firstDone []int, end int, gap Gap) int {
	if gap.Max < gap.Min {
		return -1
	}
	lo := end + gap.Min
	hi := end + gap.Max

	idx := sort.Search(len(next), func(i int) bool {
		return next[i].start >= lo
	})
	if idx == len(next) {
		return -1
	}
	idx = firstDone[idx]
	if idx == len(next) || next[idx].start > hi {
		return -1
	}
	return idx
}

// Within narrows the search of Inner down to the body of the first List
// found in the text.
type Within struct {
	List  Field
	Inner Matcher
}

func (w Within) FindPairs(text string) []Candidate {
	if w.Inner == nil {
		return nil
	}
	body, ok := w.List.first(text)
	if !ok {
		return nil
	}
	return w.Inner.FindPairs(body.value)
}
