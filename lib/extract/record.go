package extract

import (
	"growthwatch/lib/textutil"
	"strconv"
	"strings"
)

// Record is a single extracted person. Growth must fit an int64, candidates
// whose growth token is out of that range are dropped.
type Record struct {
	Name   string `json:"name"`
	Growth int64  `json:"growth"`
}

// collection is the insertion ordered, first-match-wins working set of a
// single extraction.
type collection struct {
	seen    map[string]struct{}
	records []Record
}

func newCollection() *collection {
	return &collection{
		seen:    map[string]struct{}{},
		records: []Record{},
	}
}

// accept validates a candidate and keeps it unless its name was seen before.
// invalid candidates are dropped silently.
func (c *collection) accept(candidate Candidate) {
	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		return
	}
	growth, err := strconv.ParseInt(strings.TrimSpace(candidate.Growth), 10, 64)
	if err != nil {
		return
	}

	key := textutil.Key(name)
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.records = append(c.records, Record{Name: name, Growth: growth})
}

func (c *collection) values() []Record {
	return c.records
}
