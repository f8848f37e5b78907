package snapshot

import (
	"growthwatch/lib/extract"
	"growthwatch/lib/textutil"

	"github.com/antzucaro/matchr"
)

// RenameThreshold is the minimum Jaro-Winkler similarity between the
// accent folded names of a removed and an added record for them to be
// considered a rename.
const RenameThreshold = 0.9

type Change struct {
	Name string `json:"name"`
	From int64  `json:"from"`
	To   int64  `json:"to"`
}

type Rename struct {
	From       extract.Record `json:"from"`
	To         extract.Record `json:"to"`
	Similarity float64        `json:"similarity"`
}

type Changes struct {
	Added   []extract.Record `json:"added"`
	Removed []extract.Record `json:"removed"`
	Changed []Change         `json:"changed"`
	Renamed []Rename         `json:"renamed"`
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 &&
		len(c.Removed) == 0 &&
		len(c.Changed) == 0 &&
		len(c.Renamed) == 0
}

// Compare classifies the difference between two record lists, names are
// compared case insensitively. Added and changed entries follow the order
// of `cur`, removed entries follow the order of `prev`.
func Compare(prev, cur []extract.Record) Changes {
	previous := make(map[string]extract.Record, len(prev))
	for _, r := range prev {
		previous[textutil.Key(r.Name)] = r
	}
	current := make(map[string]struct{}, len(cur))

	changes := Changes{
		Added:   []extract.Record{},
		Removed: []extract.Record{},
		Changed: []Change{},
		Renamed: []Rename{},
	}
	var added []extract.Record
	for _, r := range cur {
		key := textutil.Key(r.Name)
		current[key] = struct{}{}

		old, ok := previous[key]
		if !ok {
			added = append(added, r)
			continue
		}
		if old.Growth != r.Growth {
			changes.Changed = append(changes.Changed, Change{
				Name: r.Name,
				From: old.Growth,
				To:   r.Growth,
			})
		}
	}

	var removed []extract.Record
	for _, r := range prev {
		if _, ok := current[textutil.Key(r.Name)]; !ok {
			removed = append(removed, r)
		}
	}

	matchedAdded := make([]bool, len(added))
	for _, r := range removed {
		folded := textutil.Fold(r.Name)

		best := -1
		var mostSimilarity float64
		for i, candidate := range added {
			if matchedAdded[i] || candidate.Growth != r.Growth {
				continue
			}
			similarity := matchr.JaroWinkler(folded, textutil.Fold(candidate.Name), false)
			if similarity >= RenameThreshold && similarity > mostSimilarity {
				mostSimilarity = similarity
				best = i
			}
		}

		if best < 0 {
			changes.Removed = append(changes.Removed, r)
			continue
		}
		matchedAdded[best] = true
		changes.Renamed = append(changes.Renamed, Rename{
			From:       r,
			To:         added[best],
			Similarity: mostSimilarity,
		})
	}

	for i, r := range added {
		if !matchedAdded[i] {
			changes.Added = append(changes.Added, r)
		}
	}
	return changes
}
