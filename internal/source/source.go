package source

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/htmlutil"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Blob is a piece of text that records are extracted from.
type Blob struct {
	Origin string `json:"origin"`
	Text   string `json:"-"`
}

// Source acquires blobs from somewhere.
//
// note: fault injection point
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Blob, error)
}

const (
	report_fetch_all = "fetch_all"
)

// FetchAll fetches every source concurrently, the resulting blobs are
// ordered by the position of their source. A source that fails contributes
// no blobs, its error is joined into the returned error.
func FetchAll(ctx context.Context, tel telemetry.API, sources []Source) ([]Blob, error) {
	results := make([][]Blob, len(sources))
	errs := make([]error, len(sources))

	wg := sync.WaitGroup{}
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			blobs, err := src.Fetch(ctx)
			if err != nil {
				tel.ReportBroken(report_fetch_all, err, telemetry.KV{Key: "source", Value: src.Name()})
				errs[i] = fmt.Errorf("source %s: %w", src.Name(), err)
				return
			}
			results[i] = blobs
		}(i, src)
	}
	wg.Wait()

	var out []Blob
	for _, blobs := range results {
		out = append(out, blobs...)
	}
	return out, errors.Join(errs...)
}

// SplitHtml returns the page itself followed by the flight payload and the
// next data, each when present.
func SplitHtml(origin, page string) []Blob {
	blobs := []Blob{{Origin: origin, Text: page}}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return blobs
	}
	scripts := htmlutil.ParseScripts(doc)
	if scripts.Flight != "" {
		blobs = append(blobs, Blob{Origin: origin + "#flight", Text: scripts.Flight})
	}
	if scripts.NextData != "" {
		blobs = append(blobs, Blob{Origin: origin + "#next-data", Text: scripts.NextData})
	}
	return blobs
}
