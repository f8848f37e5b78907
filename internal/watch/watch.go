package watch

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/assert"
	"growthwatch/internal/chrono"
	"growthwatch/internal/notify"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/source"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/extract"
	"sync"
	"time"
)

// ErrRunning is returned by RunOnce when another run is still in flight.
var ErrRunning = errors.New("a run is already in progress")

type Options struct {
	Sources  []source.Source
	Engine   extract.Engine
	Store    snapshot.Store
	Notifier notify.Notifier
	// SnapshotFile, if set, receives the latest run as json.
	SnapshotFile string
	// Keep is the number of runs retained in the store, 0 keeps all of them.
	Keep int
}

// Result describes the outcome of a single run.
type Result struct {
	RunID   int64            `json:"run_id"`
	Time    time.Time        `json:"time"`
	Records []extract.Record `json:"records"`
	Changes snapshot.Changes `json:"changes"`
	// Skipped is true when the run found no records and nothing was stored.
	Skipped  bool `json:"skipped"`
	Notified bool `json:"notified"`
}

type Watcher struct {
	opts  Options
	tel   telemetry.API
	time  chrono.API
	mutex *sync.Mutex
}

func NewWatcher(opts Options, time chrono.API, tel telemetry.API) Watcher {
	assert.NotNil(time)
	assert.NotNil(tel)
	if opts.Notifier == nil {
		opts.Notifier = notify.Multi{}
	}

	return Watcher{
		opts:  opts,
		tel:   telemetry.NewScopedAPI("watch", tel),
		time:  time,
		mutex: &sync.Mutex{},
	}
}

const (
	report_run_once   = "run-once"
	report_empty_run  = "run-once.empty"
	report_fetch      = "run-once.fetch"
	report_notify     = "run-once.notify"
	report_prune      = "run-once.prune"
	report_write_file = "run-once.write-file"
)

// RunOnce fetches every source, extracts records and stores them as a new
// run. A run that finds no records is not stored so the last good snapshot
// is kept. Source failures do not abort the run as long as some blob was
// fetched, they are returned alongside the result.
func (w Watcher) RunOnce(ctx context.Context) (Result, error) {
	if !w.mutex.TryLock() {
		return Result{}, ErrRunning
	}
	defer w.mutex.Unlock()

	now := w.time.Now()
	result := Result{Time: now}

	blobs, fetchErr := source.FetchAll(ctx, w.tel, w.opts.Sources)
	if fetchErr != nil {
		w.tel.ReportWarning(report_fetch, fetchErr)
		if len(blobs) == 0 {
			return result, fmt.Errorf("fetch: %w", fetchErr)
		}
	}

	texts := make([]string, len(blobs))
	origins := make([]string, len(blobs))
	for i, b := range blobs {
		texts[i] = b.Text
		origins[i] = b.Origin
	}
	result.Records = w.opts.Engine.ExtractAll(texts...)
	w.tel.ReportCount("records", int64(len(result.Records)))

	if len(result.Records) == 0 {
		w.tel.ReportWarning(report_empty_run, fmt.Errorf("no records found"), origins)
		result.Skipped = true
		return result, fetchErr
	}

	latest, hasLatest, err := w.opts.Store.Latest(ctx)
	if err != nil {
		return result, fmt.Errorf("load latest run: %w", err)
	}
	var previous []extract.Record
	if hasLatest {
		previous = latest.Records
	}
	result.Changes = snapshot.Compare(previous, result.Records)

	run := snapshot.Run{
		Time:    now,
		Sources: origins,
		Records: result.Records,
	}
	run.ID, err = w.opts.Store.Push(ctx, run)
	if err != nil {
		return result, fmt.Errorf("push run: %w", err)
	}
	result.RunID = run.ID

	_, err = w.opts.Store.Prune(ctx, w.opts.Keep)
	if err != nil {
		w.tel.ReportBroken(report_prune, err, w.opts.Keep)
	}

	if w.opts.SnapshotFile != "" {
		err = snapshot.WriteFile(w.opts.SnapshotFile, run)
		if err != nil {
			w.tel.ReportBroken(report_write_file, err, w.opts.SnapshotFile)
		}
	}

	if !result.Changes.Empty() {
		err = w.opts.Notifier.Notify(ctx, notify.Report{
			RunID:   run.ID,
			Time:    now,
			Changes: result.Changes,
		})
		if err != nil {
			w.tel.ReportBroken(report_notify, err, run.ID)
		} else {
			result.Notified = true
		}
	}

	w.tel.ReportDebug("run complete", run.ID, len(result.Records), result.Notified)
	return result, fetchErr
}

// Schedule runs the watcher on the given cron spec until ctx is done, a
// tick that arrives while a run is in flight is skipped.
func (w Watcher) Schedule(ctx context.Context, cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, func() {
		if ctx.Err() != nil {
			return
		}
		_, err := w.RunOnce(ctx)
		if errors.Is(err, ErrRunning) {
			w.tel.ReportDebug("skipped overlapping run")
			return
		}
		if err != nil {
			w.tel.ReportBroken(report_run_once, err)
		}
	})
}
