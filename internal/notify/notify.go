package notify

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/telemetry"
	"time"
)

// Report is what a notifier is told after a run that changed something.
type Report struct {
	RunID   int64
	Time    time.Time
	Changes snapshot.Changes
}

func (r Report) Summary() string {
	return fmt.Sprintf(
		"run %d: %d added, %d removed, %d changed, %d renamed",
		r.RunID,
		len(r.Changes.Added),
		len(r.Changes.Removed),
		len(r.Changes.Changed),
		len(r.Changes.Renamed),
	)
}

// Notifier delivers a report somewhere.
//
// note: fault injection point
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// Log reports changes through the telemetry api.
type Log struct {
	tel telemetry.API
}

func NewLog(tel telemetry.API) Log {
	return Log{tel: telemetry.NewScopedAPI("notify", tel)}
}

func (l Log) Notify(ctx context.Context, report Report) error {
	l.tel.ReportDebug(report.Summary(), report.Time)
	l.tel.ReportCount("changes.added", int64(len(report.Changes.Added)))
	l.tel.ReportCount("changes.removed", int64(len(report.Changes.Removed)))
	l.tel.ReportCount("changes.changed", int64(len(report.Changes.Changed)))
	l.tel.ReportCount("changes.renamed", int64(len(report.Changes.Renamed)))
	return nil
}

// Multi notifies every notifier, even when some of them fail.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, report Report) error {
	var errs []error
	for _, n := range m {
		err := n.Notify(ctx, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
