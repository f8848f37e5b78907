package telemetry

import (
	"context"
	"fmt"
	libtelemetry "growthwatch/lib/telemetry"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SlogAPI implements API using the log/slog package, counts are also
// recorded as otel gauges.
type SlogAPI struct {
	gauges *sync.Map
}

func NewSlogAPI() SlogAPI {
	return SlogAPI{gauges: &sync.Map{}}
}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		if kv, ok := p.(KV); ok {
			*out = append(*out, kv.Key, kv.Value)
			continue
		}
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

var meter = libtelemetry.Meter("growthwatch.internal.telemetry")

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)

	if s.gauges == nil {
		return
	}
	gauge, ok := s.gauges.Load(id)
	if !ok {
		created, err := meter.Int64Gauge("report_count")
		if err != nil {
			return
		}
		gauge, _ = s.gauges.LoadOrStore(id, created)
	}
	gauge.(metric.Int64Gauge).Record(
		context.Background(),
		count,
		metric.WithAttributes(attribute.String("id", id)),
	)
}
