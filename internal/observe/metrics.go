// Package observe records codec metrics through the OpenTelemetry Metrics API.
//
// Library code records through a [Metrics] value. The CLI installs a
// [NewManualProvider] when debug output is on and prints a [Snapshot] on exit;
// otherwise the global no-op provider is used.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// meterName is the instrumentation scope name used for all codec metrics.
const meterName = "github.com/ColonelBlimp/dtmfaddr"

// Decode status attribute values
const (
	StatusOK         = "ok"
	StatusNoTones    = "no_tones"
	StatusIncomplete = "incomplete"
	StatusTooLong    = "too_long"
	StatusError      = "error"
)

// Metrics holds the codec's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// Encodes counts encode calls. Attribute: attribute.Bool("skipped", ...)
	Encodes metric.Int64Counter

	// Decodes counts decode calls. Attribute: attribute.String("status", ...)
	Decodes metric.Int64Counter

	// DecodeDuration tracks wall time of a whole-buffer decode.
	DecodeDuration metric.Float64Histogram

	// SymbolsDetected tracks how many symbols each decode emitted.
	SymbolsDetected metric.Int64Histogram

	// DecodeAccuracy tracks the positional symbol match, in percent, of
	// decodes checked against a known address.
	DecodeAccuracy metric.Float64Histogram

	// CacheLookups counts cache reads. Attributes:
	//   attribute.String("cache", ...), attribute.Bool("hit", ...)
	CacheLookups metric.Int64Counter
}

var decodeBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

var accuracyBuckets = []float64{25, 50, 75, 90, 95, 99, 100}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Encodes, err = m.Int64Counter("dtmf.encodes",
		metric.WithDescription("Payloads encoded into tone sequences."),
	); err != nil {
		return nil, err
	}
	if met.Decodes, err = m.Int64Counter("dtmf.decodes",
		metric.WithDescription("Audio buffers decoded, by status."),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("dtmf.decode.duration",
		metric.WithDescription("Wall time of a whole-buffer decode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SymbolsDetected, err = m.Int64Histogram("dtmf.decode.symbols",
		metric.WithDescription("Symbols emitted per decode, markers included."),
	); err != nil {
		return nil, err
	}
	if met.DecodeAccuracy, err = m.Float64Histogram("dtmf.decode.accuracy",
		metric.WithDescription("Symbol match against the expected address."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("dtmf.cache.lookups",
		metric.WithDescription("Cache reads by cache name and hit."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level [Metrics] built on
// [otel.GetMeterProvider] at first call.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordEncode counts one encode.
func (m *Metrics) RecordEncode(ctx context.Context, skipped bool) {
	m.Encodes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("skipped", skipped)))
}

// RecordDecode counts one decode and its duration and symbol count.
func (m *Metrics) RecordDecode(ctx context.Context, status string, elapsed time.Duration, symbols int) {
	m.Decodes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.DecodeDuration.Record(ctx, elapsed.Seconds())
	m.SymbolsDetected.Record(ctx, int64(symbols))
}

// RecordAccuracy records one accuracy measurement in percent.
func (m *Metrics) RecordAccuracy(ctx context.Context, percent float64) {
	m.DecodeAccuracy.Record(ctx, percent)
}

// RecordCacheLookup counts one cache read.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.Bool("hit", hit),
	))
}

// NewManualProvider returns an SDK provider whose data is pulled on demand
// through the returned reader.
func NewManualProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// Snapshot collects reader and returns the total of every integer counter
// by metric name.
func Snapshot(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out, nil
}
