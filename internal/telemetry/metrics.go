package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/extpack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	FilesWrittenTotal metric.Int64Counter

	// Dev server metrics
	RebuildsTriggeredTotal metric.Int64Counter
	LiveReloadClients      metric.Int64UpDownCounter
	LiveReloadBroadcasts   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments are created from the global meter provider, which is a no-op
// until InitTelemetry installs an exporter.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"extpack.builds.total",
		metric.WithDescription("Total number of builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"extpack.build.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"extpack.build.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.FilesWrittenTotal, _ = meter.Int64Counter(
		"extpack.build.files.total",
		metric.WithDescription("Total number of files written by builds"),
		metric.WithUnit("{file}"),
	)

	m.RebuildsTriggeredTotal, _ = meter.Int64Counter(
		"extpack.devserver.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	m.LiveReloadClients, _ = meter.Int64UpDownCounter(
		"extpack.livereload.clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	m.LiveReloadBroadcasts, _ = meter.Int64Counter(
		"extpack.livereload.broadcasts.total",
		metric.WithDescription("Total number of live reload broadcasts"),
		metric.WithUnit("{event}"),
	)

	return m
}
