package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/formdesk/formdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Lifecycle metrics
	FormsCreatedTotal metric.Int64Counter
	FormsUpdatedTotal metric.Int64Counter
	FormsDeletedTotal metric.Int64Counter

	// Notification metrics
	NotificationBatchesTotal    metric.Int64Counter
	NotificationRecipientsTotal metric.Int64Counter
	NotificationFailuresTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.FormsCreatedTotal, _ = meter.Int64Counter(
		"formdesk.forms.created.total",
		metric.WithDescription("Total number of forms created"),
		metric.WithUnit("{form}"),
	)

	m.FormsUpdatedTotal, _ = meter.Int64Counter(
		"formdesk.forms.updated.total",
		metric.WithDescription("Total number of forms updated"),
		metric.WithUnit("{form}"),
	)

	m.FormsDeletedTotal, _ = meter.Int64Counter(
		"formdesk.forms.deleted.total",
		metric.WithDescription("Total number of forms deleted"),
		metric.WithUnit("{form}"),
	)

	m.NotificationBatchesTotal, _ = meter.Int64Counter(
		"formdesk.notifications.batches.total",
		metric.WithDescription("Total number of notification batches queued"),
		metric.WithUnit("{batch}"),
	)

	m.NotificationRecipientsTotal, _ = meter.Int64Counter(
		"formdesk.notifications.recipients.total",
		metric.WithDescription("Total number of notification recipients addressed"),
		metric.WithUnit("{recipient}"),
	)

	m.NotificationFailuresTotal, _ = meter.Int64Counter(
		"formdesk.notifications.failures.total",
		metric.WithDescription("Total number of swallowed notification fan-out failures"),
		metric.WithUnit("{error}"),
	)

	return m
}
