// Package metrics defines the observation seam the core emits through
// without depending on any concrete exporter (spec §1: "observability
// exporters... metrics/trace sinks are injected; the core only emits").
// The interface shape follows the teacher's pebblestore.MetricsHook,
// generalized with broker-level counters.
package metrics

import "time"

// Hook receives observations from the writer and subscription engine. No
// method may block or return an error; a slow or panicking exporter must
// never affect the write or delivery path.
type Hook interface {
	ObservePublishCommitted(batchSize int, elapsed time.Duration)
	ObserveBatchSize(n int)
	ObserveSubscriptionOpened()
	ObserveSubscriptionClosed()
	ObserveDelivery(topic string)
}

// Noop discards every observation. Used when no exporter is configured.
type Noop struct{}

func (Noop) ObservePublishCommitted(int, time.Duration) {}
func (Noop) ObserveBatchSize(int)                       {}
func (Noop) ObserveSubscriptionOpened()                 {}
func (Noop) ObserveSubscriptionClosed()                 {}
func (Noop) ObserveDelivery(string)                     {}
