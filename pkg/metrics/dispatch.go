package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records dispatch outcomes and streaming gateway load.
type DispatchMetrics struct {
	acceptOutcomes  *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	activeStreams   *prometheus.GaugeVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	acceptOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_accept_total",
		Help: "Order accept attempts by outcome (claimed, conflict, not_found, error).",
	}, []string{"outcome"})
	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_events_published_total",
		Help: "Events published to the in-process hub by kind.",
	}, []string{"kind"})
	activeStreams := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_active_streams",
		Help: "Open SSE connections by stream kind.",
	}, []string{"stream"})
	reg.MustRegister(acceptOutcomes, eventsPublished, activeStreams)
	return &DispatchMetrics{
		acceptOutcomes:  acceptOutcomes,
		eventsPublished: eventsPublished,
		activeStreams:   activeStreams,
	}
}

// ObserveAccept increments the accept counter for the given outcome.
func (d *DispatchMetrics) ObserveAccept(outcome string) {
	if d == nil || d.acceptOutcomes == nil {
		return
	}
	d.acceptOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveEvent increments the published-events counter for the given kind.
func (d *DispatchMetrics) ObserveEvent(kind string) {
	if d == nil || d.eventsPublished == nil {
		return
	}
	d.eventsPublished.WithLabelValues(kind).Inc()
}

// StreamOpened bumps the active-stream gauge for the named stream kind.
func (d *DispatchMetrics) StreamOpened(stream string) {
	if d == nil || d.activeStreams == nil {
		return
	}
	d.activeStreams.WithLabelValues(stream).Inc()
}

// StreamClosed lowers the active-stream gauge for the named stream kind.
func (d *DispatchMetrics) StreamClosed(stream string) {
	if d == nil || d.activeStreams == nil {
		return
	}
	d.activeStreams.WithLabelValues(stream).Dec()
}
