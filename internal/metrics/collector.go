// Package metrics exposes the relay's Prometheus collectors on a private
// registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heavenbot"

// Delivery outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Drop reasons for inbound events that never reach the composer.
const (
	DropUnknownPage = "unknown_page"
	DropSignature   = "bad_signature"
	DropMalformed   = "malformed"
)

// Collector holds every metric the relay records.
type Collector struct {
	registry *prometheus.Registry

	Messages         *prometheus.CounterVec
	Dropped          *prometheus.CounterVec
	Generations      *prometheus.CounterVec
	GenerationTime   *prometheus.HistogramVec
	Deliveries       *prometheus.CounterVec
	ActiveSenders    prometheus.Gauge
	WebhookDurations *prometheus.HistogramVec
}

// New creates a Collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound text messages handled, by page and classified mode",
		}, []string{"page", "mode"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound events dropped before composing a reply",
		}, []string{"reason"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Text generation calls, by backend and outcome",
		}, []string{"backend", "outcome"}),
		GenerationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Text generation latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound send attempts, by page and outcome",
		}, []string{"page", "outcome"}),
		ActiveSenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversation_senders",
			Help:      "Senders currently held in conversation memory",
		}),
		WebhookDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook request handling time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.Messages,
		c.Dropped,
		c.Generations,
		c.GenerationTime,
		c.Deliveries,
		c.ActiveSenders,
		c.WebhookDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveMessage(page, mode string) {
	if c == nil {
		return
	}
	c.Messages.WithLabelValues(page, mode).Inc()
}

func (c *Collector) ObserveDrop(reason string) {
	if c == nil {
		return
	}
	c.Dropped.WithLabelValues(reason).Inc()
}

// ObserveGeneration records one generation call and its latency.
func (c *Collector) ObserveGeneration(backend string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Generations.WithLabelValues(backend, outcome).Inc()
	c.GenerationTime.WithLabelValues(backend).Observe(d.Seconds())
}

func (c *Collector) ObserveDelivery(page string, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeSent
	if err != nil {
		outcome = OutcomeFailed
	}
	c.Deliveries.WithLabelValues(page, outcome).Inc()
}

func (c *Collector) SetActiveSenders(n int) {
	if c == nil {
		return
	}
	c.ActiveSenders.Set(float64(n))
}

func (c *Collector) ObserveWebhook(method string, d time.Duration) {
	if c == nil {
		return
	}
	c.WebhookDurations.WithLabelValues(method).Observe(d.Seconds())
}
