// Package metrics collects and exposes Prometheus metrics for the
// verification flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records verification events into Prometheus counters.
type Collector struct {
	codesSent         *prometheus.CounterVec
	sendFailures      *prometheus.CounterVec
	verifications     *prometheus.CounterVec
	sessionsCompleted prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		codesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_codes_sent_total",
			Help: "Verification codes dispatched, by channel.",
		}, []string{"channel"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_send_failures_total",
			Help: "Gateway delivery failures, by channel.",
		}, []string{"channel"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_attempts_total",
			Help: "Code verification attempts, by channel and result.",
		}, []string{"channel", "result"}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verify_sessions_completed_total",
			Help: "Verification sessions that reached dual-channel completion.",
		}),
	}

	reg.MustRegister(
		c.codesSent,
		c.sendFailures,
		c.verifications,
		c.sessionsCompleted,
	)

	return c
}

// RecordCodeSent counts a successfully dispatched code.
func (c *Collector) RecordCodeSent(channel string) {
	c.codesSent.WithLabelValues(channel).Inc()
}

// RecordSendFailure counts a gateway delivery failure.
func (c *Collector) RecordSendFailure(channel string) {
	c.sendFailures.WithLabelValues(channel).Inc()
}

// RecordVerification counts a verification attempt with its outcome.
func (c *Collector) RecordVerification(channel, result string) {
	c.verifications.WithLabelValues(channel, result).Inc()
}

// RecordSessionCompleted counts a dual-channel completion.
func (c *Collector) RecordSessionCompleted() {
	c.sessionsCompleted.Inc()
}

// Handler returns the Prometheus scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
