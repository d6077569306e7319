// Package metrics registers the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
	OutcomeToolNotFound = "tool_not_found"
	OutcomeError        = "error"
)

var (
	CallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brokergw_calls_total",
		Help: "Tool calls handled, by tool and outcome",
	}, []string{"tool", "outcome"})

	CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brokergw_call_duration_seconds",
		Help:    "Tool call latency",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"tool"})

	FillsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brokergw_fills_total",
		Help: "Simulated fills recorded",
	}, []string{"venue"})

	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brokergw_sink_errors_total",
		Help: "Fill sink publish failures",
	}, []string{"sink"})

	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brokergw_websocket_clients",
		Help: "Connected fill stream clients",
	})
)

func init() {
	prometheus.MustRegister(CallsTotal)
	prometheus.MustRegister(CallDuration)
	prometheus.MustRegister(FillsTotal)
	prometheus.MustRegister(SinkErrorsTotal)
	prometheus.MustRegister(WebsocketClients)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
