// Package prom exports observability events as Prometheus metrics.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperware-ai/hyper-bindgen/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RPCObserver exports RPC metrics to Prometheus.
type RPCObserver struct {
	serverRequests    *prometheus.CounterVec
	frameErrors       *prometheus.CounterVec
	clientCalls       *prometheus.CounterVec
	clientCallLatency prometheus.Histogram
	sessions          prometheus.Gauge
}

// NewRPCObserver registers the hyper_bindgen_rpc_* metrics on reg.
func NewRPCObserver(reg prometheus.Registerer) *RPCObserver {
	o := &RPCObserver{
		serverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_bindgen_rpc_requests_total",
			Help: "RPC requests handled by node-side servers.",
		}, []string{"result"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_bindgen_rpc_frame_errors_total",
			Help: "RPC frame read/write errors by side.",
		}, []string{"side", "direction"}),
		clientCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_bindgen_rpc_client_calls_total",
			Help: "Stub dispatch outcomes.",
		}, []string{"result"}),
		clientCallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hyper_bindgen_rpc_client_call_latency_seconds",
			Help:    "Stub dispatch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyper_bindgen_rpc_sessions",
			Help: "Live node sessions held by the caller client.",
		}),
	}
	reg.MustRegister(
		o.serverRequests,
		o.frameErrors,
		o.clientCalls,
		o.clientCallLatency,
		o.sessions,
	)
	return o
}

func (o *RPCObserver) ServerRequest(result observability.RPCResult) {
	o.serverRequests.WithLabelValues(string(result)).Inc()
}

func (o *RPCObserver) ServerFrameError(direction observability.RPCFrameDirection) {
	o.frameErrors.WithLabelValues("server", string(direction)).Inc()
}

func (o *RPCObserver) ClientFrameError(direction observability.RPCFrameDirection) {
	o.frameErrors.WithLabelValues("client", string(direction)).Inc()
}

func (o *RPCObserver) ClientCall(result observability.RPCResult, d time.Duration) {
	o.clientCalls.WithLabelValues(string(result)).Inc()
	o.clientCallLatency.Observe(d.Seconds())
}

func (o *RPCObserver) Sessions(n int) {
	o.sessions.Set(float64(n))
}
