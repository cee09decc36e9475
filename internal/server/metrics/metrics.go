// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvault_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailvault_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Vault metrics
var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvault_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	GateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvault_gate_rejections_total",
			Help: "Requests rejected by the session gate, by internal cause",
		},
		[]string{"cause"},
	)
)

// Remote mailbox metrics
var (
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailvault_remote_calls_total",
			Help: "Total number of remote mailbox operations by result",
		},
		[]string{"op", "result"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailvault_remote_call_duration_seconds",
			Help:    "Duration of remote mailbox operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Record store metrics
var (
	StoreUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailvault_store_up",
			Help: "1 when the record store answered the last health check",
		},
	)
)
