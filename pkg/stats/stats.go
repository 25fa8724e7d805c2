// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stats collects per-request Prometheus metrics of the server.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Stats struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates the collectors on a private registry, so that several servers
// may live in one process (e.g. in tests).
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hello_requests_total",
			Help: "Number of served HTTP requests.",
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hello_request_duration_seconds",
			Help:    "Time spent serving HTTP requests.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hello_requests_in_flight",
			Help: "Number of requests being served right now.",
		}),
	}
	s.registry.MustRegister(s.requests, s.duration, s.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}

// Instrument wraps next with the request counters.
func (s *Stats) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(s.inFlight,
		promhttp.InstrumentHandlerDuration(s.duration,
			promhttp.InstrumentHandlerCounter(s.requests, next)))
}

// Handler serves the metrics in the Prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}
