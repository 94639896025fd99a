// Package metrics instruments outbound HTTP calls with Prometheus
// counters, a latency histogram and an in-flight gauge.
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beam"

// Collectors are the metrics recorded for outbound calls.
type Collectors struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewCollectors registers the outbound metrics with reg. Registering
// twice with the same reg reuses the existing collectors.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_requests_total",
			Help:      "Total number of outbound requests by status code and method.",
		},
		[]string{"code", "method"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_request_duration_seconds",
			Help:      "Duration of outbound requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)

	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_in_flight_requests",
			Help:      "Number of outbound requests currently in flight.",
		},
	)

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if inFlight, err = register(reg, inFlight); err != nil {
		return nil, err
	}

	return &Collectors{
		Requests: requests,
		Duration: duration,
		InFlight: inFlight,
	}, nil
}

// NewRoundTripper registers the outbound metrics with reg and wraps next.
func NewRoundTripper(reg prometheus.Registerer, next http.RoundTripper) (http.RoundTripper, error) {
	c, err := NewCollectors(reg)
	if err != nil {
		return nil, err
	}

	return c.Wrap(next), nil
}

// Wrap instruments next. A nil next uses http.DefaultTransport.
func (c *Collectors) Wrap(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return promhttp.InstrumentRoundTripperInFlight(c.InFlight,
		promhttp.InstrumentRoundTripperCounter(c.Requests,
			promhttp.InstrumentRoundTripperDuration(c.Duration, next),
		),
	)
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}

		var zero T
		return zero, fmt.Errorf("registering collector: %w", err)
	}

	return c, nil
}
