package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// Metrics exports request and stream counters.
type Metrics struct {
	requestDuration *promclient.HistogramVec
	requestTotal    *promclient.CounterVec
	streamEvents    *promclient.CounterVec
}

// NewMetrics registers the server metrics, tolerating re-registration so
// tests can build multiple servers against the default registry.
func NewMetrics(reg promclient.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	m := &Metrics{
		requestDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: "haven",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   promclient.DefBuckets,
		}, []string{"path", "method"}),
		requestTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "haven",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by status.",
		}, []string{"path", "method", "status"}),
		streamEvents: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "haven",
			Name:      "chat_stream_events_total",
			Help:      "Count of chat stream events by type.",
		}, []string{"type"}),
	}
	if err := registerOrReuse(reg, &m.requestDuration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.requestTotal); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.streamEvents); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[C promclient.Collector](reg promclient.Registerer, collector *C) error {
	err := reg.Register(*collector)
	if err == nil {
		return nil
	}
	if are, ok := err.(promclient.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(C); ok {
			*collector = existing
			return nil
		}
	}
	return fmt.Errorf("register collector: %w", err)
}

// RecordStreamEvent counts one delivered chat event.
func (m *Metrics) RecordStreamEvent(eventType string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(eventType).Inc()
}

// requestMetrics times every request. The route template is used as the path
// label so entry names never reach the metrics endpoint.
func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.requestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
		s.metrics.requestTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
