// Package telemetry provides low-overhead request timing. Every request is
// counted and observed in Prometheus; only slow requests are logged.
package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"whisperboard/pkg/logger"
)

var (
	requestCtr    uint64
	slowThreshold = 200 * time.Millisecond
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whisperboard_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisperboard_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "status"})
)

// SetSlowThreshold sets the duration above which a request gets a log line.
func SetSlowThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	slowThreshold = d
}

// Middleware wraps the handler and records request timing.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		dur := time.Since(start)
		status := strconv.Itoa(srw.status)
		requestDuration.WithLabelValues(r.Method, status).Observe(dur.Seconds())
		requestsTotal.WithLabelValues(r.Method, status).Inc()

		if dur > slowThreshold {
			logger.Warn("slow_request",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int64("duration_ms", dur.Milliseconds()),
				zap.Int("status", srw.status))
		}
	})
}

func genRequestID() string {
	n := atomic.AddUint64(&requestCtr, 1)
	return "r-" + time.Now().Format("20060102T150405") + "-" + strconv.FormatUint(n, 10)
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so websocket upgrades keep working under the
// middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
