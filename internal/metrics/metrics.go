// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side (buy/sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belief_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeVolume tracks cumulative deposited/withdrawn micro-USDC per side.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belief_trade_volume_micro_usdc_total",
		Help: "Cumulative trade volume in micro-USDC",
	}, []string{"side"})

	// MarketsCreated counts markets created.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "belief_markets_created_total",
		Help: "Total number of markets created",
	})

	// MarketsResolved counts one-shot market resolutions.
	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "belief_markets_resolved_total",
		Help: "Total number of markets resolved",
	})

	// RedemptionsTotal counts winning-share redemptions.
	RedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "belief_redemptions_total",
		Help: "Total number of winning redemptions paid",
	})

	// FeesWithdrawnTotal tracks micro-USDC distributed by fee withdrawals.
	FeesWithdrawnTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "belief_fees_withdrawn_micro_usdc_total",
		Help: "Cumulative trading fees distributed in micro-USDC",
	})

	// Paused is 1 while the program-wide pause flag is set.
	Paused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "belief_paused",
		Help: "Whether the program is currently paused (0 or 1)",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "belief_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belief_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "belief_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label to avoid extra route machinery;
		// cardinality stays bounded by the address formats.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
