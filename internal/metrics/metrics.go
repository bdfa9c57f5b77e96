package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's prometheus metrics on a private
// registry so tests can construct collectors freely.
type Collector struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec // handler label

	ETAComputed  *prometheus.CounterVec // mode label: same_route|cross_route
	ETAFailed    *prometheus.CounterVec // reason label
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	SweepEvicted prometheus.Counter

	FixesRecorded prometheus.Counter

	WSConnections prometheus.Gauge
	WSMessagesOut prometheus.Counter

	PollDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_http_requests_total",
			Help: "HTTP requests served, by handler.",
		}, []string{"handler"}),
		ETAComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_eta_computed_total",
			Help: "ETA computations performed, by mode.",
		}, []string{"mode"}),
		ETAFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_eta_failed_total",
			Help: "ETA requests rejected for missing data, by reason.",
		}, []string{"reason"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_eta_cache_hits_total",
			Help: "ETA result cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_eta_cache_misses_total",
			Help: "ETA result cache misses.",
		}),
		SweepEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_eta_cache_swept_total",
			Help: "Entries evicted by the periodic cache sweep.",
		}),
		FixesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_location_fixes_total",
			Help: "Location fixes recorded through the API.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustrack_ws_connections",
			Help: "Open websocket connections.",
		}),
		WSMessagesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_ws_messages_out_total",
			Help: "Messages fanned out to websocket clients.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustrack_tracker_poll_seconds",
			Help:    "Duration of live position polls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.HTTPRequests,
		c.ETAComputed,
		c.ETAFailed,
		c.CacheHits,
		c.CacheMisses,
		c.SweepEvicted,
		c.FixesRecorded,
		c.WSConnections,
		c.WSMessagesOut,
		c.PollDuration,
	)
	return c
}

// Serve exposes /metrics on its own listener. Blocks until the server
// exits; intended to run in a goroutine.
func (c *Collector) Serve(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("starting metrics server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}
