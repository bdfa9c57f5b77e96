package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"bustrack/internal/cache"
	"bustrack/internal/eta"
	"bustrack/internal/metrics"
	"bustrack/internal/store"
)

// Stats tracks server-wide counters for the JSON stats endpoint.
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesOut    atomic.Int64
	rateLimitBlocked atomic.Int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

type StatsHandler struct {
	eta     *eta.Service
	live    *store.LiveStore
	metrics *metrics.Collector
}

func NewStatsHandler(etaSvc *eta.Service, live *store.LiveStore, m *metrics.Collector) *StatsHandler {
	return &StatsHandler{eta: etaSvc, live: live, metrics: m}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Tracking  TrackingStatsResponse  `json:"tracking"`
	Cache     cache.Stats            `json:"cache"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type TrackingStatsResponse struct {
	LiveBuses int `json:"live_buses"`
}

type WebSocketStatsResponse struct {
	Connections int64 `json:"connections"`
	MessagesOut int64 `json:"messages_out"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

// GetStats serves GET /v1/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("stats").Inc()
	ServerStats.IncRequests()

	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   ServerStats.rateLimitBlocked.Load(),
			Version:       "1.0.0",
		},
		Tracking: TrackingStatsResponse{
			LiveBuses: h.live.Count(),
		},
		Cache: h.eta.CacheStats(),
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
