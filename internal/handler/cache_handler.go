package handler

import (
	"log/slog"
	"net/http"

	"bustrack/internal/cache"
	"bustrack/internal/metrics"
)

type CacheHandler struct {
	cache   *cache.Cache
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewCacheHandler(c *cache.Cache, m *metrics.Collector, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{cache: c, metrics: m, logger: logger}
}

// GetStats serves GET /v1/cache/stats.
func (h *CacheHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("cache_stats").Inc()
	ServerStats.IncRequests()

	respondJSON(w, http.StatusOK, h.cache.Stats())
}

type clearResponse struct {
	Cleared int    `json:"cleared"`
	Scope   string `json:"scope"`
}

// Clear serves DELETE /v1/cache?scope=all|eta|detailed.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("cache_clear").Inc()
	ServerStats.IncRequests()

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}

	var cleared int
	switch scope {
	case "all":
		cleared = h.cache.Clear()
	case cache.KindETA, cache.KindDetailed:
		cleared = h.cache.ClearPrefix(scope + ":")
	default:
		respondError(w, http.StatusBadRequest, "scope must be all, eta or detailed")
		return
	}

	h.logger.Info("cache cleared", "scope", scope, "entries", cleared)
	respondJSON(w, http.StatusOK, clearResponse{Cleared: cleared, Scope: scope})
}
