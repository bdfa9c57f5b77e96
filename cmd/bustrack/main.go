package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bustrack/internal/cache"
	"bustrack/internal/config"
	"bustrack/internal/eta"
	"bustrack/internal/handler"
	"bustrack/internal/hub"
	"bustrack/internal/metrics"
	"bustrack/internal/middleware"
	"bustrack/internal/store"
	"bustrack/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting bustrack server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
	)

	m := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		go m.Serve(cfg.MetricsAddr, logger)
	}

	pg, err := store.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis, when enabled, fronts the slow-changing route and stop
	// reads. The ETA engine sees the same Storage either way.
	var etaStorage eta.Storage = pg
	if cfg.RedisEnabled {
		rdb, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cached := store.NewCachedStorage(pg, rdb, cfg.StopsCacheTTL, logger)
		if cfg.CacheWarmOnStart {
			if err := cached.WarmStops(ctx); err != nil {
				logger.Warn("stop cache warm failed", "error", err)
			}
		}
		etaStorage = cached
	}

	etaCache := cache.New(cfg.CacheTTL, logger)
	sweeper := cache.NewSweeper(etaCache, cfg.CacheCleanupInterval, func(removed int) {
		m.SweepEvicted.Add(float64(removed))
	}, logger)
	go sweeper.Run(ctx)

	live := store.NewLive(cfg.BusStaleAfter)
	wsHub := hub.NewHub(func(messages int) {
		m.WSMessagesOut.Add(float64(messages))
	}, logger)
	go wsHub.Run(ctx)

	trk := tracker.New(pg, live, wsHub, m, cfg.PollInterval, logger)
	go trk.Run(ctx)

	etaSvc := eta.NewService(etaStorage, etaCache, m, eta.Params{
		Speed: eta.SpeedParams{
			DefaultKmh: cfg.DefaultSpeedKmh,
			MinKmh:     cfg.MinSpeedKmh,
			MaxKmh:     cfg.MaxSpeedKmh,
		},
		SampleSize:             cfg.SpeedSampleSize,
		BaseTimePerRoute:       cfg.ETABaseTimePerRoute,
		MaxAdditionalTime:      cfg.ETAMaxAdditionalTime,
		StoppedFallbackMinutes: cfg.ETADefaultStoppedMinutes,
	}, logger)

	etaHandler := handler.NewETAHandler(etaSvc, m, logger)
	locationHandler := handler.NewLocationHandler(pg, live, wsHub, etaSvc, m, logger)
	routeHandler := handler.NewRouteHandler(pg, m, logger)
	cacheHandler := handler.NewCacheHandler(etaCache, m, logger)
	statsHandler := handler.NewStatsHandler(etaSvc, live, m)
	healthHandler := handler.NewHealthHandler(trk, pg)
	wsHandler := handler.NewWSHandler(wsHub, live, m, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/buses/active", locationHandler.GetActive)
	mux.HandleFunc("GET /v1/buses/{number}/eta", etaHandler.GetETA)
	mux.HandleFunc("GET /v1/buses/{number}/eta/detailed", etaHandler.GetDetailedETA)
	mux.HandleFunc("GET /v1/buses/{number}/routes", routeHandler.GetBusRoutes)
	mux.HandleFunc("GET /v1/buses/{number}/routes/detailed", routeHandler.GetDetailedBusRoutes)
	mux.HandleFunc("GET /v1/buses/{id}/live", locationHandler.GetLive)
	mux.HandleFunc("GET /v1/buses/{id}/history", locationHandler.GetHistory)
	mux.HandleFunc("POST /v1/buses/{id}/location", locationHandler.PostLocation)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /v1/cache/stats", cacheHandler.GetStats)
	mux.HandleFunc("DELETE /v1/cache", cacheHandler.Clear)
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	var root http.Handler = mux
	if cfg.RateLimitEnabled {
		rl := middleware.NewRateLimiter(
			cfg.RateLimitPerWindow,
			cfg.RateLimitWindow,
			cfg.RateLimitWhitelist,
			handler.ServerStats.IncRateLimitBlocked,
			logger,
		)
		root = rl.Middleware(root)
	}
	root = handler.CORSMiddleware(handler.GzipMiddleware(root))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
