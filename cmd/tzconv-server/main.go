// Package main implements the tzconv HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/config"
	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/gemini"
	"github.com/codeGROOVE-dev/tzconv/pkg/googlemaps"
	"github.com/codeGROOVE-dev/tzconv/pkg/httpcache"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
)

var (
	port     = flag.String("port", "", "Port for web server (or set TZCONV_PORT)")
	envFile  = flag.String("env-file", ".env", "Optional file of environment variables")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	version  = flag.Bool("version", false, "Show version")
	redisURL = flag.String("redis", "", "Redis URL for saved pairs (or set TZCONV_REDIS_URL)")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tzconv-server v1.0.0")
		return
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*envFile, nil)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *redisURL != "" {
		cfg.RedisURL = *redisURL
	}
	logger := config.NewLogger(*verbose || cfg.Verbose)
	slog.SetDefault(logger)

	logger.Info("server configuration",
		"port", cfg.Port,
		"catalog_file", cfg.CatalogFile,
		"geo_endpoint", cfg.GeoEndpoint,
		"rate_limit", cfg.RateLimit,
		"trust_proxy", cfg.TrustProxy,
		"has_redis", cfg.RedisURL != "",
		"has_maps_key", cfg.GoogleMapsAPIKey != "",
		"has_gemini_key", cfg.GeminiAPIKey != "",
		"has_gcp_project", cfg.GCPProject != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	cache := httpcache.NewMemory(cfg.GeoCacheTTL, logger)
	detector := detect.New(logger,
		detect.WithEndpoint(cfg.GeoEndpoint),
		detect.WithTimeout(cfg.GeoTimeout),
		detect.WithCache(cache),
	)
	resolver := resolve.New(cat,
		googlemaps.NewClient(cfg.GoogleMapsAPIKey, "", httpcache.NewCachedClient(cache, nil, logger), logger),
		gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GCPProject, cache, logger),
		logger)

	kv, closeKV, err := openPairsKV(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	s := newServer(
		tzconvert.NewEngine(cat, logger),
		detector,
		resolver,
		pairs.NewStore(kv, logger),
		newIPLimiter(cfg.RateLimit, cfg.RateBurst),
		logger,
	)
	s.trustProxy = cfg.TrustProxy

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "zones", cat.Len())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	cat := catalog.Default()
	if path == "" {
		return cat, nil
	}
	extra, err := catalog.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}
	return cat.Extend(extra...), nil
}

// openPairsKV picks Redis, a directory, or memory, in that order of preference.
func openPairsKV(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pairs.KV, func(), error) {
	switch {
	case cfg.RedisURL != "":
		client, err := pairs.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("saved pairs stored in redis")
		return pairs.NewRedisKV(client, "tzconv:"), func() {
			if err := client.Close(); err != nil {
				logger.Debug("failed to close redis client", "error", err)
			}
		}, nil
	case cfg.PairsDir != "":
		kv, err := pairs.NewFileKV(cfg.PairsDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("saved pairs stored on disk", "dir", cfg.PairsDir)
		return kv, func() {}, nil
	default:
		logger.Info("saved pairs kept in memory")
		return pairs.NewMemoryKV(), func() {}, nil
	}
}
