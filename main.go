// go_media — media search & acquisition service.
//
// Two surfaces share one engine:
//   - REST API (/api/v1/...): video/music search, playback info, streaming
//     downloads, document storage.
//   - MCP server: video_search, music_search, playback_resolve tools.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/httpapi"
	"github.com/youmusic/go_media/internal/mediaserver"
	"github.com/youmusic/go_media/internal/store"
)

var (
	version = "dev"
	apiPort = env.Str("API_PORT", "8890")
	mcpPort = env.Str("MCP_PORT", "8891")
)

func main() {
	initEngine()

	st := openStore()
	defer st.Close()

	slog.Info("starting go_media",
		slog.String("api_port", apiPort),
		slog.String("mcp_port", mcpPort),
	)

	api := &http.Server{
		Addr:        ":" + apiPort,
		Handler:     httpapi.NewServer(st, slog.Default()),
		ReadTimeout: 30 * time.Second,
		// No write timeout: downloads stream for as long as they need.
	}
	go func() {
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_media",
		Version: version,
	}, nil)
	mediaserver.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_media",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	api.Shutdown(shutdownCtx)
}

func initEngine() {
	home, _ := os.UserHomeDir()
	c := engine.Config{
		SpotifyClientID:      env.Str("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret:  env.Str("SPOTIFY_CLIENT_SECRET", ""),
		SearchMaxPages:       env.Int("SEARCH_MAX_PAGES", 10),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 15*time.Second),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		StoragePath:          env.Str("STORAGE_PATH", filepath.Join(home, ".go_media", "storage.json")),
		StorageDBPath:        env.Str("STORAGE_DB_PATH", ""),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		DownloadClient: &http.Client{
			// No overall timeout; large streams run for hours.
			// Cancellation comes from the request context.
			Transport: &http.Transport{
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       60 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}

	bc, err := engine.NewBrowserClient()
	if err != nil {
		slog.Warn("browser client init failed, player fallback disabled", slog.Any("error", err))
	} else {
		c.Browser = bc
		slog.Info("browser client initialized")
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

// openStore picks the document store backend: Postgres when DATABASE_URL is
// set, SQLite when STORAGE_DB_PATH is set, flat file otherwise.
func openStore() store.Store {
	c := engine.Cfg
	if c.DatabaseURL != "" {
		st, err := store.NewPostgresStore(context.Background(), c.DatabaseURL)
		if err == nil {
			slog.Info("postgres store initialized")
			return st
		}
		slog.Warn("postgres store init failed, falling back to file", slog.Any("error", err))
	}
	if c.StorageDBPath != "" {
		st, err := store.NewSQLiteStore(c.StorageDBPath)
		if err == nil {
			slog.Info("sqlite store initialized", slog.String("path", c.StorageDBPath))
			return st
		}
		slog.Warn("sqlite store init failed, falling back to file", slog.Any("error", err))
	}
	st, err := store.NewFileStore(c.StoragePath)
	if err != nil {
		slog.Error("file store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("file store initialized", slog.String("path", c.StoragePath))
	return st
}
