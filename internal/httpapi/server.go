// Package httpapi is the REST surface: video/music search, playback info,
// streaming downloads, and the document storage endpoints.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/store"
)

type Server struct {
	store   store.Store
	logger  *slog.Logger
	handler http.Handler
}

// NewServer wires all routes and the middleware chain.
func NewServer(st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: st, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search/video/youtube/v1", s.handleVideoSearch)
	mux.HandleFunc("GET /api/v1/info/video/youtube/v1", s.handleVideoInfo)
	mux.HandleFunc("GET /api/v1/download/video/youtube/v2", s.handleVideoDownload)
	mux.HandleFunc("GET /api/v1/download/video/direct/v1", s.handleDirectDownload)
	mux.HandleFunc("GET /api/v1/search/music/spotify/v1", s.handleMusicSearch)
	mux.HandleFunc("GET /api/v1/extract/storage/v1/{key}", s.handleStorageGet)
	mux.HandleFunc("POST /api/v1/insert/storage/v1", s.handleStorageSet)
	mux.HandleFunc("POST /api/v1/update/storage/v1", s.handleStorageAppendArray)
	mux.HandleFunc("POST /api/v1/update/storage/v2", s.handleStorageAppendMap)
	mux.HandleFunc("POST /api/v1/update/playlist/v1", s.handlePlaylistUpdate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.handler = recoveryMiddleware(logger, loggingMiddleware(logger, corsMiddleware(mux)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(engine.FormatMetrics()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("httpapi: encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
