package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/engine/sources"
)

func (s *Server) handleMusicSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}
	page, _ := strconv.Atoi(q.Get("p"))
	page = engine.NormPage(page)

	// Per-request credentials override the configured application client.
	clientID := q.Get("clientId")
	clientSecret := q.Get("clientSecret")

	cacheKey := engine.CacheKey("music_search", clientID, query, strconv.Itoa(page))
	if cached, ok := engine.CacheLoadJSON[[]engine.TrackRecord](r.Context(), cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"items": cached})
		return
	}

	tracks, err := sources.SearchTracks(r.Context(), clientID, clientSecret, query, page)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoResults):
			writeError(w, http.StatusNotFound, "No tracks found")
		case errors.Is(err, engine.ErrUpstreamUnavailable):
			writeError(w, http.StatusBadGateway, "Failed to fetch data")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to fetch data")
		}
		return
	}

	engine.CacheStoreJSON(r.Context(), cacheKey, tracks)
	writeJSON(w, http.StatusOK, map[string]any{"items": tracks})
}
