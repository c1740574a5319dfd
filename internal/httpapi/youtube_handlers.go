package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/engine/sources"
	"github.com/youmusic/go_media/internal/toolutil"
)

func (s *Server) handleVideoSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("p"))
	page = engine.NormPage(page)

	cacheKey := engine.CacheKey("video_search", query, strconv.Itoa(page))
	if cached, ok := engine.CacheLoadJSON[[]engine.VideoRecord](r.Context(), cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"items": cached})
		return
	}

	records, err := sources.SearchVideos(r.Context(), query, page)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoResults):
			writeError(w, http.StatusNotFound, "No videos found")
		case errors.Is(err, engine.ErrUpstreamUnavailable):
			writeError(w, http.StatusBadGateway, "Upstream unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "Error fetching data")
		}
		return
	}

	engine.CacheStoreJSON(r.Context(), cacheKey, records)
	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "No ID provided")
		return
	}

	pb, err := sources.ResolvePlayback(r.Context(), videoID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrResolution):
			writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		case errors.Is(err, engine.ErrUpstreamUnavailable):
			writeError(w, http.StatusBadGateway, "Upstream unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "Error fetching data")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"videoId":  pb.VideoID,
		"videoUrl": toolutil.EncodePlaybackURL(pb.URL),
	})
}

// progressLogger logs relay progress at coarse steps instead of per chunk.
func progressLogger(logger *slog.Logger, name string) func(engine.Progress) {
	var lastStep int
	return func(p engine.Progress) {
		step := int(p.Percent) / 25
		if step > lastStep {
			lastStep = step
			logger.Debug("download progress",
				slog.String("file", name),
				slog.Int64("received", p.ReceivedBytes),
				slog.Float64("percent", p.Percent))
		}
	}
}

func (s *Server) handleVideoDownload(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "No ID provided")
		return
	}

	pb, err := sources.ResolvePlayback(r.Context(), videoID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrResolution):
			writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		case errors.Is(err, engine.ErrUpstreamUnavailable):
			writeError(w, http.StatusBadGateway, "Upstream unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to download video")
		}
		return
	}

	s.streamDownload(w, r, pb.URL, pb.Title, &engine.VideoRecord{ID: pb.VideoID, Title: pb.Title})
}

func (s *Server) handleDirectDownload(w http.ResponseWriter, r *http.Request) {
	encoded := r.URL.Query().Get("url")
	if encoded == "" {
		writeError(w, http.StatusBadRequest, "Base64-encoded URL is required")
		return
	}
	decoded, err := toolutil.DecodePlaybackURL(encoded)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base64 URL")
		return
	}

	s.streamDownload(w, r, decoded, "", nil)
}

// streamDownload relays a direct media URL to the client. The request
// context cancels the upstream transfer when the client disconnects.
// Completed downloads via a resolved video are recorded in the store.
func (s *Server) streamDownload(w http.ResponseWriter, r *http.Request, mediaURL, title string, media *engine.VideoRecord) {
	ms, err := sources.OpenMediaStream(r.Context(), mediaURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to download video")
		return
	}

	filename := ms.FilenameOr(title)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if ms.TotalBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ms.TotalBytes, 10))
	}

	received, err := ms.Relay(w, progressLogger(s.logger, filename))
	if err != nil {
		// Headers are already out; all we can do is log and drop the connection.
		s.logger.Warn("download aborted",
			slog.String("file", filename),
			slog.Int64("received", received),
			slog.Any("err", err))
		return
	}

	if media != nil {
		s.recordDownload(r.Context(), title, *media, received)
	}
}

// recordDownload appends an entry to the download history document. Failures
// are logged, never surfaced: the client already has its bytes.
func (s *Server) recordDownload(ctx context.Context, title string, media engine.VideoRecord, size int64) {
	if s.store == nil {
		return
	}
	rec := engine.DownloadRecord{
		ID:    uuid.NewString(),
		Type:  "video",
		Title: title,
		Date:  time.Now().UTC().Format(time.RFC3339),
		Media: media,
		Size:  size,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	engine.IncrStorageWrite()
	if err := s.store.AppendMap(ctx, "downloads_json", rec.ID, payload); err != nil {
		s.logger.Warn("download record write failed", slog.Any("err", err))
	}
}
