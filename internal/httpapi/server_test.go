package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/store"
)

// rewriteTransport redirects all upstream traffic to the fixture server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestServer(t *testing.T, upstream *httptest.Server) *Server {
	t.Helper()
	cfg := engine.Config{}
	if upstream != nil {
		target, err := url.Parse(upstream.URL)
		require.NoError(t, err)
		client := &http.Client{Transport: rewriteTransport{target: target}, Timeout: 5 * time.Second}
		cfg.HTTPClient = client
		cfg.DownloadClient = client
	}
	cfg.SearchMaxPages = 5
	engine.Init(cfg)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewServer(st, slog.Default())
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search/video/youtube/v1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestVideoSearchRequiresQuery(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/video/youtube/v1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const upstreamSearchPage = `{
	"contents": {"twoColumnSearchResultsRenderer": {"primaryContents": {"sectionListRenderer": {"contents": [
		{"videoRenderer": {
			"videoId": "abc123xyz_0",
			"title": {"runs": [{"text": "Test Video"}]}
		}}
	]}}}}
}`

func TestVideoSearch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, upstreamSearchPage)
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/video/youtube/v1?query=test&p=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []engine.VideoRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "abc123xyz_0", resp.Items[0].ID)
	assert.Equal(t, "Test Video", resp.Items[0].Title)
	assert.Equal(t, "N/A", resp.Items[0].Views)
}

func TestVideoSearchNoResults(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"contents": {}}`)
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/video/youtube/v1?query=nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No videos found"}`, rec.Body.String())
}

const upstreamPlayerResp = `{
	"videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "Test Clip"},
	"streamingData": {"formats": [
		{"itag": 18, "url": "https://media.example/video.mp4",
		 "mimeType": "video/mp4; codecs=\"avc1, mp4a\"", "audioQuality": "AUDIO_QUALITY_LOW"}
	]}
}`

func TestVideoInfoReturnsBase64URL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, upstreamPlayerResp)
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/info/video/youtube/v1?videoId=dQw4w9WgXcQ", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dQw4w9WgXcQ", resp["videoId"])

	decoded, err := base64.StdEncoding.DecodeString(resp["videoUrl"])
	require.NoError(t, err)
	assert.Equal(t, "https://media.example/video.mp4", string(decoded))
}

func TestVideoInfoInvalidID(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/info/video/youtube/v1?videoId=!!!", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid YouTube URL"}`, rec.Body.String())
}

func TestVideoDownloadStreamsAndRecords(t *testing.T) {
	payload := strings.Repeat("media-bytes.", 1000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/youtubei/v1/player") {
			io.WriteString(w, upstreamPlayerResp)
			return
		}
		io.WriteString(w, payload)
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/download/video/youtube/v2?videoId=dQw4w9WgXcQ", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Test Clip.mp4")

	// The finished download must show up in the history document.
	raw, err := s.store.Get(t.Context(), "downloads_json")
	require.NoError(t, err)
	var downloads map[string]engine.DownloadRecord
	require.NoError(t, json.Unmarshal(raw, &downloads))
	require.Len(t, downloads, 1)
	for _, d := range downloads {
		assert.Equal(t, "video", d.Type)
		assert.Equal(t, "Test Clip", d.Title)
		assert.Equal(t, int64(len(payload)), d.Size)
		assert.Equal(t, "dQw4w9WgXcQ", d.Media.ID)
	}
}

func TestDirectDownload(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "direct-media")
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	encoded := base64.StdEncoding.EncodeToString([]byte(upstream.URL + "/file"))
	rec := doJSON(t, s, http.MethodGet, "/api/v1/download/video/direct/v1?url="+url.QueryEscape(encoded), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "direct-media", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "video.mp4")
}

func TestDirectDownloadRejectsBadBase64(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/download/video/direct/v1?url=!!!not-base64", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/insert/storage/v1", map[string]any{
		"key":   "settings",
		"value": map[string]string{"theme": "dark"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/extract/storage/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"dark"}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/v1/extract/storage/v1/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageAppendArray(t *testing.T) {
	s := newTestServer(t, nil)

	for _, n := range []int{1, 2} {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/update/storage/v1", map[string]any{
			"key":   "log",
			"value": map[string]int{"n": n},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/extract/storage/v1/log", nil)
	assert.JSONEq(t, `[{"n":1},{"n":2}]`, rec.Body.String())
}

func TestStorageAppendMap(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/update/storage/v2", map[string]any{
		"key":      "index",
		"entryKey": "a",
		"value":    1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/update/storage/v2", map[string]any{
		"key":   "index",
		"value": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/extract/storage/v1/index", nil)
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())
}

func TestPlaylistUpdate(t *testing.T) {
	s := newTestServer(t, nil)

	// Seed a playlist.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/insert/storage/v1", map[string]any{
		"key":   "playlists_json",
		"value": map[string]any{"pl-1": map[string]any{"name": "Focus"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/update/playlist/v1", map[string]any{
		"playlistId": "pl-1",
		"field":      "tracks",
		"value":      map[string]string{"id": "t1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success         bool            `json:"success"`
		UpdatedPlaylist json.RawMessage `json:"updatedPlaylist"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"name":"Focus","tracks":[{"id":"t1"}]}`, string(resp.UpdatedPlaylist))

	// Second push appends.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/update/playlist/v1", map[string]any{
		"playlistId": "pl-1",
		"field":      "tracks",
		"value":      map[string]string{"id": "t2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := s.store.Get(t.Context(), "playlists_json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"pl-1":{"name":"Focus","tracks":[{"id":"t1"},{"id":"t2"}]}}`, string(stored))
}

func TestPlaylistUpdateMissingPlaylist(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/update/playlist/v1", map[string]any{
		"playlistId": "nope",
		"field":      "tracks",
		"value":      map[string]string{"id": "t1"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Playlist not found"}`, rec.Body.String())
}

func TestPlaylistUpdateInvalidInput(t *testing.T) {
	s := newTestServer(t, nil)
	for name, body := range map[string]map[string]any{
		"missing playlistId": {"field": "tracks", "value": map[string]string{}},
		"missing field":      {"playlistId": "pl-1", "value": map[string]string{}},
		"scalar value":       {"playlistId": "pl-1", "field": "tracks", "value": 42},
	} {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/update/playlist/v1", body)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "case %s", name)
	}
}

func TestMusicSearch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			io.WriteString(w, `{"access_token": "tok", "expires_in": 3600}`)
			return
		}
		io.WriteString(w, `{"tracks": {"items": [
			{"id": "trk1", "name": "Song", "artists": [{"name": "Artist"}],
			 "external_urls": {"spotify": "https://open.spotify.com/track/trk1"}}
		]}}`)
	}))
	defer upstream.Close()
	s := newTestServer(t, upstream)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/music/spotify/v1?query=song&clientId=cid&clientSecret=sec", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []engine.TrackRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "trk1", resp.Items[0].ID)
	assert.Equal(t, []string{"Artist"}, resp.Items[0].Artists)
}
