package sources

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/youmusic/go_media/internal/engine"
)

const sampleSpotifySearchJSON = `{
	"tracks": {
		"items": [
			{
				"id": "4uLU6hMCjMI75M1A2tKUQC",
				"name": "Never Gonna Give You Up",
				"album": {"images": [{"url": "https://i.scdn.co/image/large"}, {"url": "https://i.scdn.co/image/small"}]},
				"artists": [{"name": "Rick Astley"}],
				"external_urls": {"spotify": "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"},
				"popularity": 81,
				"duration_ms": 213573,
				"explicit": false
			},
			{
				"id": "",
				"name": "ghost entry without id"
			},
			{
				"id": "7GhIk7Il098yCjg4BQjzvb",
				"name": "Together Forever",
				"album": {"images": []},
				"artists": [{"name": "Rick Astley"}, {"name": "Someone Else"}],
				"external_urls": {"spotify": "https://open.spotify.com/track/7GhIk7Il098yCjg4BQjzvb"},
				"duration_ms": 204746,
				"explicit": true
			}
		]
	}
}`

func resetSpotifyTokenCache() {
	tokenCache.Lock()
	tokenCache.clientID = ""
	tokenCache.token = ""
	tokenCache.expiresAt = time.Time{}
	tokenCache.Unlock()
}

func TestSearchTracks(t *testing.T) {
	resetSpotifyTokenCache()
	var tokenRequests, searchRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token":
			tokenRequests++
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "client_credentials" {
				t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
			}
			if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "sec" {
				t.Error("credentials not forwarded")
			}
			io.WriteString(w, `{"access_token": "tok-abc", "token_type": "Bearer", "expires_in": 3600}`)
		case "/v1/search":
			searchRequests++
			if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
				t.Errorf("authorization = %q", got)
			}
			q := r.URL.Query()
			if q.Get("q") != "track:rick astley" {
				t.Errorf("q = %q", q.Get("q"))
			}
			if q.Get("type") != "track" || q.Get("limit") != "10" || q.Get("offset") != "10" {
				t.Errorf("pagination params = type:%q limit:%q offset:%q", q.Get("type"), q.Get("limit"), q.Get("offset"))
			}
			io.WriteString(w, sampleSpotifySearchJSON)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	testEngineConfig(t, srv)

	tracks, err := SearchTracks(t.Context(), "cid", "sec", "rick astley", 2)
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks (id-less entry skipped), got %d", len(tracks))
	}

	tr := tracks[0]
	if tr.ID != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("id = %q", tr.ID)
	}
	if tr.Title != "Never Gonna Give You Up" {
		t.Errorf("title = %q", tr.Title)
	}
	if tr.AlbumArtURL != "https://i.scdn.co/image/large" {
		t.Errorf("albumArtUrl = %q", tr.AlbumArtURL)
	}
	if len(tr.Artists) != 1 || tr.Artists[0] != "Rick Astley" {
		t.Errorf("artists = %v", tr.Artists)
	}
	if tr.Popularity != 81 || tr.DurationMS != 213573 || tr.Explicit {
		t.Errorf("metadata = %d/%d/%v", tr.Popularity, tr.DurationMS, tr.Explicit)
	}
	if tracks[1].AlbumArtURL != "" {
		t.Errorf("empty image list must map to empty albumArtUrl, got %q", tracks[1].AlbumArtURL)
	}
	if !tracks[1].Explicit || len(tracks[1].Artists) != 2 {
		t.Errorf("second track = %+v", tracks[1])
	}

	// Second search reuses the cached token.
	if _, err := SearchTracks(t.Context(), "cid", "sec", "rick astley", 2); err != nil {
		t.Fatalf("second SearchTracks: %v", err)
	}
	if tokenRequests != 1 {
		t.Errorf("token requests = %d, want 1 (cached)", tokenRequests)
	}
	if searchRequests != 2 {
		t.Errorf("search requests = %d", searchRequests)
	}
}

func TestSearchTracksNoCredentials(t *testing.T) {
	resetSpotifyTokenCache()
	engine.Init(engine.Config{HTTPClient: http.DefaultClient})
	_, err := SearchTracks(t.Context(), "", "", "anything", 1)
	if !errors.Is(err, engine.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestSearchTracksNoResults(t *testing.T) {
	resetSpotifyTokenCache()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			io.WriteString(w, `{"access_token": "tok-abc", "expires_in": 3600}`)
			return
		}
		io.WriteString(w, `{"tracks": {"items": []}}`)
	}))
	defer srv.Close()
	testEngineConfig(t, srv)

	_, err := SearchTracks(t.Context(), "cid", "sec", "zzzz", 1)
	if !errors.Is(err, engine.ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}
