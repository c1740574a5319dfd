package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/youmusic/go_media/internal/engine"
)

// Spotify track search via the Web API with client-credentials auth.

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifySearchURL = "https://api.spotify.com/v1/search"
	spotifyPageSize  = 10
)

type spotifyTokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotifySearchResp struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTrack struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Popularity int  `json:"popularity"`
	DurationMS int  `json:"duration_ms"`
	Explicit   bool `json:"explicit"`
}

// tokenCache holds the current client-credentials token until shortly before
// its expiry. Keyed by client ID so per-request credentials don't collide.
var tokenCache = struct {
	sync.Mutex
	clientID  string
	token     string
	expiresAt time.Time
}{}

// spotifyAccessToken fetches (or reuses) a client-credentials access token.
func spotifyAccessToken(ctx context.Context, clientID, clientSecret string) (string, error) {
	tokenCache.Lock()
	if tokenCache.clientID == clientID && tokenCache.token != "" && time.Now().Before(tokenCache.expiresAt) {
		token := tokenCache.token
		tokenCache.Unlock()
		return token, nil
	}
	tokenCache.Unlock()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	resp, err := engine.PostFormWithRetry(ctx, spotifyTokenURL, form)
	if err != nil {
		return "", fmt.Errorf("%w: spotify token: %s", engine.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%w: spotify token HTTP %d: %s", engine.ErrUpstreamUnavailable, resp.StatusCode, snippet)
	}

	var tok spotifyTokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode spotify token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: spotify token response missing access_token", engine.ErrUpstreamUnavailable)
	}

	tokenCache.Lock()
	tokenCache.clientID = clientID
	tokenCache.token = tok.AccessToken
	tokenCache.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	tokenCache.Unlock()
	return tok.AccessToken, nil
}

// SearchTracks searches Spotify for tracks matching query. Credentials fall
// back to the configured application client when the caller passes none.
// Pagination is offset-based with a fixed page size of 10.
func SearchTracks(ctx context.Context, clientID, clientSecret, query string, page int) ([]engine.TrackRecord, error) {
	engine.IncrSpotifySearch()

	if clientID == "" {
		clientID = engine.Cfg.SpotifyClientID
		clientSecret = engine.Cfg.SpotifyClientSecret
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: no spotify credentials", engine.ErrUpstreamUnavailable)
	}

	token, err := spotifyAccessToken(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	page = engine.NormPage(page)
	params := url.Values{}
	params.Set("q", "track:"+query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(spotifyPageSize))
	params.Set("offset", strconv.Itoa((page-1)*spotifyPageSize))

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifySearchURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: spotify search: %s", engine.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: spotify search HTTP %d: %s", engine.ErrUpstreamUnavailable, resp.StatusCode, snippet)
	}

	var result spotifySearchResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode spotify search: %w", err)
	}

	tracks := make([]engine.TrackRecord, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		if item.ID == "" {
			continue
		}
		rec := engine.TrackRecord{
			ID:          item.ID,
			Title:       item.Name,
			ExternalURL: item.ExternalURLs.Spotify,
			Popularity:  item.Popularity,
			DurationMS:  item.DurationMS,
			Explicit:    item.Explicit,
		}
		if len(item.Album.Images) > 0 {
			rec.AlbumArtURL = item.Album.Images[0].URL
		}
		for _, a := range item.Artists {
			rec.Artists = append(rec.Artists, a.Name)
		}
		tracks = append(tracks, rec)
	}
	if len(tracks) == 0 {
		return nil, engine.ErrNoResults
	}
	return tracks, nil
}
