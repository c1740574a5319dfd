package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/youmusic/go_media/internal/engine"
)

// Playback resolution — the Innertube /player endpoint queried as the ANDROID
// client, which returns progressive (muxed audio+video) format URLs without
// signature deciphering.

// Playback is a resolved direct media URL for a video.
type Playback struct {
	VideoID   string
	Title     string
	URL       string
	MimeType  string
	SizeBytes int64
}

type ytPlayerResp struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	} `json:"videoDetails"`
	StreamingData struct {
		Formats         []ytStreamFormat `json:"formats"`
		AdaptiveFormats []ytStreamFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type ytStreamFormat struct {
	Itag          int    `json:"itag"`
	URL           string `json:"url"`
	MimeType      string `json:"mimeType"`
	AudioQuality  string `json:"audioQuality"`
	ContentLength string `json:"contentLength"`
}

// hasAudio reports whether the format carries an audio track. Progressive
// formats always set audioQuality; video-only adaptive formats never do.
func (f *ytStreamFormat) hasAudio() bool {
	return f.AudioQuality != ""
}

// pickProgressiveMP4 returns the first muxed mp4 format in upstream order.
func pickProgressiveMP4(formats []ytStreamFormat) *ytStreamFormat {
	for i := range formats {
		f := &formats[i]
		if f.URL != "" && f.hasAudio() && strings.HasPrefix(f.MimeType, "video/mp4") {
			return f
		}
	}
	return nil
}

// fetchPlayer POSTs the ANDROID /player request. On 403 it retries once
// through the TLS-fingerprinted browser client before giving up.
func fetchPlayer(ctx context.Context, videoID string) (*ytPlayerResp, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytPlayerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return engine.Cfg.HTTPClient.Do(req)
	})
	switch {
	case err == nil && resp.StatusCode == http.StatusOK:
		defer resp.Body.Close()
		var player ytPlayerResp
		if decErr := json.NewDecoder(resp.Body).Decode(&player); decErr != nil {
			return nil, fmt.Errorf("decode player: %w", decErr)
		}
		return &player, nil
	case err == nil && resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
	case err == nil:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: player HTTP %d", engine.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: player: %s", engine.ErrUpstreamUnavailable, err)
	}

	if engine.Cfg.Browser == nil {
		return nil, fmt.Errorf("%w: player blocked and no browser client configured", engine.ErrUpstreamUnavailable)
	}
	slog.Debug("youtube: player blocked, retrying via browser client", slog.String("id", videoID))

	body, status, err := engine.Cfg.Browser.Do(http.MethodPost, ytPlayerURL+"?prettyPrint=false", map[string]string{
		"Content-Type":             "application/json",
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	}, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: player via browser: %s", engine.ErrUpstreamUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: player via browser HTTP %d", engine.ErrUpstreamUnavailable, status)
	}
	var player ytPlayerResp
	if err := json.Unmarshal(body, &player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return &player, nil
}

// ResolvePlayback resolves a video ID or watch URL to a direct playback URL
// for the first muxed mp4 format the upstream offers.
func ResolvePlayback(ctx context.Context, input string) (*Playback, error) {
	engine.IncrPlaybackResolve()

	videoID := extractVideoID(input)
	if videoID == "" {
		return nil, fmt.Errorf("%w: invalid video id %q", engine.ErrResolution, engine.Truncate(input, 64))
	}

	player, err := fetchPlayer(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if ps := player.PlayabilityStatus; ps != nil && ps.Status != "" && ps.Status != "OK" {
		reason := ps.Reason
		if reason == "" {
			reason = ps.Status
		}
		return nil, fmt.Errorf("%w: %s", engine.ErrResolution, reason)
	}

	format := pickProgressiveMP4(player.StreamingData.Formats)
	if format == nil {
		return nil, fmt.Errorf("%w: no muxed mp4 format for %s", engine.ErrResolution, videoID)
	}

	size, _ := strconv.ParseInt(format.ContentLength, 10, 64)
	return &Playback{
		VideoID:   videoID,
		Title:     player.VideoDetails.Title,
		URL:       format.URL,
		MimeType:  format.MimeType,
		SizeBytes: size,
	}, nil
}
