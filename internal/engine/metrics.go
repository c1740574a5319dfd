package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	VideoSearchRequests     atomic.Int64
	VideoSearchPages        atomic.Int64
	PlaybackResolveRequests atomic.Int64
	DownloadRequests        atomic.Int64
	DownloadErrors          atomic.Int64
	DownloadBytes           atomic.Int64
	SpotifySearchRequests   atomic.Int64
	StorageReads            atomic.Int64
	StorageWrites           atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"video_search_requests":     metrics.VideoSearchRequests.Load(),
		"video_search_pages":        metrics.VideoSearchPages.Load(),
		"playback_resolve_requests": metrics.PlaybackResolveRequests.Load(),
		"download_requests":         metrics.DownloadRequests.Load(),
		"download_errors":           metrics.DownloadErrors.Load(),
		"download_bytes":            metrics.DownloadBytes.Load(),
		"spotify_search_requests":   metrics.SpotifySearchRequests.Load(),
		"storage_reads":             metrics.StorageReads.Load(),
		"storage_writes":            metrics.StorageWrites.Load(),
		"cache_hits":                hits,
		"cache_misses":              misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"video_search_requests", "video_search_pages",
		"playback_resolve_requests",
		"download_requests", "download_errors", "download_bytes",
		"spotify_search_requests",
		"storage_reads", "storage_writes",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ and httpapi/ sub-packages.
func IncrVideoSearch()     { metrics.VideoSearchRequests.Add(1) }
func IncrVideoSearchPage() { metrics.VideoSearchPages.Add(1) }
func IncrPlaybackResolve() { metrics.PlaybackResolveRequests.Add(1) }
func IncrDownload()        { metrics.DownloadRequests.Add(1) }
func IncrDownloadError()   { metrics.DownloadErrors.Add(1) }
func IncrSpotifySearch()   { metrics.SpotifySearchRequests.Add(1) }
func IncrStorageRead()     { metrics.StorageReads.Add(1) }
func IncrStorageWrite()    { metrics.StorageWrites.Add(1) }

// AddDownloadBytes accumulates the byte total across completed transfers.
func AddDownloadBytes(n int64) { metrics.DownloadBytes.Add(n) }
