package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	SpotifyClientID      string
	SpotifyClientSecret  string
	SearchMaxPages       int // upper bound on continuation walks per search
	FetchTimeout         time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	StoragePath          string // flat-file document store location
	StorageDBPath        string // non-empty = SQLite document store
	DatabaseURL          string // non-empty = Postgres document store
	HTTPClient           *http.Client
	DownloadClient       *http.Client   // no overall timeout; media streams outlive any sane deadline
	Browser              *BrowserClient // nil = TLS-fingerprint fallback disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, httpapi).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
