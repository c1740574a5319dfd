package engine

import "errors"

// Error taxonomy for the acquisition pipeline. Callers distinguish these with
// errors.Is; everything else that bubbles up is an internal failure.
var (
	// ErrUpstreamUnavailable marks transport or status failures talking to the
	// upstream platform. Propagated, never silently absorbed: a caller must be
	// able to tell "natural end of data" from "broken upstream".
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoResults means the first search page produced zero records.
	ErrNoResults = errors.New("no results")

	// ErrResolution means the media id is malformed or the upstream offers no
	// playable format matching the container constraints.
	ErrResolution = errors.New("playback resolution failed")

	// ErrDownload marks a failed media transfer: non-success status, missing
	// body, or a stream that closed cleanly with zero bytes received.
	ErrDownload = errors.New("download failed")
)
