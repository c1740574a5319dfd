package sources

import (
	"regexp"
)

// YouTube video metadata search and playback resolution via the
// Innertube API, plus media stream relaying for downloads.

// videoIDRE matches a YouTube watch or short URL and captures the video ID.
var videoIDRE = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// bareVideoIDRE matches a bare 11-character video ID.
var bareVideoIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// extractVideoID accepts a bare 11-char video ID or any youtube.com/youtu.be
// watch URL and returns the canonical video ID. Returns "" if neither form matches.
func extractVideoID(input string) string {
	if bareVideoIDRE.MatchString(input) {
		return input
	}
	if m := videoIDRE.FindStringSubmatch(input); len(m) >= 2 {
		return m[1]
	}
	return ""
}
