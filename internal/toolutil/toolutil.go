// Package toolutil provides shared helper functions for go_media MCP tools
// and HTTP handlers.
package toolutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// TrimQuery normalises a user-supplied search query.
func TrimQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("query is required")
	}
	return q, nil
}

// EncodePlaybackURL makes a resolved media URL text-safe for transport.
// Raw googlevideo URLs are full of query metacharacters.
func EncodePlaybackURL(u string) string {
	return base64.StdEncoding.EncodeToString([]byte(u))
}

// DecodePlaybackURL reverses EncodePlaybackURL.
func DecodePlaybackURL(encoded string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode playback url: %w", err)
	}
	return string(decoded), nil
}
