package engine

// --- Canonical media records ---

// VideoRecord is the normalized representation of one video search result,
// independent of the upstream's raw renderer shape. ID is always non-empty;
// every other field falls back to a literal, never to an empty JSON null.
type VideoRecord struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	ThumbnailURL        string `json:"thumbnailUrl"`
	ChannelTitle        string `json:"channelTitle"`
	ChannelID           string `json:"channelId"`
	ChannelThumbnailURL string `json:"channelThumbnailUrl"`
	Views               string `json:"views"`
	Length              string `json:"length"`
	UploadDate          string `json:"uploadDate"`
	Description         string `json:"description"`
	DirectPlaybackURL   string `json:"directPlaybackUrl,omitempty"`
	InlinePlaybackURL   string `json:"inlinePlaybackUrl,omitempty"`
}

// TrackRecord is the normalized representation of one music search result.
type TrackRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AlbumArtURL string   `json:"albumArtUrl"`
	Artists     []string `json:"artists"`
	ExternalURL string   `json:"externalUrl"`
	Popularity  int      `json:"popularity,omitempty"`
	DurationMS  int      `json:"durationMs,omitempty"`
	Explicit    bool     `json:"explicit,omitempty"`
}

// --- Download bookkeeping ---

// DownloadRecord is one entry in the append-only download history.
// Never mutated after creation.
type DownloadRecord struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"` // "video" or "track"
	Title string      `json:"title"`
	Date  string      `json:"date"` // ISO-8601
	Media VideoRecord `json:"media"`
	Size  int64       `json:"size"`
}

// Progress is the state of one in-flight streaming transfer.
// TotalBytes == 0 means the upstream did not advertise a length; Percent
// stays 0 in that case until the stream ends, then snaps to 100.
type Progress struct {
	ReceivedBytes int64   `json:"receivedBytes"`
	TotalBytes    int64   `json:"totalBytes"`
	Percent       float64 `json:"percent"`
}

// --- MCP tool inputs/outputs ---

type VideoSearchInput struct {
	Query string `json:"query" jsonschema:"Search query"`
	Page  int    `json:"page,omitempty" jsonschema:"Page depth: results accumulate from page 1 through this page (default: 1)"`
}

type VideoSearchOutput struct {
	Query  string        `json:"query"`
	Videos []VideoRecord `json:"videos"`
}

type MusicSearchInput struct {
	Query string `json:"query" jsonschema:"Track search query"`
	Page  int    `json:"page,omitempty" jsonschema:"Result page, 10 tracks per page (default: 1)"`
}

type MusicSearchOutput struct {
	Query  string        `json:"query"`
	Tracks []TrackRecord `json:"tracks"`
}

type PlaybackResolveInput struct {
	VideoID string `json:"video_id" jsonschema:"11-character video ID or full watch URL"`
}

type PlaybackResolveOutput struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	PlaybackURL string `json:"playbackUrl"` // base64-encoded: the raw URL is not text-safe
}
