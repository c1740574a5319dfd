// Package mediaserver registers the MCP tool surface: video search, music
// search, and playback resolution. Downloads stay on the REST API since MCP
// tool results cannot stream raw media bytes.
package mediaserver

import (
	"context"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/youmusic/go_media/internal/engine"
	"github.com/youmusic/go_media/internal/engine/sources"
	"github.com/youmusic/go_media/internal/toolutil"
)

// RegisterTools registers all media tools on the given MCP server.
func RegisterTools(server *mcp.Server) {
	registerVideoSearch(server)
	registerMusicSearch(server)
	registerPlaybackResolve(server)
}

func registerVideoSearch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_search",
		Description: "Search YouTube videos. Returns structured JSON records (id, title, channel, views, length, upload date, description, thumbnails). Results accumulate from page 1 through the requested page.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoSearchInput) (*mcp.CallToolResult, engine.VideoSearchOutput, error) {
		query, err := toolutil.TrimQuery(input.Query)
		if err != nil {
			return nil, engine.VideoSearchOutput{}, err
		}
		page := engine.NormPage(input.Page)

		cacheKey := engine.CacheKey("video_search", query, strconv.Itoa(page))
		if out, ok := engine.CacheLoadJSON[engine.VideoSearchOutput](ctx, cacheKey); ok {
			return nil, out, nil
		}

		records, err := sources.SearchVideos(ctx, query, page)
		if err != nil {
			return nil, engine.VideoSearchOutput{}, err
		}

		out := engine.VideoSearchOutput{Query: query, Videos: records}
		engine.CacheStoreJSON(ctx, cacheKey, out)
		return nil, out, nil
	})
}

func registerMusicSearch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "music_search",
		Description: "Search Spotify tracks. Returns structured JSON records (id, title, artists, album art, external link, duration, popularity). 10 tracks per page.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.MusicSearchInput) (*mcp.CallToolResult, engine.MusicSearchOutput, error) {
		query, err := toolutil.TrimQuery(input.Query)
		if err != nil {
			return nil, engine.MusicSearchOutput{}, err
		}
		page := engine.NormPage(input.Page)

		cacheKey := engine.CacheKey("music_search", query, strconv.Itoa(page))
		if out, ok := engine.CacheLoadJSON[engine.MusicSearchOutput](ctx, cacheKey); ok {
			return nil, out, nil
		}

		tracks, err := sources.SearchTracks(ctx, "", "", query, page)
		if err != nil {
			return nil, engine.MusicSearchOutput{}, err
		}

		out := engine.MusicSearchOutput{Query: query, Tracks: tracks}
		engine.CacheStoreJSON(ctx, cacheKey, out)
		return nil, out, nil
	})
}

func registerPlaybackResolve(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "playback_resolve",
		Description: "Resolve a YouTube video ID or watch URL to a direct playback URL (base64-encoded, first muxed mp4 format). Resolved URLs expire quickly, so results are never cached.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.PlaybackResolveInput) (*mcp.CallToolResult, engine.PlaybackResolveOutput, error) {
		pb, err := sources.ResolvePlayback(ctx, input.VideoID)
		if err != nil {
			return nil, engine.PlaybackResolveOutput{}, err
		}
		return nil, engine.PlaybackResolveOutput{
			VideoID:     pb.VideoID,
			Title:       pb.Title,
			PlaybackURL: toolutil.EncodePlaybackURL(pb.URL),
		}, nil
	})
}
