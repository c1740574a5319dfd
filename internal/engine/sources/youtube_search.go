package sources

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/youmusic/go_media/internal/engine"
)

// YouTube video search — walks the Innertube /search endpoint page by page
// following continuation tokens, extracting canonical video records from the
// handful of renderer shapes the upstream is known to emit.

// --- Innertube /search response types ---

type ytSearchResp struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []contentItem `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
	OnResponseReceivedCommands []struct {
		AppendContinuationItemsAction *struct {
			ContinuationItems []contentItem `json:"continuationItems"`
		} `json:"appendContinuationItemsAction"`
	} `json:"onResponseReceivedCommands"`
}

// contentItem is one entry of a search result list. Exactly one of the
// renderer fields is set per item; anything else is an unknown shape.
type contentItem struct {
	VideoRenderer    *videoRenderer `json:"videoRenderer"`
	RichItemRenderer *struct {
		Content struct {
			VideoRenderer *videoRenderer `json:"videoRenderer"`
		} `json:"content"`
	} `json:"richItemRenderer"`
	ItemSectionRenderer *struct {
		Contents []contentItem `json:"contents"`
	} `json:"itemSectionRenderer"`
	ContinuationItemRenderer *struct {
		ContinuationEndpoint struct {
			ContinuationCommand struct {
				Token string `json:"token"`
			} `json:"continuationCommand"`
		} `json:"continuationEndpoint"`
	} `json:"continuationItemRenderer"`
}

type ytRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

type ytSimpleText struct {
	SimpleText string `json:"simpleText"`
}

type ytThumbnails struct {
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// ytWatchEndpoint carries the pre-resolved playback URL YouTube sometimes
// attaches to search results.
type ytWatchEndpoint struct {
	WatchEndpoint struct {
		WatchEndpointSupportedOnesieConfig struct {
			Html5PlaybackOnesieConfig struct {
				CommonConfig struct {
					URL string `json:"url"`
				} `json:"commonConfig"`
			} `json:"html5PlaybackOnesieConfig"`
		} `json:"watchEndpointSupportedOnesieConfig"`
	} `json:"watchEndpoint"`
}

type videoRenderer struct {
	VideoID                  string       `json:"videoId"`
	Title                    ytRuns       `json:"title"`
	Thumbnail                ytThumbnails `json:"thumbnail"`
	ShortViewCountText       ytSimpleText `json:"shortViewCountText"`
	ViewCountText            ytSimpleText `json:"viewCountText"`
	LengthText               ytSimpleText `json:"lengthText"`
	PublishedTimeText        ytSimpleText `json:"publishedTimeText"`
	DetailedMetadataSnippets []struct {
		SnippetText ytRuns `json:"snippetText"`
	} `json:"detailedMetadataSnippets"`
	ChannelThumbnailSupportedRenderers struct {
		ChannelThumbnailWithLinkRenderer struct {
			Thumbnail ytThumbnails `json:"thumbnail"`
		} `json:"channelThumbnailWithLinkRenderer"`
	} `json:"channelThumbnailSupportedRenderers"`
	OwnerText struct {
		Runs []struct {
			Text               string `json:"text"`
			NavigationEndpoint struct {
				BrowseEndpoint struct {
					BrowseID string `json:"browseId"`
				} `json:"browseEndpoint"`
			} `json:"navigationEndpoint"`
		} `json:"runs"`
	} `json:"ownerText"`
	NavigationEndpoint     *ytWatchEndpoint `json:"navigationEndpoint"`
	InlinePlaybackEndpoint *ytWatchEndpoint `json:"inlinePlaybackEndpoint"`
}

// renderersFor flattens one content item into its video renderers, checked in
// precedence order. Plain and rich items carry at most one; an
// itemSectionRenderer wraps a whole result list (often the entire page), so
// every nested videoRenderer is surfaced. Items matching no shape (shelves,
// ads, continuation markers) yield nothing.
func renderersFor(it *contentItem) []*videoRenderer {
	switch {
	case it.VideoRenderer != nil:
		return []*videoRenderer{it.VideoRenderer}
	case it.RichItemRenderer != nil && it.RichItemRenderer.Content.VideoRenderer != nil:
		return []*videoRenderer{it.RichItemRenderer.Content.VideoRenderer}
	case it.ItemSectionRenderer != nil:
		var out []*videoRenderer
		for i := range it.ItemSectionRenderer.Contents {
			if vr := it.ItemSectionRenderer.Contents[i].VideoRenderer; vr != nil {
				out = append(out, vr)
			}
		}
		return out
	}
	return nil
}

// recordFromRenderer maps a videoRenderer onto a canonical record.
// Missing fields get literal fallbacks rather than empty optionals.
func recordFromRenderer(vr *videoRenderer) engine.VideoRecord {
	rec := engine.VideoRecord{
		ID:           vr.VideoID,
		Title:        "No title",
		Views:        "N/A",
		Length:       "N/A",
		UploadDate:   "N/A",
		Description:  "No description available",
		ChannelTitle: "Unknown",
		ChannelID:    "Unknown",
	}
	if len(vr.Title.Runs) > 0 {
		rec.Title = vr.Title.Runs[0].Text
	}
	if len(vr.Thumbnail.Thumbnails) > 0 {
		rec.ThumbnailURL = vr.Thumbnail.Thumbnails[0].URL
	}
	switch {
	case vr.ShortViewCountText.SimpleText != "":
		rec.Views = vr.ShortViewCountText.SimpleText
	case vr.ViewCountText.SimpleText != "":
		rec.Views = vr.ViewCountText.SimpleText
	}
	if vr.LengthText.SimpleText != "" {
		rec.Length = vr.LengthText.SimpleText
	}
	if vr.PublishedTimeText.SimpleText != "" {
		rec.UploadDate = vr.PublishedTimeText.SimpleText
	}
	if len(vr.DetailedMetadataSnippets) > 0 && len(vr.DetailedMetadataSnippets[0].SnippetText.Runs) > 0 {
		rec.Description = vr.DetailedMetadataSnippets[0].SnippetText.Runs[0].Text
	}
	if ths := vr.ChannelThumbnailSupportedRenderers.ChannelThumbnailWithLinkRenderer.Thumbnail.Thumbnails; len(ths) > 0 {
		rec.ChannelThumbnailURL = ths[0].URL
	}
	if len(vr.OwnerText.Runs) > 0 {
		run := vr.OwnerText.Runs[0]
		rec.ChannelTitle = run.Text
		if id := run.NavigationEndpoint.BrowseEndpoint.BrowseID; id != "" {
			rec.ChannelID = id
		}
	}
	if vr.NavigationEndpoint != nil {
		rec.DirectPlaybackURL = vr.NavigationEndpoint.WatchEndpoint.WatchEndpointSupportedOnesieConfig.Html5PlaybackOnesieConfig.CommonConfig.URL
	}
	if vr.InlinePlaybackEndpoint != nil {
		rec.InlinePlaybackURL = vr.InlinePlaybackEndpoint.WatchEndpoint.WatchEndpointSupportedOnesieConfig.Html5PlaybackOnesieConfig.CommonConfig.URL
	}
	return rec
}

// extractSearchPage parses one raw /search response. First pages carry results
// under twoColumnSearchResultsRenderer; continuation pages under
// onResponseReceivedCommands. The returned ok is false when the expected
// content list is absent (end of results or a payload we cannot read).
func extractSearchPage(data []byte, continuation bool) (records []engine.VideoRecord, next ContinuationToken, ok bool) {
	var resp ytSearchResp
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Debug("youtube: malformed search response", slog.Any("err", err))
		return nil, "", false
	}

	var items []contentItem
	if continuation {
		for _, cmd := range resp.OnResponseReceivedCommands {
			if cmd.AppendContinuationItemsAction != nil {
				items = cmd.AppendContinuationItemsAction.ContinuationItems
				break
			}
		}
	} else {
		items = resp.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	}
	if items == nil {
		return nil, "", false
	}

	for i := range items {
		it := &items[i]
		if it.ContinuationItemRenderer != nil {
			next = ContinuationToken(it.ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand.Token)
			continue
		}
		for _, vr := range renderersFor(it) {
			if vr.VideoID == "" {
				continue
			}
			records = append(records, recordFromRenderer(vr))
		}
	}
	return records, next, true
}

// SearchVideos fetches up to page pages of search results for query,
// strictly sequentially since each page's continuation token comes from the
// previous response. Results accumulate across pages; a missing content list
// ends the walk early with whatever was gathered so far. Transport failures
// abort the walk even mid-way.
func SearchVideos(ctx context.Context, query string, page int) ([]engine.VideoRecord, error) {
	engine.IncrVideoSearch()
	page = engine.NormPage(page)
	if max := engine.Cfg.SearchMaxPages; max > 0 && page > max {
		page = max
	}

	visitorData := generateVisitorData()
	var records []engine.VideoRecord
	var token ContinuationToken

	for current := 1; current <= page; current++ {
		payload := map[string]any{"context": ytWebContext(visitorData)}
		if token != "" {
			payload["continuation"] = string(token)
		} else {
			payload["query"] = query
		}

		data, err := postInnerTubeWEB(ctx, ytSearchURL, payload, visitorData)
		if err != nil {
			return nil, err
		}
		engine.IncrVideoSearchPage()

		pageRecords, next, ok := extractSearchPage(data, token != "")
		records = append(records, pageRecords...)
		if !ok || next == "" {
			break
		}
		token = next
	}

	if len(records) == 0 {
		return nil, engine.ErrNoResults
	}
	slog.Debug("youtube: search done", slog.String("query", query), slog.Int("records", len(records)))
	return records, nil
}
