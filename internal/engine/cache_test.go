package engine

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCacheKeyShape(t *testing.T) {
	k1 := CacheKey("video_search", "lofi beats", "1")
	k2 := CacheKey("video_search", "lofi beats", "1")
	if k1 != k2 {
		t.Errorf("same parts produced different keys: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "gm:") {
		t.Errorf("key %q missing gm: prefix", k1)
	}

	// Page and operation must both separate entries.
	if k1 == CacheKey("video_search", "lofi beats", "2") {
		t.Error("page 1 and page 2 share a key")
	}
	if k1 == CacheKey("music_search", "lofi beats", "1") {
		t.Error("video and music searches share a key")
	}
}

func TestCacheSearchOutputRoundTrip(t *testing.T) {
	InitCache("", time.Minute, 100, 5*time.Minute)
	ctx := context.Background()
	key := CacheKey("video_search", "lofi beats", "1")

	if _, ok := CacheLoadJSON[VideoSearchOutput](ctx, key); ok {
		t.Fatal("expected a miss before anything is stored")
	}

	stored := VideoSearchOutput{
		Query: "lofi beats",
		Videos: []VideoRecord{
			{ID: "dQw4w9WgXcQ", Title: "Lofi Mix", ChannelTitle: "Lofi Girl", Views: "1.2M views"},
			{ID: "abc123xyz_0", Title: "No title", Views: "N/A"},
		},
	}
	CacheStoreJSON(ctx, key, stored)

	got, ok := CacheLoadJSON[VideoSearchOutput](ctx, key)
	if !ok {
		t.Fatal("expected a hit after store")
	}
	if got.Query != "lofi beats" || len(got.Videos) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Videos[0].ID != "dQw4w9WgXcQ" || got.Videos[1].Views != "N/A" {
		t.Errorf("records did not survive the round trip: %+v", got.Videos)
	}
}

func TestCacheTrackRecordsKeepSeparateKeys(t *testing.T) {
	InitCache("", time.Minute, 100, 5*time.Minute)
	ctx := context.Background()

	CacheStoreJSON(ctx, CacheKey("music_search", "daft punk", "1"), MusicSearchOutput{
		Query:  "daft punk",
		Tracks: []TrackRecord{{ID: "t1", Title: "One More Time", Artists: []string{"Daft Punk"}}},
	})

	if _, ok := CacheLoadJSON[MusicSearchOutput](ctx, CacheKey("music_search", "daft punk", "2")); ok {
		t.Error("page 2 must not hit page 1's entry")
	}
	got, ok := CacheLoadJSON[MusicSearchOutput](ctx, CacheKey("music_search", "daft punk", "1"))
	if !ok || len(got.Tracks) != 1 || got.Tracks[0].Title != "One More Time" {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}

func TestCacheUndecodableEntryIsMiss(t *testing.T) {
	InitCache("", time.Minute, 100, 5*time.Minute)
	ctx := context.Background()
	key := CacheKey("video_search", "corrupt", "1")

	CacheSetBytes(ctx, key, []byte(`{"query": 42, "videos": "nope"`))
	if _, ok := CacheLoadJSON[VideoSearchOutput](ctx, key); ok {
		t.Error("an entry that fails to decode must read as a miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	InitCache("", time.Millisecond, 100, 5*time.Minute)
	ctx := context.Background()
	key := CacheKey("video_search", "short lived", "1")

	CacheStoreJSON(ctx, key, VideoSearchOutput{Query: "short lived"})
	time.Sleep(5 * time.Millisecond)

	if _, ok := CacheLoadJSON[VideoSearchOutput](ctx, key); ok {
		t.Error("expected a miss after the TTL passed")
	}
}

func TestCacheEvictionBound(t *testing.T) {
	InitCache("", time.Minute, 3, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		key := CacheKey("video_search", "query", strconv.Itoa(i))
		CacheStoreJSON(ctx, key, VideoSearchOutput{Query: "query"})
	}

	count := 0
	searchCache.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 3 {
		t.Errorf("L1 holds %d entries, want at most 3", count)
	}
}

func TestCacheDisabledIsAlwaysMiss(t *testing.T) {
	old := searchCache
	searchCache = nil
	t.Cleanup(func() { searchCache = old })

	ctx := context.Background()
	key := CacheKey("video_search", "no cache", "1")

	// Handlers call these unconditionally; neither may panic.
	CacheStoreJSON(ctx, key, VideoSearchOutput{Query: "no cache"})
	if _, ok := CacheLoadJSON[VideoSearchOutput](ctx, key); ok {
		t.Error("an uninitialized cache must never hit")
	}
}
