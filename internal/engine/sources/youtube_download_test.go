package sources

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/youmusic/go_media/internal/engine"
)

func TestRelayProgressAndCompletion(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 32*1024) // 256 KiB, several chunks
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		// The body is too large for net/http to infer Content-Length; set it
		// explicitly so the response is not chunked.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()
	testEngineConfig(t, srv)

	ms, err := OpenMediaStream(t.Context(), srv.URL+"/videoplayback")
	if err != nil {
		t.Fatalf("OpenMediaStream: %v", err)
	}
	if ms.ContentType != "video/mp4" {
		t.Errorf("contentType = %q", ms.ContentType)
	}
	if ms.TotalBytes != int64(len(payload)) {
		t.Errorf("totalBytes = %d, want %d", ms.TotalBytes, len(payload))
	}

	var out bytes.Buffer
	var updates []engine.Progress
	n, err := ms.Relay(&out, func(p engine.Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("relayed %d bytes, want %d", n, len(payload))
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Error("relayed bytes differ from upstream payload")
	}

	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	var prev engine.Progress
	for i, p := range updates {
		if p.ReceivedBytes < prev.ReceivedBytes {
			t.Errorf("update %d: receivedBytes went backwards (%d < %d)", i, p.ReceivedBytes, prev.ReceivedBytes)
		}
		if p.Percent < prev.Percent {
			t.Errorf("update %d: percent went backwards (%v < %v)", i, p.Percent, prev.Percent)
		}
		if p.Percent > 100 {
			t.Errorf("update %d: percent %v over 100", i, p.Percent)
		}
		prev = p
	}
	last := updates[len(updates)-1]
	if last.Percent != 100 {
		t.Errorf("final percent = %v, want exactly 100", last.Percent)
	}
	if last.ReceivedBytes != int64(len(payload)) {
		t.Errorf("final receivedBytes = %d", last.ReceivedBytes)
	}
}

func TestRelayUnknownLengthPercentZero(t *testing.T) {
	ms := &MediaStream{Body: io.NopCloser(strings.NewReader("some data")), TotalBytes: 0}
	var out bytes.Buffer
	var updates []engine.Progress
	n, err := ms.Relay(&out, func(p engine.Progress) { updates = append(updates, p) })
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if n != int64(len("some data")) {
		t.Errorf("n = %d", n)
	}
	// Mid-stream percent stays 0 without a total; only the final snap reports 100.
	for _, p := range updates[:len(updates)-1] {
		if p.Percent != 0 {
			t.Errorf("mid-stream percent = %v, want 0", p.Percent)
		}
	}
	if updates[len(updates)-1].Percent != 100 {
		t.Error("final update must report 100")
	}
}

func TestRelayZeroBytesIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an empty body.
	}))
	defer srv.Close()
	testEngineConfig(t, srv)

	ms, err := OpenMediaStream(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("OpenMediaStream: %v", err)
	}
	var out bytes.Buffer
	n, err := ms.Relay(&out, nil)
	if !errors.Is(err, engine.ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
	if n != 0 {
		t.Errorf("n = %d", n)
	}
}

func TestOpenMediaStreamUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()
	testEngineConfig(t, srv)

	_, err := OpenMediaStream(t.Context(), srv.URL)
	if !errors.Is(err, engine.ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestRelayClientDisconnect(t *testing.T) {
	var closed bool
	rc := &trackingCloser{Reader: strings.NewReader(strings.Repeat("x", 1024)), closed: &closed}

	ms := &MediaStream{Body: rc, TotalBytes: 1024}
	_, err := ms.Relay(failingWriter{}, nil)
	if !errors.Is(err, engine.ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
	if !closed {
		t.Error("upstream body must be closed when the client write fails")
	}
}

type trackingCloser struct {
	io.Reader
	closed *bool
}

func (tc *trackingCloser) Close() error {
	*tc.closed = true
	return nil
}

func TestFilenameOr(t *testing.T) {
	cases := []struct {
		disposition string
		title       string
		want        string
	}{
		{`attachment; filename="clip.mp4"`, "ignored", "clip.mp4"},
		{"", "My Video: Part 1!", "My Video Part 1.mp4"},
		{"", "", "video.mp4"},
		{"garbage;;;", "", "video.mp4"},
	}
	for _, tc := range cases {
		ms := &MediaStream{Filename: filenameFromDisposition(tc.disposition)}
		if got := ms.FilenameOr(tc.title); got != tc.want {
			t.Errorf("FilenameOr(%q, %q) = %q, want %q", tc.disposition, tc.title, got, tc.want)
		}
	}
}
