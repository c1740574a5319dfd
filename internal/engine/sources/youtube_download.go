package sources

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/youmusic/go_media/internal/engine"
)

// Media stream relaying. Downloads run on engine.Cfg.DownloadClient, which
// carries no overall timeout: a large video may legitimately stream for
// longer than any sane request deadline. Cancellation comes from ctx.

const relayBufSize = 64 * 1024

// MediaStream is an open upstream media response ready to be relayed to a
// client. The caller owns Body and must either Relay or Close it.
type MediaStream struct {
	Body        io.ReadCloser
	ContentType string
	TotalBytes  int64
	Filename    string
}

// OpenMediaStream GETs a direct media URL and returns the open response.
// Any non-200 status is a download failure.
func OpenMediaStream(ctx context.Context, rawURL string) (*MediaStream, error) {
	engine.IncrDownload()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		engine.IncrDownloadError()
		return nil, fmt.Errorf("%w: %s", engine.ErrDownload, err)
	}
	req.Header.Set("User-Agent", engine.UserAgentChrome)

	resp, err := engine.Cfg.DownloadClient.Do(req)
	if err != nil {
		engine.IncrDownloadError()
		return nil, fmt.Errorf("%w: %s", engine.ErrDownload, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		engine.IncrDownloadError()
		return nil, fmt.Errorf("%w: upstream HTTP %d", engine.ErrDownload, resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return &MediaStream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		TotalBytes:  total,
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}, nil
}

// Close releases the upstream connection without relaying.
func (ms *MediaStream) Close() error {
	return ms.Body.Close()
}

var unsafeFilenameRE = regexp.MustCompile(`[^\w\s-]`)

// FilenameOr picks an attachment filename: the upstream's Content-Disposition
// name when present, otherwise the given title sanitized, otherwise "video.mp4".
func (ms *MediaStream) FilenameOr(title string) string {
	if ms.Filename != "" {
		return ms.Filename
	}
	title = strings.TrimSpace(unsafeFilenameRE.ReplaceAllString(title, ""))
	if title != "" {
		return title + ".mp4"
	}
	return "video.mp4"
}

func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func progressAt(received, total int64) engine.Progress {
	p := engine.Progress{ReceivedBytes: received, TotalBytes: total}
	if total > 0 {
		p.Percent = min(100, float64(received)/float64(total)*100)
	}
	return p
}

// Relay copies the stream to w chunk by chunk, invoking onProgress after each
// write. Back-pressure is inherent: the next upstream read happens only after
// the previous chunk was written out. A stream that ends with zero bytes
// received is a failure even when the upstream answered 200. On success the
// final progress callback reports exactly 100 percent.
func (ms *MediaStream) Relay(w io.Writer, onProgress func(engine.Progress)) (int64, error) {
	defer ms.Body.Close()

	buf := make([]byte, relayBufSize)
	var received int64
	for {
		n, readErr := ms.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				engine.IncrDownloadError()
				return received, fmt.Errorf("%w: client write: %s", engine.ErrDownload, writeErr)
			}
			received += int64(n)
			engine.AddDownloadBytes(int64(n))
			if onProgress != nil {
				onProgress(progressAt(received, ms.TotalBytes))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			engine.IncrDownloadError()
			return received, fmt.Errorf("%w: upstream read: %s", engine.ErrDownload, readErr)
		}
	}

	if received == 0 {
		engine.IncrDownloadError()
		return 0, fmt.Errorf("%w: upstream sent no data", engine.ErrDownload)
	}
	if onProgress != nil {
		onProgress(engine.Progress{ReceivedBytes: received, TotalBytes: ms.TotalBytes, Percent: 100})
	}
	return received, nil
}
