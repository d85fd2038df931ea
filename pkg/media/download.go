// Package media downloads post media into a run-scoped directory under
// count and per-item size limits.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Item is one remote asset to fetch.
type Item struct {
	URL     string
	IsVideo bool
}

// Asset is a downloaded file owned by the current run.
type Asset struct {
	LocalPath   string
	ByteSize    int64
	ContentType string
	SourceURL   string
	IsVideo     bool
}

func (a Asset) Filename() string { return filepath.Base(a.LocalPath) }

// IsImage reports whether the asset can serve as an embed preview.
func (a Asset) IsImage() bool {
	if a.IsVideo {
		return false
	}
	if strings.HasPrefix(a.ContentType, "image/") {
		return true
	}
	return isImageExt(filepath.Ext(a.LocalPath))
}

var (
	errTooLarge = errors.New("size limit exceeded")
	errNotMedia = errors.New("response is not media")
)

type Fetcher struct {
	client    *http.Client
	userAgent string
	logPrefix string
}

func NewFetcher(client *http.Client, userAgent, logPrefix string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, userAgent: userAgent, logPrefix: logPrefix}
}

// Download fetches items in order into dir and stops after limitCount saved
// assets. Per-item failures are logged and skipped; Download itself only fails
// when dir cannot be prepared or ctx is done.
func (f *Fetcher) Download(ctx context.Context, dir string, items []Item, limitCount int, limitBytes int64) ([]Asset, error) {
	if limitCount <= 0 || len(items) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	out := make([]Asset, 0, min(limitCount, len(items)))
	for idx, item := range items {
		if len(out) >= limitCount {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		src := strings.TrimSpace(item.URL)
		if src == "" {
			continue
		}

		asset, err := f.downloadOne(ctx, dir, idx+1, item, limitBytes)
		if err != nil {
			log.Printf("%s media skipped: idx=%d url=%s err=%v", f.logPrefix, idx+1, src, err)
			continue
		}
		log.Printf("%s media saved: idx=%d file=%s bytes=%d", f.logPrefix, idx+1, asset.Filename(), asset.ByteSize)
		out = append(out, asset)
	}
	return out, nil
}

func (f *Fetcher) downloadOne(ctx context.Context, dir string, n int, item Item, limitBytes int64) (Asset, error) {
	src := strings.TrimSpace(item.URL)
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return Asset{}, fmt.Errorf("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Asset{}, err
	}
	if ua := strings.TrimSpace(f.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Asset{}, fmt.Errorf("status=%d", resp.StatusCode)
	}
	if limitBytes > 0 && resp.ContentLength > limitBytes {
		return Asset{}, fmt.Errorf("%w: content-length=%d limit=%d", errTooLarge, resp.ContentLength, limitBytes)
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	if !item.IsVideo && contentType == "text/html" {
		return Asset{}, fmt.Errorf("%w: content-type=%s", errNotMedia, contentType)
	}

	partPath := filepath.Join(dir, fmt.Sprintf("media_%d.part", n))
	written, err := copyLimited(partPath, resp.Body, limitBytes)
	if err != nil {
		_ = os.Remove(partPath)
		return Asset{}, err
	}

	ext := InferExt(src, contentType)
	if ext == fallbackExt && !item.IsVideo {
		if sniffed, sniffedType := sniffImage(partPath); sniffed != "" {
			ext = sniffed
			contentType = sniffedType
		}
	}
	finalPath := filepath.Join(dir, fmt.Sprintf("media_%d%s", n, ext))
	if err := os.Rename(partPath, finalPath); err != nil {
		_ = os.Remove(partPath)
		return Asset{}, err
	}

	return Asset{
		LocalPath:   finalPath,
		ByteSize:    written,
		ContentType: contentType,
		SourceURL:   src,
		IsVideo:     item.IsVideo,
	}, nil
}

// copyLimited streams r into path, aborting once more than limit bytes
// arrive. The caller removes path on error.
func copyLimited(path string, r io.Reader, limit int64) (int64, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, copyErr := io.Copy(fh, src)
	closeErr := fh.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, closeErr
	}
	if limit > 0 && written > limit {
		return written, fmt.Errorf("%w: streamed>%d", errTooLarge, limit)
	}
	return written, nil
}
