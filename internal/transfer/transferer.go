package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ProgressFunc receives completion percentages between 0 and 100.
type ProgressFunc func(percent int)

// Transferer moves the data of one item.
type Transferer interface {
	Transfer(ctx context.Context, item *Item, progress ProgressFunc) error
}

// TransfererFunc adapts a function to Transferer.
type TransfererFunc func(ctx context.Context, item *Item, progress ProgressFunc) error

// Transfer implements Transferer.
func (f TransfererFunc) Transfer(ctx context.Context, item *Item, progress ProgressFunc) error {
	return f(ctx, item, progress)
}

// HTTPTransferer uploads with PUT and downloads with GET.
type HTTPTransferer struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransferer returns a transferer using client, or a client with a
// generous timeout when client is nil.
func NewHTTPTransferer(client *http.Client, logger *slog.Logger) *HTTPTransferer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransferer{
		client: client,
		logger: logger.With("component", "http_transferer"),
	}
}

// Transfer implements Transferer.
func (h *HTTPTransferer) Transfer(ctx context.Context, item *Item, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int) {}
	}

	switch item.Direction {
	case DirectionUpload:
		return h.upload(ctx, item, progress)
	case DirectionDownload:
		return h.download(ctx, item, progress)
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, item.Direction)
	}
}

func (h *HTTPTransferer) upload(ctx context.Context, item *Item, progress ProgressFunc) error {
	f, err := os.Open(item.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", item.File, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", item.File, err)
	}

	body := &progressReader{r: f, total: info.Size(), progress: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, item.URL, body)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload of %d failed: %w", item.ID(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: upload of %d: status %d", ErrRemote, item.ID(), resp.StatusCode)
	}

	progress(100)
	h.logger.Debug("upload complete", "transfer_id", item.ID(), "bytes", info.Size())
	return nil
}

func (h *HTTPTransferer) download(ctx context.Context, item *Item, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("download of %d failed: %w", item.ID(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download of %d: status %d", ErrRemote, item.ID(), resp.StatusCode)
	}

	dir := filepath.Dir(item.File)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(item.File)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	body := &progressReader{r: resp.Body, total: resp.ContentLength, progress: progress}
	n, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("download of %d failed after %d bytes: %w", item.ID(), n, err)
	}
	if err := os.Rename(tmpName, item.File); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move download into %s: %w", item.File, err)
	}

	progress(100)
	h.logger.Debug("download complete", "transfer_id", item.ID(), "bytes", n)
	return nil
}

// progressReader reports percentages as bytes pass through. Unknown totals
// report nothing until the transfer ends.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.progress(percent)
		}
	}
	return n, err
}
