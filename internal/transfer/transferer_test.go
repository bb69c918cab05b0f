package transfer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/runq/internal/platform/logger"
	"github.com/phrazzld/runq/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRecorder struct {
	mu     sync.Mutex
	values []int
}

func (p *progressRecorder) record(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressRecorder) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func itemFor(t *testing.T, dir Direction, file, url string) *Item {
	t.Helper()
	desc, err := task.NewDescriptor(1, "")
	require.NoError(t, err)
	item, err := NewItem(desc, dir, file, url, time.Now())
	require.NoError(t, err)
	return item
}

func newTestTransferer(t *testing.T) *HTTPTransferer {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	return NewHTTPTransferer(nil, log)
}

func assertMonotonicToHundred(t *testing.T, values []int) {
	t.Helper()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	assert.Equal(t, 100, values[len(values)-1])
}

func TestHTTPTransferer_Upload(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("payload-", 4096)
	var (
		mu       sync.Mutex
		received []byte
		method   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received, method = body, r.Method
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "up.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rec := &progressRecorder{}
	err := newTestTransferer(t).Transfer(context.Background(), itemFor(t, DirectionUpload, path, srv.URL+"/up.bin"), rec.record)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, content, string(received))
	assertMonotonicToHundred(t, rec.snapshot())
}

func TestHTTPTransferer_UploadFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "up.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))
	tr := newTestTransferer(t)

	err := tr.Transfer(context.Background(), itemFor(t, DirectionUpload, path, srv.URL), nil)
	assert.ErrorIs(t, err, ErrRemote)

	err = tr.Transfer(context.Background(), itemFor(t, DirectionUpload, filepath.Join(t.TempDir(), "missing"), srv.URL), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPTransferer_Download(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("0123456789", 10000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = io.WriteString(w, content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "down.txt")

	rec := &progressRecorder{}
	err := newTestTransferer(t).Transfer(context.Background(), itemFor(t, DirectionDownload, path, srv.URL), rec.record)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial files remain")
	assertMonotonicToHundred(t, rec.snapshot())
}

func TestHTTPTransferer_DownloadFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "down.txt")
	err := newTestTransferer(t).Transfer(context.Background(), itemFor(t, DirectionDownload, path, srv.URL), nil)
	assert.ErrorIs(t, err, ErrRemote)
	assert.NoFileExists(t, path)
}

func TestHTTPTransferer_DownloadCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	path := filepath.Join(t.TempDir(), "down.txt")

	err := newTestTransferer(t).Transfer(ctx, itemFor(t, DirectionDownload, path, srv.URL), func(p int) {
		if p > 0 {
			cancel()
		}
	})
	require.Error(t, err)
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
