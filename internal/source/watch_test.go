package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(page, []byte("<p>1</p>"), 0o644))

	w := NewWatcher(WatcherConfig{
		Paths:    []string{page, "https://example.com/ignored.html"},
		Debounce: 20 * time.Millisecond,
	})
	assert.Equal(t, 1, w.Len())

	changed := make(chan string, 8)
	w.OnChange(func(p string) { changed <- p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	want, err := filepath.Abs(page)
	require.NoError(t, err)

	// The watch is registered asynchronously; keep writing until seen.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(other, []byte("x"), 0o644)
		_ = os.WriteFile(page, []byte("<p>2</p>"), 0o644)
		select {
		case p := <-changed:
			return p == want
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherNothingToWatch(t *testing.T) {
	w := NewWatcher(WatcherConfig{Paths: []string{"s3://bucket/key"}})
	assert.NoError(t, w.Start(context.Background()))
}

func TestWatcherSkipsEmptyPaths(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte("<p>1</p>"), 0o644))

	w := NewWatcher(WatcherConfig{Paths: []string{page, "", "  "}})
	assert.Equal(t, 1, w.Len())

	w = NewWatcher(WatcherConfig{Paths: []string{""}})
	assert.Equal(t, 0, w.Len())
	assert.NoError(t, w.Start(context.Background()))
}
