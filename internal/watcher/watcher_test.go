package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sensible/internal/watcher"
)

func startWatcher(t *testing.T, path string) <-chan struct{} {
	t.Helper()
	w, err := watcher.New(watcher.Config{
		Path:     path,
		Debounce: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refresh_rate: 60s"), 0o600))

	onChange := startWatcher(t, path)

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(path, []byte(fmt.Sprintf("refresh_rate: %ds", i+1)), 0o600)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	otherPath := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(otherPath, []byte("initial"), 0o600))

	onChange := startWatcher(t, path)

	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0o600))

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated files")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	onChange := startWatcher(t, path)

	tmp := filepath.Join(dir, ".config.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for rename over the watched file")
	}
}

func TestWatcher_FileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	onChange := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification when the file is created")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	w, err := watcher.New(watcher.DefaultConfig(path))
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop(), "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "nope", "config.yaml")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
	require.Contains(t, err.Error(), "watching directory")
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/etc/sensible/config.yaml")

	assert.Equal(t, "/etc/sensible/config.yaml", cfg.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
}
