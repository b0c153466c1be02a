package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batch struct {
	changed []string
	removed []string
}

func startWatcher(t *testing.T, dir string, skip func(string) bool) <-chan batch {
	t.Helper()
	batches := make(chan batch, 16)
	w, err := New(Config{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		Skip:     skip,
		OnChange: func(_ context.Context, changed, removed []string) {
			batches <- batch{changed: changed, removed: removed}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func next(t *testing.T, batches <-chan batch) batch {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return batch{}
	}
}

func TestWatch_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, nil)

	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	b := next(t, batches)
	assert.Equal(t, []string{path}, b.changed)
	assert.Empty(t, b.removed)
}

func TestWatch_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, nil)

	path := filepath.Join(dir, "main.go")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("/", i)+"\npackage main\n"), 0644))
	}

	b := next(t, batches)
	assert.Equal(t, []string{path}, b.changed)

	select {
	case extra := <-batches:
		t.Fatalf("unexpected second notification: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_ReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utils.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))
	batches := startWatcher(t, dir, nil)

	require.NoError(t, os.Remove(path))

	b := next(t, batches)
	assert.Empty(t, b.changed)
	assert.Equal(t, []string{path}, b.removed)
}

func TestWatch_IgnoresUnsupportedAndSkipped(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, func(p string) bool {
		return strings.HasSuffix(p, "_gen.go")
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types_gen.go"), []byte("package main\n"), 0644))
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	b := next(t, batches)
	assert.Equal(t, []string{path}, b.changed)
}

func TestWatch_SkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0755))
	batches := startWatcher(t, dir, nil)

	require.NoError(t, os.WriteFile(filepath.Join(hidden, "x.go"), []byte("package x\n"), 0644))
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	b := next(t, batches)
	assert.Equal(t, []string{path}, b.changed)
}

func TestWatch_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, nil)

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "lib.go")
	require.NoError(t, os.WriteFile(path, []byte("package pkg\n"), 0644))

	b := next(t, batches)
	assert.Equal(t, []string{path}, b.changed)
}

func TestNew_DefaultDebounce(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer w.watcher.Close()
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.NotNil(t, w.logger)
}
