package rulestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/grlog"
)

func TestWatcherReloadsChangedDSLFile(t *testing.T) {
	dir := t.TempDir()
	l, store, gotActions, _ := newTestLoader()
	w := NewWatcher(dir, l, grlog.New(grlog.LevelError, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	// give fsnotify time to register the watch before the write lands.
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "invoice.dsl")
	require.NoError(t, os.WriteFile(path, []byte(validAction), 0o644))

	require.Eventually(t, func() bool {
		return len(*gotActions) == 1
	}, 2*time.Second, 10*time.Millisecond, "watcher did not pick up the new .dsl file in time")

	src, err := store.GetSource(context.Background(), "invoice.dsl")
	require.NoError(t, err)
	assert.Equal(t, validAction, src)

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestWatcherIgnoresNonDSLFiles(t *testing.T) {
	dir := t.TempDir()
	l, _, gotActions, _ := newTestLoader()
	w := NewWatcher(dir, l, grlog.New(grlog.LevelError, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("irrelevant"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, *gotActions)
}

func TestWatcherRejectsInvalidReloadWithoutCrashing(t *testing.T) {
	dir := t.TempDir()
	l, _, gotActions, _ := newTestLoader()
	w := NewWatcher(dir, l, grlog.New(grlog.LevelError, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.dsl"), []byte(invalidSource), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, *gotActions)
}
