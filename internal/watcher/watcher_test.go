package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/clarvfs/internal/config"
)

func newTestWatcher(t *testing.T) (*Watcher, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()

	w, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w, cfg
}

func TestHandleEvent_Filters(t *testing.T) {
	w, cfg := newTestWatcher(t)

	var got []Event
	w.OnChange(func(e Event) { got = append(got, e) })

	clar := filepath.Join(cfg.Root, "a.clar")
	w.handleEvent(fsnotify.Event{Name: clar, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(cfg.Root, "README.md"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(cfg.Root, ".git"), Op: fsnotify.Create})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(cfg.Root, "Clarinet.toml"), Op: fsnotify.Remove})
	w.handleEvent(fsnotify.Event{Name: clar, Op: fsnotify.Chmod})

	require.Len(t, got, 2)
	assert.Equal(t, EventWrite, got[0].Type)
	assert.Equal(t, filepath.ToSlash(clar), got[0].Path)
	assert.Equal(t, EventRemove, got[1].Type)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "create", EventCreate.String())
	assert.Equal(t, "update", EventWrite.String())
	assert.Equal(t, "remove", EventRemove.String())
	assert.Equal(t, "rename", EventRename.String())
}

func TestWatcher_Start(t *testing.T) {
	w, cfg := newTestWatcher(t)

	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	require.NoError(t, w.Start())

	target := filepath.Join(cfg.Root, "counter.clar")
	require.NoError(t, os.WriteFile(target, []byte("(ok u1)"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, filepath.ToSlash(target), e.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}
}
