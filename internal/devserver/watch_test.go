package devserver

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreEvent(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{path: "src/popup/index.tsx", expected: false},
		{path: "src/popup/.index.tsx.swp", expected: true},
		{path: "src/popup/index.tsx~", expected: true},
		{path: "src/popup/#index.tsx#", expected: true},
		{path: "public/.DS_Store", expected: true},
		{path: "public/Thumbs.db", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, shouldIgnoreEvent(tt.path))
		})
	}
}

func TestWatcher_handle(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	out := filepath.Join(root, "src", "build")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "popup"), 0o755))
	require.NoError(t, os.MkdirAll(out, 0o755))
	pkg := filepath.Join(root, "package.json")

	w, err := newWatcher([]string{src, filepath.Join(root, "missing")}, []string{pkg}, out)
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.handle(fsnotify.Event{Name: filepath.Join(src, "popup", "index.tsx"), Op: fsnotify.Write}))
	assert.True(t, w.handle(fsnotify.Event{Name: pkg, Op: fsnotify.Write}))
	assert.False(t, w.handle(fsnotify.Event{Name: filepath.Join(root, "README.md"), Op: fsnotify.Write}))
	assert.False(t, w.handle(fsnotify.Event{Name: filepath.Join(out, "js", "popup.js"), Op: fsnotify.Write}))

	newDir := filepath.Join(src, "options")
	require.NoError(t, os.Mkdir(newDir, 0o755))
	assert.True(t, w.handle(fsnotify.Event{Name: newDir, Op: fsnotify.Create}))
	assert.True(t, w.trees[newDir])
	assert.False(t, w.trees[out])
}

func TestDebouncer(t *testing.T) {
	var calls atomic.Int32
	trigger := debouncer(30*time.Millisecond, func() { calls.Add(1) })

	for range 5 {
		trigger()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
