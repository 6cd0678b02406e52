package devserver

import (
	"errors"
	"sync"

	"github.com/wolfeidau/extpack/internal/assets"
)

// buildStatus tracks the outcome of the last build for the error overlay.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
}

func (bs *buildStatus) setError(err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
}

func (bs *buildStatus) setSuccess() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = nil
	bs.hasGoodBuild = true
}

func (bs *buildStatus) get() (err error, hasGoodBuild bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.hasGoodBuild
}

// messages returns the lines shown in the overlay for err.
func messages(err error) []string {
	var buildErr *assets.BuildError
	if errors.As(err, &buildErr) && len(buildErr.Messages) > 0 {
		return buildErr.Messages
	}
	return []string{err.Error()}
}
