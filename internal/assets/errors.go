package assets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNotBuilt indicates outputs were requested before a successful build
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
)

// BuildError carries the formatted esbuild messages of a failed build.
type BuildError struct {
	Messages []string
}

func newBuildError(msgs []api.Message) *BuildError {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})
	for i, m := range formatted {
		formatted[i] = strings.TrimSpace(m)
	}
	return &BuildError{Messages: formatted}
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("esbuild failed with %d errors", len(e.Messages))
}

func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}
