package layout

import "errors"

var (
	// ErrDuplicateChunk indicates two sources resolved to the same chunk name
	ErrDuplicateChunk = errors.New("duplicate chunk name")
	// ErrEmptyChunk indicates a folder name without letters or digits
	ErrEmptyChunk = errors.New("folder name gives an empty chunk name")
)
