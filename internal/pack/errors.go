package pack

import "errors"

// ErrNoManifest is returned when the build directory has no manifest.json
// at its root.
var ErrNoManifest = errors.New("build directory has no manifest.json")
