package tsreplay

import "github.com/asticode/go-astikit"

// Right now we use a package-level logger because it feels weird to inject
// a logger into the pacing loop's hot path through every call. The logger
// only needs to tell the operator about drift corrections, probe failures
// and ring overflows.
var logger = astikit.AdaptStdLogger(nil)

// SetLogger overrides the package-level logger. Pass nil to silence logging.
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
