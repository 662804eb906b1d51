package polish

import "errors"

// ErrStageDegraded is returned by a stage together with usable output when
// its expensive sub-path was skipped or failed and a cheap fallback produced
// the result. The orchestrator keeps the returned text but records the stage
// as not applied.
var ErrStageDegraded = errors.New("stage degraded to fallback path")
