package approval

import "github.com/flipsync/flipsync/core"

var errNotFound = core.ErrNotFound
