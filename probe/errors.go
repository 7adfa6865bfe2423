package probe

import "errors"

// ErrClosed is returned by Submit once the oracle has been closed.
var ErrClosed = errors.New("probe: oracle closed")
