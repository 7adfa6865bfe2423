package path

import "errors"

// ErrInvalidPath is returned when a path or hop string fails to parse.
var ErrInvalidPath = errors.New("invalid path")

// ErrProgrammingViolation marks a panic raised over a broken internal
// invariant (a malformed hop passed to SearchHop, an attempt to clobber an
// already-resolved hop) rather than a parse failure — the Go analogue of
// the original's assert-then-abort policy.
var ErrProgrammingViolation = errors.New("path: programming violation")
