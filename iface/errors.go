package iface

import "errors"

// ErrInvalidInterface is returned when an interface field fails to parse.
var ErrInvalidInterface = errors.New("invalid interface")
