package kit

import "errors"

var errPanic = errors.New("internal error")

// ErrBadRequest marks errors caused by the caller's input.
var ErrBadRequest = errors.New("bad request")
