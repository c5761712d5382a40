package luart

import "errors"

var (
	// ErrStateClosed is returned when calling into a closed Lua state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotFunction is returned when a probed global exists but is not
	// callable.
	ErrNotFunction = errors.New("global is not a function")
)
