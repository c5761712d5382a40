package hook

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrUnknownHook is returned when registering a handler for a hook
	// name that has no specification.
	ErrUnknownHook = errors.New("hook is not declared")

	// ErrHandlerShape is returned when a handler's declared arity does
	// not match the hook specification's parameter count.
	ErrHandlerShape = errors.New("handler arity does not match hook parameters")

	// ErrNilHandler is returned when registering a nil handler function.
	ErrNilHandler = errors.New("handler function is nil")
)

// HandlerError records a failure (error return or panic) inside a hook
// handler. It is always caught at the dispatch boundary and recorded on
// the dispatch context, never propagated to the caller.
type HandlerError struct {
	Hook    string
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hook %s: handler %s: %v", e.Hook, e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
