package hook

import "github.com/google/uuid"

// Context carries the outcome of one hook dispatch: the echoed call
// arguments, the per-handler results in execution order, and the first
// handler error encountered.
type Context struct {
	// ID correlates log lines belonging to one dispatch.
	ID string

	// Hook is the dispatched hook name.
	Hook string

	// Args echoes the arguments the caller supplied.
	Args []any

	// Results holds each handler's return value in execution order.
	Results []any

	// Err is the first handler error, if any. For sequential hooks it is
	// also the reason dispatch stopped early.
	Err error
}

// NewContext creates a dispatch context for the named hook.
func NewContext(hookName string, args []any) *Context {
	return &Context{
		ID:   uuid.NewString(),
		Hook: hookName,
		Args: args,
	}
}

// AddResult appends a handler return value.
func (c *Context) AddResult(v any) {
	c.Results = append(c.Results, v)
}

// SetErr records the first handler error; later errors are ignored.
func (c *Context) SetErr(err error) {
	if c.Err == nil {
		c.Err = err
	}
}
