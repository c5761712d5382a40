// Package hook implements named extension points: declarative hook
// specifications and a registry of priority-ordered handler bindings.
// The registry only stores; execution policy lives in the plugin manager.
package hook

import (
	"context"
	"fmt"
	"strings"
)

// Spec declares the contract of one named extension point.
//
// Params is a documentation contract: parameter names in call order, not
// enforced types. Sequential selects strict ordered execution with
// short-circuit semantics; non-sequential hooks are best-effort fan-out.
type Spec struct {
	Name        string   `json:"name"        yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Params      []string `json:"params"      yaml:"params"`
	Sequential  bool     `json:"sequential"  yaml:"sequential"`
	Required    bool     `json:"required"    yaml:"required"`

	// Async marks the hook as safe for concurrent fan-out by a wrapper
	// above dispatch. Advisory only; dispatch itself is synchronous.
	Async bool `json:"async" yaml:"async"`
}

// String renders the spec as a signature, e.g. "trading.pre_order(order, account)".
func (s Spec) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(s.Params, ", "))
}

// HandlerFunc is a hook handler. It receives the arguments supplied to
// ExecuteHook. The returned value is appended to the dispatch context;
// for sequential hooks a boolean false return vetoes the remaining
// handlers.
type HandlerFunc func(ctx context.Context, args ...any) (any, error)
