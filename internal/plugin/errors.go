package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Plugin system errors.
var (
	// ErrUnknownPlugin is returned when a plugin id is not in the table.
	ErrUnknownPlugin = errors.New("plugin not found")

	// ErrMissingDependency is returned when a required plugin is absent
	// or failed to load.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrCircularDependency marks plugins excluded from the load order
	// because they participate in a requires cycle.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrDiscoveryConflict is returned when two plugin directories
	// declare the same id. The earlier discovery wins.
	ErrDiscoveryConflict = errors.New("duplicate plugin id")

	// ErrNoRuntime is returned when no runtime is registered for a
	// plugin's entry point scheme.
	ErrNoRuntime = errors.New("no runtime for entry point")

	// ErrMissingID is returned for descriptors without an id.
	ErrMissingID = errors.New("metadata: id is required")

	// ErrInvalidID is returned for ids that are not lowercase
	// alphanumeric with hyphens or underscores.
	ErrInvalidID = errors.New("metadata: id must be lowercase alphanumeric with hyphens")
)

// Lifecycle stage names used in StageError.
const (
	StageLoad       = "load"
	StageInitialize = "initialize"
	StageEnable     = "enable"
	StageDisable    = "disable"
	StageUnload     = "unload"
)

// StageError records a failure inside a plugin's own code at a lifecycle
// stage. It is captured on the plugin and never propagates out of the
// manager's public methods.
type StageError struct {
	Stage string
	ID    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("plugin %s: %s failed: %v", e.ID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// CycleError reports one requires cycle as the ordered list of
// participating plugin ids.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCircularDependency }
