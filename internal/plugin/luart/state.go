// Package luart runs Lua plugin code units on gopher-lua. Each plugin
// gets its own interpreter state, so a broken plugin cannot corrupt its
// neighbors.
package luart

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps one gopher-lua interpreter. LState is not goroutine-safe;
// the mutex serializes all calls into it, including hook dispatch racing
// a hot reload.
type State struct {
	mu     sync.Mutex
	l      *lua.LState
	closed bool
}

// NewState creates a Lua state with the base, table, string and math
// libraries. io, os, debug and package stay closed so plugin code cannot
// reach the filesystem or process.
func NewState() *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
	return &State{l: l}
}

// DoFile executes a Lua source file in this state.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovered(func() error { return s.l.DoFile(path) })
}

// Global returns the named global, or nil for missing values.
func (s *State) Global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lua.LNil
	}
	return s.l.GetGlobal(name)
}

// Fn returns the named global when it is a function. The error
// distinguishes a missing global (nil, nil) from a non-callable one.
func (s *State) Fn(name string) (*lua.LFunction, error) {
	v := s.Global(name)
	if v == lua.LNil {
		return nil, nil
	}
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFunction, name, v.Type())
	}
	return fn, nil
}

// Call invokes a Lua function value with the given arguments and returns
// everything it returned. Lua panics surface as errors.
func (s *State) Call(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStateClosed
	}

	top := s.l.GetTop()
	s.l.Push(fn)
	for _, arg := range args {
		s.l.Push(arg)
	}

	err := s.recovered(func() error {
		return s.l.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		s.l.SetTop(top)
		return nil, err
	}

	n := s.l.GetTop() - top
	if n <= 0 {
		return nil, nil
	}
	out := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		out[i] = s.l.Get(top + i + 1)
	}
	s.l.Pop(n)
	return out, nil
}

// CallGlobal invokes a global function by name.
func (s *State) CallGlobal(name string, args ...lua.LValue) ([]lua.LValue, error) {
	fn, err := s.Fn(name)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return s.Call(fn, args...)
}

// LState exposes the underlying interpreter for value construction.
func (s *State) LState() *lua.LState { return s.l }

// Close shuts the interpreter down. Safe to call twice.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.l.Close()
	return nil
}

func (s *State) recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
