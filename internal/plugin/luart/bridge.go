package luart

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ToGo converts a Lua value to the Go value dispatch passes around.
// Tables with contiguous 1..n integer keys become []any, everything else
// becomes map[string]any. Circular tables are cut to nil. Functions are
// not representable and convert to nil; callers that need a callable
// must keep the lua.LValue.
func ToGo(lv lua.LValue) any {
	return toGo(lv, map[*lua.LTable]bool{})
}

func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	length := 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		length++
		if kn, ok := k.(lua.LNumber); !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 {
			isArray = false
		}
	})

	if isArray && length > 0 && t.RawGetInt(length) != lua.LNil {
		arr := make([]any, length)
		for i := 1; i <= length; i++ {
			arr[i-1] = toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := map[string]any{}
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGo(v, visited)
	})
	return m
}

// FromGo converts a Go value to a Lua value in the given state.
func FromGo(l *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := l.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, FromGo(l, e))
		}
		return t
	case []string:
		t := l.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]any:
		t := l.NewTable()
		for k, e := range val {
			t.RawSetString(k, FromGo(l, e))
		}
		return t
	case map[string]string:
		t := l.NewTable()
		for k, e := range val {
			t.RawSetString(k, lua.LString(e))
		}
		return t
	case fmt.Stringer:
		return lua.LString(val.String())
	case lua.LValue:
		return val
	default:
		ud := l.NewUserData()
		ud.Value = v
		return ud
	}
}
