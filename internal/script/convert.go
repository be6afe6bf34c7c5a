package script

import (
	"fmt"
	"math"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/tatianab/storyloop/internal/story"
)

// tableToMap reads the string keys of the table at index. Other keys are
// ignored.
func tableToMap(l *lua.State, index int) map[string]any {
	output := map[string]any{}
	if l.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			output[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return output
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil
	}
}

// tableToGo returns a slice for sequences (keys 1..n) and a map otherwise.
// An empty table becomes an empty map.
func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, luaToGo(l, -1))
			l.Pop(1)
		}
		return result
	}
	return tableToMap(l, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && math.Abs(value) < 1<<53 {
		return int(value)
	}
	return value
}

// goToLua pushes v. Values decoded from JSON and values set by stories are
// covered; anything else is pushed as its string form.
func goToLua(l *lua.State, v any) {
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case string:
		l.PushString(v)
	case int:
		l.PushInteger(v)
	case int64:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case []any:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			goToLua(l, item)
			l.RawSetInt(-2, i+1)
		}
	case []string:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			l.PushString(item)
			l.RawSetInt(-2, i+1)
		}
	case story.Record:
		pushMap(l, v)
	case map[string]any:
		pushMap(l, v)
	default:
		l.PushString(fmt.Sprint(v))
	}
}

// pushMap fills the table in key order so the Lua side sees the same table
// layout on every call.
func pushMap(l *lua.State, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l.CreateTable(0, len(m))
	for _, k := range keys {
		goToLua(l, m[k])
		l.SetField(-2, k)
	}
}
