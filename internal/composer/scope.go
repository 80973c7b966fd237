package composer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// scope is one level of the lookup chain: a loop element or block value
// shadows the scopes that enclose it.
type scope struct {
	value  any
	parent *scope
}

func (s *scope) child(value any) *scope {
	return &scope{value: value, parent: s}
}

func (s *scope) lookup(name string) (any, bool) {
	if name == "." {
		return s.value, true
	}
	parts := strings.Split(name, ".")
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := walk(sc.value, parts); ok {
			return v, true
		}
	}
	return nil, false
}

func walk(v any, parts []string) (any, bool) {
	for _, part := range parts {
		if m, ok := v.(map[string]any); ok {
			next, found := m[part]
			if !found {
				return nil, false
			}
			v = next
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(part).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		v = mv.Interface()
	}
	return v, true
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
