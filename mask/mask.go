// Package mask redacts sensitive values from error report metadata before it
// leaves the process.
//
// Two mechanisms are combined: keys matching a configured filter list are
// replaced wholesale, and struct values are expanded field by field with
// fields tagged `mask:"true"` redacted.
package mask

import (
	"reflect"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const tagName = "mask"

// Filtered replaces every redacted value.
const Filtered = "[FILTERED]"

// Filter returns a copy of tabs in which every value whose key contains one of
// filters (case-insensitive) is replaced by Filtered. Nested maps, slices and
// structs are walked. The input is never modified.
func Filter(tabs map[string]map[string]any, filters []string) map[string]map[string]any {
	if tabs == nil {
		return nil
	}

	lowered := make([]string, 0, len(filters))
	for _, f := range filters {
		if f != "" {
			lowered = append(lowered, strings.ToLower(f))
		}
	}

	out := make(map[string]map[string]any, len(tabs))
	for tab, values := range tabs {
		filtered := make(map[string]any, len(values))
		for k, v := range values {
			filtered[k] = filterEntry(k, v, lowered)
		}
		out[tab] = filtered
	}
	return out
}

// Matches reports whether key contains one of filters, ignoring case.
func Matches(key string, filters []string) bool {
	k := strings.ToLower(key)
	for _, f := range filters {
		if f != "" && strings.Contains(k, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func filterEntry(key string, v any, filters []string) any {
	if Matches(key, filters) {
		return Filtered
	}
	return filterValue(v, filters)
}

func filterValue(v any, filters []string) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, nested := range typed {
			out[k] = filterEntry(k, nested, filters)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, nested := range typed {
			out[k] = filterEntry(k, nested, filters)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = filterValue(nested, filters)
		}
		return out
	case *orderedmap.OrderedMap[string, any]:
		return filterOrdMap(typed, filters)
	}

	if isExpandable(reflect.ValueOf(v)) {
		return filterOrdMap(StructToOrdMap(v), filters)
	}
	return v
}

func filterOrdMap(om *orderedmap.OrderedMap[string, any], filters []string) *orderedmap.OrderedMap[string, any] {
	if om == nil {
		return nil
	}
	out := orderedmap.New[string, any]()
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, filterEntry(pair.Key, pair.Value, filters))
	}
	return out
}

// StructToOrdMap returns an ordered map of the exported fields of v with
// `mask:"true"` fields replaced by Filtered. Nested structs become nested
// ordered maps, so field order survives JSON encoding.
// Field names are determined by priority: json tag > yaml tag > struct field name.
// Fields with json:"-" or yaml:"-" are excluded from the output.
func StructToOrdMap(v any) *orderedmap.OrderedMap[string, any] {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	om := orderedmap.New[string, any]()
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !fieldType.IsExported() {
			continue
		}

		name, skip := extractFieldName(fieldType)
		if skip {
			continue
		}

		switch {
		case shouldMask(fieldType):
			om.Set(name, maskField(field))
		case isExpandable(field):
			om.Set(name, StructToOrdMap(field.Interface()))
		case field.Kind() == reflect.Pointer && field.IsNil():
			om.Set(name, nil)
		default:
			om.Set(name, field.Interface())
		}
	}

	return om
}

func isExpandable(val reflect.Value) bool {
	if !val.IsValid() {
		return false
	}
	kind := val.Kind()
	if kind == reflect.Pointer {
		if val.IsNil() {
			return false
		}
		kind = val.Elem().Kind()
	}
	return kind == reflect.Struct
}

func shouldMask(field reflect.StructField) bool {
	return strings.EqualFold(field.Tag.Get(tagName), "true")
}

// maskField leaves zero values readable so an unset secret is distinguishable
// from a set one.
func maskField(val reflect.Value) any {
	switch val.Kind() { //nolint:exhaustive // remaining kinds cannot be nil
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		if val.IsNil() {
			return nil
		}
	}
	if val.IsZero() {
		return val.Interface()
	}
	return Filtered
}

// extractFieldName returns the field name and whether the field is excluded.
func extractFieldName(field reflect.StructField) (string, bool) {
	for _, tag := range []string{"json", "yaml"} {
		value, ok := field.Tag.Lookup(tag)
		if !ok {
			continue
		}
		if value == "-" {
			return "", true
		}
		if idx := strings.Index(value, ","); idx != -1 {
			value = value[:idx]
		}
		if value != "" {
			return value, false
		}
	}
	return field.Name, false
}
