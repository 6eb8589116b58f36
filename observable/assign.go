package observable

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/golobby/cast"
)

// Assign copies the entries of data onto the exported fields of the struct
// target points to. Keys are matched against the field's json name, or the
// Go field name when the field has no json tag. Values that are not directly
// assignable are converted, going through their string form when the kinds
// differ, so "3" can populate an int and 2 can populate a string.
//
// Assign is all-or-nothing: when one entry fails nothing is written. It
// returns the assigned keys in sorted order.
func Assign(target any, data map[string]any) ([]string, error) {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, ErrTargetNotStructPointer
	}
	rv = rv.Elem()

	fields := fieldIndex(rv.Type())

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	values := make([]reflect.Value, len(keys))
	for i, key := range keys {
		idx, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		v, err := convert(data[key], rv.Field(idx).Type())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFieldConversion, key, err)
		}
		values[i] = v
	}

	for i, key := range keys {
		rv.Field(fields[key]).Set(values[i])
	}
	return keys, nil
}

func fieldIndex(t reflect.Type) map[string]int {
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		index[name] = i
	}
	return index
}

func convert(value any, to reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(to), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if v.Kind() == to.Kind() && v.Type().ConvertibleTo(to) {
		return v.Convert(to), nil
	}

	// Only scalars go through their string form; a map or a slice printed
	// with %v is not a field value.
	if !isScalar(to.Kind()) || !isScalar(v.Kind()) {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", value, to)
	}
	converted, err := cast.FromType(fmt.Sprint(value), to)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(converted).Convert(to), nil
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
