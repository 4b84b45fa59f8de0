package dataset

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/spf13/cast"
)

// flatten converts the nested slices returned by the NetCDF reader, such as
// [][][]float32 or []int16, into a flat float64 slice and the slab shape.
// Scalars produce a single value and an empty shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, nil, err
		}
		return []float64{f}, nil, nil
	}
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; t = t.Index(0) {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
	}
	out := make([]float64, 0, product(shape))
	var walk func(x reflect.Value) error
	walk = func(x reflect.Value) error {
		if x.Kind() != reflect.Slice {
			return fmt.Errorf("ragged array of %s", rv.Type())
		}
		if x.Type().Elem().Kind() != reflect.Slice {
			var err error
			out, err = appendLeaf(out, x)
			return err
		}
		for i := 0; i < x.Len(); i++ {
			if err := walk(x.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	if len(out) != cap(out) {
		return nil, nil, fmt.Errorf("ragged array of %s", rv.Type())
	}
	return out, shape, nil
}

// appendLeaf appends the numbers of a one dimensional slice to out.
func appendLeaf(out []float64, x reflect.Value) ([]float64, error) {
	switch leaf := x.Interface().(type) {
	case []float32:
		for _, v := range leaf {
			out = append(out, float64(v))
		}
	case []float64:
		out = append(out, leaf...)
	case []int16:
		for _, v := range leaf {
			out = append(out, float64(v))
		}
	case []int32:
		for _, v := range leaf {
			out = append(out, float64(v))
		}
	default:
		for i := 0; i < x.Len(); i++ {
			e := x.Index(i)
			switch e.Kind() {
			case reflect.Float32, reflect.Float64:
				out = append(out, e.Float())
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				out = append(out, float64(e.Int()))
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				out = append(out, float64(e.Uint()))
			default:
				return nil, fmt.Errorf("non-numeric values of type %s", x.Type())
			}
		}
	}
	return out, nil
}

// attrString returns a text attribute.
func attrString(am api.AttributeMap, key string) (string, bool) {
	if am == nil {
		return "", false
	}
	v, ok := am.Get(key)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// attrFloats returns a numeric attribute, which may hold one or more values.
func attrFloats(am api.AttributeMap, key string) ([]float64, bool) {
	if am == nil {
		return nil, false
	}
	v, ok := am.Get(key)
	if !ok {
		return nil, false
	}
	f, _, err := flatten(v)
	if err != nil {
		return nil, false
	}
	return f, true
}
