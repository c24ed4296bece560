package object

import (
	"fmt"
	"time"

	"fortio.org/safecast"
)

// FromGo converts host document data, typically decoded JSON, into a Value.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NULL, nil
	case Value:
		return v, nil
	case bool:
		return NativeBoolToBooleanObject(v), nil
	case string:
		return String{Value: v}, nil
	case float64:
		return Number{Value: v}, nil
	case float32:
		return Number{Value: float64(v)}, nil
	case int:
		return intToNumber(v)
	case int8:
		return Number{Value: float64(v)}, nil
	case int16:
		return Number{Value: float64(v)}, nil
	case int32:
		return Number{Value: float64(v)}, nil
	case int64:
		return intToNumber(v)
	case uint:
		return intToNumber(v)
	case uint8:
		return Number{Value: float64(v)}, nil
	case uint16:
		return Number{Value: float64(v)}, nil
	case uint32:
		return Number{Value: float64(v)}, nil
	case uint64:
		return intToNumber(v)
	case time.Time:
		return NewDate(v), nil
	case []any:
		elems := make([]Value, 0, len(v))
		for i, e := range v {
			o, err := FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			elems = append(elems, o)
		}
		return NewArray(elems...), nil
	case map[string]any:
		return MapFromGo(v)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MapFromGo converts the fields of a host document.
func MapFromGo(m map[string]any) (Dictionary, error) {
	d := make(Dictionary, len(m))
	for k, e := range m {
		o, err := FromGo(e)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		d[k] = o
	}
	return d, nil
}

// Integers beyond 2^53 can't be represented exactly, refuse them instead of silently rounding.
func intToNumber[T int | int64 | uint | uint64](v T) (Value, error) {
	f, err := safecast.Convert[float64](v)
	if err != nil {
		return nil, err
	}
	return Number{Value: f}, nil
}

// Unwrap returns the Go (JSON compatible) representation of a value: dates
// become their ISO string, errors their message and lambdas their source.
func Unwrap(v Value) any {
	switch v := v.(type) {
	case Number:
		return v.Value
	case String:
		return v.Value
	case Boolean:
		return v.Value
	case Date:
		return v.Value.UTC().Format(DateLayout)
	case Array:
		return UnwrapSlice(v.Elements)
	case Dictionary:
		res := make(map[string]any, len(v))
		for k, e := range v {
			res[k] = Unwrap(e)
		}
		return res
	case Null, Undefined:
		return nil
	default: // Error, Lambda
		return ToString(v)
	}
}

func UnwrapSlice(values []Value) []any {
	res := make([]any, len(values))
	for i, o := range values {
		res[i] = Unwrap(o)
	}
	return res
}
