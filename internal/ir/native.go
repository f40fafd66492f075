package ir

import (
	"encoding/json"
	"fmt"
	"math"
)

// FromNative converts a Go value into a Value.
//
// Accepted: nil, Value, string, bool, signed and unsigned integers,
// json.Number, []any, map[string]any and map[any]any with scalar keys (as
// produced by YAML decoders; integer and bool keys become strings). Any
// other type is converted through its JSON encoding, so structs with json
// tags work. Floats are rejected.
func FromNative(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUnsigned(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUnsigned(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are not allowed: %v", val)
	case json.Number:
		return convertJSON(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			var key string
			switch kv := k.(type) {
			case string:
				key = kv
			case int, int64, uint64, bool:
				key = fmt.Sprint(kv)
			default:
				return nil, fmt.Errorf("object key %v: unsupported key type %T", k, k)
			}
			conv, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			obj[key] = conv
		}
		return obj, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported type %T: %w", v, err)
		}
		conv, err := UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("%T: %w", v, err)
		}
		return conv, nil
	}
}

// FromNativeObject is FromNative for values that must be objects.
// A nil input yields an empty Object.
func FromNativeObject(v any) (Object, error) {
	if v == nil {
		return Object{}, nil
	}
	conv, err := FromNative(v)
	if err != nil {
		return nil, err
	}
	obj, ok := conv.(Object)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", KindOf(conv))
	}
	return obj, nil
}

func fromUnsigned(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", n)
	}
	return Int(n), nil
}

// ToNative converts a Value into plain Go values: nil, string, int64, bool,
// []any and map[string]any.
func ToNative(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToNative(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToNative(elem)
		}
		return out
	default:
		return nil
	}
}
