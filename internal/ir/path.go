package ir

import (
	"fmt"
	"strings"
)

// SplitPath splits a dotted path such as "items.pending" into segments.
// The empty path has no segments and addresses the object itself.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup returns the value at path inside obj.
func Lookup(obj Object, path []string) (Value, bool) {
	var cur Value = obj
	for _, seg := range path {
		o, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		cur, ok = o[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// With returns a copy of obj with the value at path replaced by v.
// Intermediate objects are created as needed; obj itself is not modified
// and only the objects along path are copied.
func With(obj Object, path []string, v Value) (Object, error) {
	if len(path) == 0 {
		o, ok := v.(Object)
		if !ok {
			return nil, fmt.Errorf("cannot replace root object with %s", KindOf(v))
		}
		return o, nil
	}

	out := make(Object, len(obj)+1)
	for k, val := range obj {
		out[k] = val
	}

	head, rest := path[0], path[1:]
	if len(rest) == 0 {
		out[head] = v
		return out, nil
	}

	var child Object
	switch existing := obj[head].(type) {
	case nil:
		child = Object{}
	case Object:
		child = existing
	default:
		return nil, fmt.Errorf("%s: cannot descend into %s", head, KindOf(existing))
	}

	next, err := With(child, rest, v)
	if err != nil {
		return nil, fmt.Errorf("%s.%w", head, err)
	}
	out[head] = next
	return out, nil
}

// Without returns a copy of obj with the key at path removed. Removing a
// missing key is not an error.
func Without(obj Object, path []string) (Object, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("cannot remove the root object")
	}

	head, rest := path[0], path[1:]
	if len(rest) == 0 {
		if _, ok := obj[head]; !ok {
			return obj, nil
		}
		out := make(Object, len(obj))
		for k, val := range obj {
			if k != head {
				out[k] = val
			}
		}
		return out, nil
	}

	child, ok := obj[head].(Object)
	if !ok {
		return obj, nil
	}
	next, err := Without(child, rest)
	if err != nil {
		return nil, err
	}
	out := make(Object, len(obj))
	for k, val := range obj {
		out[k] = val
	}
	out[head] = next
	return out, nil
}
