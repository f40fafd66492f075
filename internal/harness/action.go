package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// Action is the dynamic action type scenarios dispatch. Reducers and
// effects match on Type through reducer.TagOf.
type Action struct {
	Type string    `json:"type"`
	Args ir.Object `json:"args"`
}

// ActionTag implements reducer.Tagger.
func (a Action) ActionTag() string {
	return a.Type
}

// NewAction converts an ActionStep into an Action.
func NewAction(step ActionStep) (Action, error) {
	args, err := ir.FromNativeObject(step.Args)
	if err != nil {
		return Action{}, fmt.Errorf("action %s: args: %w", step.Type, err)
	}
	return Action{Type: step.Type, Args: args}, nil
}

// templateRef matches ${action.<arg>} references.
var templateRef = regexp.MustCompile(`\$\{action\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand substitutes ${action.<arg>} references in every string of v.
//
// A string that is exactly one reference takes the argument's value with
// its own kind, so "${action.count}" can set an integer. References
// embedded in longer strings are interpolated as text.
func expand(v ir.Value, args ir.Object) (ir.Value, error) {
	switch val := v.(type) {
	case ir.String:
		return expandString(string(val), args)
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			conv, err := expand(elem, args)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case ir.Object:
		out := make(ir.Object, len(val))
		for k, elem := range val {
			conv, err := expand(elem, args)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}

func expandString(s string, args ir.Object) (ir.Value, error) {
	if m := templateRef.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		name := s[m[2]:m[3]]
		arg, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("template %s: missing argument %q", s, name)
		}
		return arg, nil
	}

	var missing string
	out := templateRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := templateRef.FindStringSubmatch(ref)[1]
		arg, ok := args[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return render(arg)
	})
	if missing != "" {
		return nil, fmt.Errorf("template %s: missing argument %q", s, missing)
	}
	return ir.String(out), nil
}

// expandText is expand for fields that must stay text, like error messages.
func expandText(s string, args ir.Object) (string, error) {
	v, err := expandString(s, args)
	if err != nil {
		return "", err
	}
	return render(v), nil
}

// render formats a value for interpolation into text.
func render(v ir.Value) string {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Int:
		return strconv.FormatInt(int64(val), 10)
	case ir.Bool:
		return strconv.FormatBool(bool(val))
	case ir.Null, nil:
		return "null"
	default:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// keyOf reads a projection key from an action argument. Only strings and
// integers address collection entries.
func keyOf(action any, arg string) (string, bool) {
	a, ok := asAction(action)
	if !ok {
		return "", false
	}
	switch v := a.Args[arg].(type) {
	case ir.String:
		return string(v), true
	case ir.Int:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}

func asAction(action any) (Action, bool) {
	switch a := action.(type) {
	case Action:
		return a, true
	case *Action:
		if a == nil {
			return Action{}, false
		}
		return *a, true
	default:
		return Action{}, false
	}
}

// describe is the one-line form of an action used in assertion output.
func describe(tag string, args ir.Object) string {
	if len(args) == 0 {
		return tag
	}
	parts := make([]string, 0, len(args))
	for _, k := range args.SortedKeys() {
		parts = append(parts, k+"="+render(args[k]))
	}
	return tag + " " + strings.Join(parts, " ")
}
