package reducer

import (
	"context"
	"fmt"
)

// Kind distinguishes the synchronous and asynchronous step variants.
type Kind int

const (
	// KindSync is a plain function step that cannot fail.
	KindSync Kind = iota + 1
	// KindAsync is a context-aware step that may fail with an error.
	KindAsync
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tagger is implemented by actions that name themselves.
// Dynamic actions (decoded from YAML or JSON) use this to carry their type.
type Tagger interface {
	ActionTag() string
}

// TagOf returns the tag of an action: its ActionTag when it implements
// Tagger, otherwise its dynamic Go type name.
func TagOf(action any) string {
	if t, ok := action.(Tagger); ok {
		return t.ActionTag()
	}
	return fmt.Sprintf("%T", action)
}

// Result is the structured outcome of a reducer: the new state and the
// validation errors found while producing it.
type Result[S any] struct {
	State  S
	Errors []error
}

// Ok wraps a state with no validation errors.
func Ok[S any](state S) Result[S] {
	return Result[S]{State: state}
}

// Reducer is one transform step of a Registration.
//
// Exactly one of sync or async is set, selected by Kind.
type Reducer[S any] struct {
	Kind Kind
	Tag  string

	match func(action any) bool
	sync  func(S, any) Result[S]
	async func(context.Context, S, any) (Result[S], error)
}

// Matches reports whether the reducer applies to the action.
func (r Reducer[S]) Matches(action any) bool {
	return r.match(action)
}

// Apply runs the reducer against state.
// A returned error is a transform failure; Result.Errors are validation errors.
func (r Reducer[S]) Apply(ctx context.Context, state S, action any) (Result[S], error) {
	switch r.Kind {
	case KindSync:
		return r.sync(state, action), nil
	case KindAsync:
		return r.async(ctx, state, action)
	default:
		return Result[S]{State: state}, fmt.Errorf("reducer %s: unknown kind %s", r.Tag, r.Kind)
	}
}

// Effect is one post-reduce step of a Registration.
type Effect[S any] struct {
	Kind Kind

	sync  func(S, any)
	async func(context.Context, S, any) error
}

// Run invokes the effect with the settled sub-state.
func (e Effect[S]) Run(ctx context.Context, state S, action any) error {
	switch e.Kind {
	case KindSync:
		e.sync(state, action)
		return nil
	case KindAsync:
		return e.async(ctx, state, action)
	default:
		return fmt.Errorf("effect: unknown kind %s", e.Kind)
	}
}
