package reducer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrFrozen is the panic value raised when a step is appended to a
// Registration that a store has already started folding with.
var ErrFrozen = errors.New("reducer: registration is frozen")

// ErrStateType is returned when an erased state does not hold the
// registration's state type.
var ErrStateType = errors.New("reducer: state type mismatch")

// Registration is the ordered, append-only list of reducers and effects for
// one state type.
//
// Thread-safety model:
//   - appends: safe from any goroutine until Freeze
//   - Reduce/Effect and introspection: safe from any goroutine
type Registration[S any] struct {
	mu       sync.RWMutex
	reducers []Reducer[S]
	effects  []Effect[S]
	frozen   atomic.Bool
}

// NewRegistration creates an empty registration.
func NewRegistration[S any]() *Registration[S] {
	return &Registration[S]{}
}

// On appends a reducer for actions of type A.
//
// fn runs while the store is mid-fold. It must not call the store's
// Dispatch or Submit, which would wait on the fold that is running fn; use
// the store's Post, or OnAsync and pass its context on.
func On[A, S any](r *Registration[S], fn func(S, A) S) *Registration[S] {
	return OnResult(r, func(s S, a A) Result[S] { return Ok(fn(s, a)) })
}

// OnErrors appends a reducer for actions of type A that reports validation
// errors alongside its new state.
func OnErrors[A, S any](r *Registration[S], fn func(S, A) (S, []error)) *Registration[S] {
	return OnResult(r, func(s S, a A) Result[S] {
		next, errs := fn(s, a)
		return Result[S]{State: next, Errors: errs}
	})
}

// OnResult appends a reducer for actions of type A returning a Result.
func OnResult[A, S any](r *Registration[S], fn func(S, A) Result[S]) *Registration[S] {
	r.appendReducer(Reducer[S]{
		Kind:  KindSync,
		Tag:   typeTag[A](),
		match: isA[A],
		sync: func(s S, action any) Result[S] {
			return fn(s, action.(A))
		},
	})
	return r
}

// OnAsync appends a context-aware reducer for actions of type A.
// A non-nil error aborts the fold of the action.
func OnAsync[A, S any](r *Registration[S], fn func(context.Context, S, A) (S, error)) *Registration[S] {
	return OnAsyncResult(r, func(ctx context.Context, s S, a A) (Result[S], error) {
		next, err := fn(ctx, s, a)
		if err != nil {
			return Result[S]{State: s}, err
		}
		return Ok(next), nil
	})
}

// OnAsyncResult appends a context-aware reducer for actions of type A
// returning a Result.
func OnAsyncResult[A, S any](r *Registration[S], fn func(context.Context, S, A) (Result[S], error)) *Registration[S] {
	r.appendReducer(Reducer[S]{
		Kind:  KindAsync,
		Tag:   typeTag[A](),
		match: isA[A],
		async: func(ctx context.Context, s S, action any) (Result[S], error) {
			return fn(ctx, s, action.(A))
		},
	})
	return r
}

// OnTag appends a reducer for actions whose TagOf equals tag.
func OnTag[S any](r *Registration[S], tag string, fn func(S, any) S) *Registration[S] {
	return OnTagResult(r, tag, func(s S, a any) Result[S] { return Ok(fn(s, a)) })
}

// OnTagResult appends a reducer for actions whose TagOf equals tag,
// returning a Result.
func OnTagResult[S any](r *Registration[S], tag string, fn func(S, any) Result[S]) *Registration[S] {
	r.appendReducer(Reducer[S]{
		Kind:  KindSync,
		Tag:   tag,
		match: func(action any) bool { return TagOf(action) == tag },
		sync:  fn,
	})
	return r
}

// OnTagAsyncResult appends a context-aware reducer for actions whose TagOf
// equals tag. A non-nil error aborts the fold of the action.
func OnTagAsyncResult[S any](r *Registration[S], tag string, fn func(context.Context, S, any) (Result[S], error)) *Registration[S] {
	r.appendReducer(Reducer[S]{
		Kind:  KindAsync,
		Tag:   tag,
		match: func(action any) bool { return TagOf(action) == tag },
		async: fn,
	})
	return r
}

// OnChange appends a synchronous effect.
// Effects see every action that reaches this registration's node.
// Like On, fn may re-dispatch only through the store's Post.
func (r *Registration[S]) OnChange(fn func(S, any)) *Registration[S] {
	r.appendEffect(Effect[S]{Kind: KindSync, sync: fn})
	return r
}

// OnChangeAsync appends a context-aware effect.
// A non-nil error aborts the fold of the action.
func (r *Registration[S]) OnChangeAsync(fn func(context.Context, S, any) error) *Registration[S] {
	r.appendEffect(Effect[S]{Kind: KindAsync, async: fn})
	return r
}

func (r *Registration[S]) appendReducer(red Reducer[S]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		panic(fmt.Errorf("%w: reducer %s", ErrFrozen, red.Tag))
	}
	r.reducers = append(r.reducers, red)
}

func (r *Registration[S]) appendEffect(eff Effect[S]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		panic(fmt.Errorf("%w: effect", ErrFrozen))
	}
	r.effects = append(r.effects, eff)
}

// Freeze stops further appends. Idempotent.
func (r *Registration[S]) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registration[S]) Frozen() bool {
	return r.frozen.Load()
}

// Reducers returns a copy of the reducers in registration order.
func (r *Registration[S]) Reducers() []Reducer[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Reducer[S], len(r.reducers))
	copy(out, r.reducers)
	return out
}

// Effects returns a copy of the effects in registration order.
func (r *Registration[S]) Effects() []Effect[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Effect[S], len(r.effects))
	copy(out, r.effects)
	return out
}

// Handles reports whether any reducer matches the action.
func (r *Registration[S]) Handles(action any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, red := range r.reducers {
		if red.Matches(action) {
			return true
		}
	}
	return false
}

// HasEffects reports whether any effect is registered.
func (r *Registration[S]) HasEffects() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.effects) > 0
}

// Reduce folds the action through every matching reducer in order.
//
// On a transform failure the partially reduced result is returned together
// with the error; the caller decides whether to keep it.
func (r *Registration[S]) Reduce(ctx context.Context, state S, action any) (Result[S], error) {
	out := Result[S]{State: state}
	for i, red := range r.Reducers() {
		if !red.Matches(action) {
			continue
		}
		res, err := red.Apply(ctx, out.State, action)
		if err != nil {
			return out, fmt.Errorf("reducer[%d] %s: %w", i, red.Tag, err)
		}
		out.State = res.State
		out.Errors = append(out.Errors, res.Errors...)
	}
	return out, nil
}

// Effect runs every effect in order against state.
// The first failing effect stops the remaining ones.
func (r *Registration[S]) Effect(ctx context.Context, state S, action any) error {
	for i, eff := range r.Effects() {
		if err := eff.Run(ctx, state, action); err != nil {
			return fmt.Errorf("effect[%d]: %w", i, err)
		}
	}
	return nil
}

// ReduceAny is Reduce over an erased state. It is the entry point the
// dispatcher tree uses to chain heterogeneous state types.
func (r *Registration[S]) ReduceAny(ctx context.Context, state any, action any) (any, []error, error) {
	typed, err := assertState[S](state)
	if err != nil {
		return state, nil, err
	}
	res, err := r.Reduce(ctx, typed, action)
	return res.State, res.Errors, err
}

// EffectAny is Effect over an erased state.
func (r *Registration[S]) EffectAny(ctx context.Context, state any, action any) error {
	typed, err := assertState[S](state)
	if err != nil {
		return err
	}
	return r.Effect(ctx, typed, action)
}

// StateType names S for logs.
func (r *Registration[S]) StateType() string {
	return typeTag[S]()
}

func assertState[S any](state any) (S, error) {
	typed, ok := state.(S)
	if !ok {
		var zero S
		return zero, fmt.Errorf("%w: want %s, got %T", ErrStateType, typeTag[S](), state)
	}
	return typed, nil
}

func isA[A any](action any) bool {
	_, ok := action.(A)
	return ok
}

func typeTag[T any]() string {
	var zero T
	return fmt.Sprintf("%T", &zero)[1:]
}
