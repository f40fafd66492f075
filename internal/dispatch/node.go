package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/statetree/internal/reducer"
)

// Steps is the erased view of a reducer.Registration that a Node folds with.
// *reducer.Registration[S] implements it for every S.
type Steps interface {
	Handles(action any) bool
	HasEffects() bool
	ReduceAny(ctx context.Context, state any, action any) (any, []error, error)
	EffectAny(ctx context.Context, state any, action any) error
	Freeze()
	StateType() string
}

// Outcome is the result of folding one action through a node.
type Outcome struct {
	// State is the parent-shaped state after the fold.
	State any

	// Errors are validation errors reported by reducers of this node and its
	// descendants, in fold order.
	Errors []error
}

// projection is the erased (key selector, getter, setter) triple.
type projection struct {
	key func(action any) (any, bool)
	get func(parent any, key any) (any, bool, error)
	set func(ctx context.Context, parent any, key any, sub any) (any, error)
}

// Node is one level of the dispatcher tree.
//
// INVARIANTS:
//   - children order never changes once appended
//   - no child is attached after Freeze
//   - a node is stateless between dispatches
type Node struct {
	name   string
	path   string
	steps  Steps
	proj   *projection
	logger *slog.Logger

	mu       sync.RWMutex
	children []*Node
	frozen   atomic.Bool
	registry any // the typed *reducer.Registration, for RegistrationOf
}

// Option configures a Node at construction.
type Option func(*Node)

// WithLogger sets the node's logger. Attached children inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithName sets the node's name, used in its path for logs and errors.
func WithName(name string) Option {
	return func(n *Node) {
		if name != "" {
			n.name = name
		}
	}
}

// NewRoot creates a projection-less node whose state is the whole state.
// A nil registration is replaced by a fresh one.
func NewRoot[S any](reg *reducer.Registration[S], opts ...Option) *Node {
	if reg == nil {
		reg = reducer.NewRegistration[S]()
	}
	n := &Node{
		name:     "root",
		steps:    reg,
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.path = n.name
	return n
}

// Attach grows the tree by one child of parent, scoped to the sub-state the
// projection selects. A nil registration is replaced by a fresh one, which
// RegistrationOf returns.
//
// Returns ErrTreeFrozen once the tree has started dispatching.
func Attach[P, C, K any](parent *Node, proj Projection[P, C, K], reg *reducer.Registration[C], opts ...Option) (*Node, error) {
	if parent == nil {
		return nil, errors.New("dispatch: attach to nil parent")
	}
	if err := proj.validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = reducer.NewRegistration[C]()
	}

	child := &Node{
		name:     reg.StateType(),
		steps:    reg,
		registry: reg,
		proj:     proj.erase(),
		logger:   parent.logger,
	}
	for _, opt := range opts {
		opt(child)
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.frozen.Load() {
		return nil, fmt.Errorf("%w: attach %s under %s", ErrTreeFrozen, child.name, parent.path)
	}
	child.path = parent.path + "/" + child.name
	parent.children = append(parent.children, child)
	return child, nil
}

// RegistrationOf returns the typed registration of n.
func RegistrationOf[S any](n *Node) (*reducer.Registration[S], bool) {
	reg, ok := n.registry.(*reducer.Registration[S])
	return reg, ok
}

// Path returns the slash-separated path of the node from the root.
func (n *Node) Path() string {
	return n.path
}

// Children returns the child nodes in attach order.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Freeze stops growth of the subtree rooted at n and freezes every
// registration in it. Idempotent.
func (n *Node) Freeze() {
	n.mu.Lock()
	n.frozen.Store(true)
	children := n.children
	n.mu.Unlock()

	n.steps.Freeze()
	for _, child := range children {
		child.Freeze()
	}
}

// Frozen reports whether Freeze has been called on n.
func (n *Node) Frozen() bool {
	return n.frozen.Load()
}

// Dispatch folds action into state and returns the parent-shaped result.
//
// A projection miss returns state unchanged with no error. A transform
// failure returns the input state and a *StepError; validation errors
// collected up to the failure are still reported.
func (n *Node) Dispatch(ctx context.Context, state any, action any) (Outcome, error) {
	tag := reducer.TagOf(action)
	current := state
	var key any

	if n.proj != nil {
		k, ok := n.proj.key(action)
		if !ok {
			n.logger.Debug("projection miss: no key", "node", n.path, "action", tag)
			return Outcome{State: state}, nil
		}
		sub, found, err := n.proj.get(state, k)
		if err != nil {
			return Outcome{State: state}, n.fail(ErrCodeStateType, tag, err)
		}
		if !found {
			n.logger.Debug("projection miss: no sub-state", "node", n.path, "action", tag, "key", k)
			return Outcome{State: state}, nil
		}
		key, current = k, sub
		n.logger.Debug("sub-state selected", "node", n.path, "action", tag, "key", k)
	}

	var errs []error
	for _, child := range n.Children() {
		out, err := child.Dispatch(ctx, current, action)
		errs = append(errs, out.Errors...)
		if err != nil {
			return Outcome{State: state, Errors: errs}, err
		}
		current = out.State
	}

	hasEffects := n.steps.HasEffects()
	if n.steps.Handles(action) || hasEffects {
		next, verrs, err := n.steps.ReduceAny(ctx, current, action)
		errs = append(errs, verrs...)
		if err != nil {
			return Outcome{State: state, Errors: errs}, n.fail(codeFor(err, ErrCodeReducerFailed), tag, err)
		}
		current = next
	} else {
		n.logger.Debug("no reducer for action", "node", n.path, "action", tag)
	}

	if hasEffects {
		if err := n.steps.EffectAny(ctx, current, action); err != nil {
			return Outcome{State: state, Errors: errs}, n.fail(codeFor(err, ErrCodeEffectFailed), tag, err)
		}
	}

	if n.proj == nil {
		return Outcome{State: current, Errors: errs}, nil
	}

	merged, err := n.proj.set(ctx, state, key, current)
	if err != nil {
		return Outcome{State: state, Errors: errs}, n.fail(codeFor(err, ErrCodeSetterFailed), tag, err)
	}
	n.logger.Debug("sub-state reintegrated", "node", n.path, "action", tag, "key", key)
	return Outcome{State: merged, Errors: errs}, nil
}

// Fold is the typed entry point of Dispatch for a node whose parent-shaped
// state is S (the root, for a store).
func Fold[S any](ctx context.Context, n *Node, state S, action any) (reducer.Result[S], error) {
	out, err := n.Dispatch(ctx, state, action)
	typed, ok := out.State.(S)
	if !ok {
		typed = state
		if err == nil {
			err = n.fail(ErrCodeStateType, reducer.TagOf(action),
				fmt.Errorf("%w: want %s, got %T", reducer.ErrStateType, typeName[S](), out.State))
		}
	}
	return reducer.Result[S]{State: typed, Errors: out.Errors}, err
}

func (n *Node) fail(code StepErrorCode, tag string, err error) error {
	n.logger.Debug("step failed", "node", n.path, "action", tag, "code", code, "error", err)
	return &StepError{Code: code, Node: n.path, Tag: tag, Err: err}
}

func codeFor(err error, fallback StepErrorCode) StepErrorCode {
	if errors.Is(err, reducer.ErrStateType) {
		return ErrCodeStateType
	}
	return fallback
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", &zero)[1:]
}
