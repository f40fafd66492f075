package engine

import (
	"context"

	"github.com/roach88/statetree/internal/dispatch"
	"github.com/roach88/statetree/internal/reducer"
)

// SubState attaches a sub-state node of type C under the store's root.
//
// key extracts the projection key from an action (false means the action
// does not concern this sub-state), get resolves the sub-state for a key
// and set writes an updated sub-state back into a copy of the parent.
//
// reg may be nil, in which case a fresh registration is created. The
// registration in use is returned so reducers can be added to it before the
// first dispatch.
func SubState[S, C, K any](
	st *Store[S],
	key func(action any) (K, bool),
	get func(S, K) (C, bool),
	set func(S, K, C) S,
	reg *reducer.Registration[C],
	opts ...dispatch.Option,
) (*reducer.Registration[C], error) {
	return attach(st, dispatch.Projection[S, C, K]{Key: key, Get: get, Set: set}, reg, opts)
}

// SubStateAsync is SubState with a setter that may block or fail. A setter
// failure fails the whole action with SETTER_FAILED.
func SubStateAsync[S, C, K any](
	st *Store[S],
	key func(action any) (K, bool),
	get func(S, K) (C, bool),
	set func(context.Context, S, K, C) (S, error),
	reg *reducer.Registration[C],
	opts ...dispatch.Option,
) (*reducer.Registration[C], error) {
	return attach(st, dispatch.Projection[S, C, K]{Key: key, Get: get, SetAsync: set}, reg, opts)
}

func attach[S, C, K any](st *Store[S], proj dispatch.Projection[S, C, K], reg *reducer.Registration[C], opts []dispatch.Option) (*reducer.Registration[C], error) {
	if reg == nil {
		reg = reducer.NewRegistration[C]()
	}
	if _, err := dispatch.Attach(st.root, proj, reg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}
