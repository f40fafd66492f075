package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/statetree/internal/reducer"
)

// Projection connects a parent state P to the sub-state C addressed by K.
//
// Key derives the address from the action; ok=false, or a nil key when K is
// an interface type, means the action is not for this sub-tree. Get reads the sub-state; ok=false means there is nothing
// at that address. Exactly one of Set and SetAsync folds the new sub-state
// back into a new parent.
//
// Set must not mutate parent in place: the store keeps the previous state if
// a later step of the same fold fails.
type Projection[P, C, K any] struct {
	Key      func(action any) (K, bool)
	Get      func(parent P, key K) (C, bool)
	Set      func(parent P, key K, sub C) P
	SetAsync func(ctx context.Context, parent P, key K, sub C) (P, error)
}

func (p Projection[P, C, K]) validate() error {
	if p.Key == nil {
		return errors.New("dispatch: projection key selector is required")
	}
	if p.Get == nil {
		return errors.New("dispatch: projection getter is required")
	}
	if (p.Set == nil) == (p.SetAsync == nil) {
		return errors.New("dispatch: projection needs exactly one of Set or SetAsync")
	}
	return nil
}

func (p Projection[P, C, K]) erase() *projection {
	return &projection{
		key: func(action any) (any, bool) {
			k, ok := p.Key(action)
			if !ok || any(k) == nil {
				return nil, false
			}
			return k, true
		},
		get: func(parent any, key any) (any, bool, error) {
			typed, ok := parent.(P)
			if !ok {
				return nil, false, fmt.Errorf("%w: parent want %s, got %T", reducer.ErrStateType, typeName[P](), parent)
			}
			k, err := keyAs[K](key)
			if err != nil {
				return nil, false, err
			}
			sub, found := p.Get(typed, k)
			if !found {
				return nil, false, nil
			}
			return sub, true, nil
		},
		set: func(ctx context.Context, parent any, key any, sub any) (any, error) {
			typedParent, ok := parent.(P)
			if !ok {
				return parent, fmt.Errorf("%w: parent want %s, got %T", reducer.ErrStateType, typeName[P](), parent)
			}
			typedSub, ok := sub.(C)
			if !ok {
				return parent, fmt.Errorf("%w: sub-state want %s, got %T", reducer.ErrStateType, typeName[C](), sub)
			}
			k, err := keyAs[K](key)
			if err != nil {
				return parent, err
			}
			if p.SetAsync != nil {
				next, err := p.SetAsync(ctx, typedParent, k, typedSub)
				if err != nil {
					return parent, err
				}
				return next, nil
			}
			return p.Set(typedParent, k, typedSub), nil
		},
	}
}

func keyAs[K any](key any) (K, error) {
	k, ok := key.(K)
	if !ok {
		return k, fmt.Errorf("%w: key want %s, got %T", reducer.ErrStateType, typeName[K](), key)
	}
	return k, nil
}
