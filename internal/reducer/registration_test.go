package reducer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	A, B string
	N    int
}

type deleteA struct{}

type setB struct{ Value string }

type named struct{ tag string }

func (n named) ActionTag() string { return n.tag }

func TestTagOf(t *testing.T) {
	assert.Equal(t, "reducer.deleteA", TagOf(deleteA{}))
	assert.Equal(t, "*reducer.setB", TagOf(&setB{}))
	assert.Equal(t, "Custom", TagOf(named{tag: "Custom"}))
}

func TestRegistration_ChainedFoldInOrder(t *testing.T) {
	reg := NewRegistration[doc]()
	On(reg, func(s doc, a setB) doc { s.B = a.Value; return s })
	On(reg, func(s doc, a setB) doc { s.B += "!"; return s })
	On(reg, func(s doc, _ deleteA) doc { s.A = ""; return s })

	res, err := reg.Reduce(context.Background(), doc{A: "a", B: "b"}, setB{Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, doc{A: "a", B: "x!"}, res.State, "all matching reducers run, each sees the previous output")
	assert.Empty(t, res.Errors)
}

func TestRegistration_NonMatchingSkipped(t *testing.T) {
	reg := NewRegistration[doc]()
	calls := 0
	On(reg, func(s doc, _ deleteA) doc { calls++; return s })

	res, err := reg.Reduce(context.Background(), doc{A: "a"}, setB{})
	require.NoError(t, err)
	assert.Equal(t, doc{A: "a"}, res.State)
	assert.Equal(t, 0, calls)
	assert.False(t, reg.Handles(setB{}))
	assert.True(t, reg.Handles(deleteA{}))
}

func TestRegistration_ValidationErrorsAccumulate(t *testing.T) {
	reg := NewRegistration[doc]()
	errFirst := errors.New("first")
	errSecond := errors.New("second")
	OnErrors(reg, func(s doc, _ deleteA) (doc, []error) { s.N++; return s, []error{errFirst} })
	OnResult(reg, func(s doc, _ deleteA) Result[doc] {
		s.N++
		return Result[doc]{State: s, Errors: []error{errSecond}}
	})

	res, err := reg.Reduce(context.Background(), doc{}, deleteA{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.N, "validation errors do not stop the fold")
	assert.Equal(t, []error{errFirst, errSecond}, res.Errors)
}

func TestRegistration_AsyncFailureStopsFold(t *testing.T) {
	reg := NewRegistration[doc]()
	boom := errors.New("boom")
	later := 0
	On(reg, func(s doc, _ deleteA) doc { s.N = 1; return s })
	OnAsync(reg, func(_ context.Context, s doc, _ deleteA) (doc, error) { return s, boom })
	On(reg, func(s doc, _ deleteA) doc { later++; return s })

	res, err := reg.Reduce(context.Background(), doc{}, deleteA{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reducer[1]")
	assert.Equal(t, 1, res.State.N, "steps before the failure are kept in the partial result")
	assert.Equal(t, 0, later)
}

func TestRegistration_AsyncReceivesContext(t *testing.T) {
	type key struct{}
	reg := NewRegistration[doc]()
	OnAsync(reg, func(ctx context.Context, s doc, a setB) (doc, error) {
		s.B = ctx.Value(key{}).(string) + a.Value
		return s, nil
	})

	ctx := context.WithValue(context.Background(), key{}, "ctx-")
	res, err := reg.Reduce(ctx, doc{}, setB{Value: "v"})
	require.NoError(t, err)
	assert.Equal(t, "ctx-v", res.State.B)
}

func TestRegistration_OnTag(t *testing.T) {
	reg := NewRegistration[doc]()
	OnTag(reg, "Bump", func(s doc, _ any) doc { s.N++; return s })

	res, err := reg.Reduce(context.Background(), doc{}, named{tag: "Bump"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.N)

	res, err = reg.Reduce(context.Background(), doc{}, named{tag: "Other"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.State.N)
}

func TestRegistration_OnTagAsyncResult(t *testing.T) {
	reg := NewRegistration[doc]()
	OnTagAsyncResult(reg, "Check", func(_ context.Context, s doc, _ any) (Result[doc], error) {
		if s.A == "" {
			return Result[doc]{State: s}, errors.New("A is unset")
		}
		s.N++
		return Result[doc]{State: s, Errors: []error{errors.New("soft")}}, nil
	})

	res, err := reg.Reduce(context.Background(), doc{A: "a"}, named{tag: "Check"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.N)
	assert.Len(t, res.Errors, 1)

	_, err = reg.Reduce(context.Background(), doc{}, named{tag: "Check"})
	assert.ErrorContains(t, err, "A is unset")
	assert.Equal(t, KindAsync, reg.Reducers()[0].Kind)
}

func TestRegistration_EffectsRunInOrder(t *testing.T) {
	reg := NewRegistration[doc]()
	var seen []string
	reg.OnChange(func(s doc, _ any) { seen = append(seen, "sync:"+s.A) }).
		OnChangeAsync(func(_ context.Context, s doc, _ any) error { seen = append(seen, "async:"+s.A); return nil })

	require.True(t, reg.HasEffects())
	require.NoError(t, reg.Effect(context.Background(), doc{A: "x"}, deleteA{}))
	assert.Equal(t, []string{"sync:x", "async:x"}, seen)
}

func TestRegistration_EffectFailure(t *testing.T) {
	reg := NewRegistration[doc]()
	boom := errors.New("effect boom")
	ran := false
	reg.OnChangeAsync(func(context.Context, doc, any) error { return boom }).
		OnChange(func(doc, any) { ran = true })

	err := reg.Effect(context.Background(), doc{}, deleteA{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestRegistration_FreezePanicsOnAppend(t *testing.T) {
	reg := NewRegistration[doc]()
	reg.Freeze()
	assert.True(t, reg.Frozen())

	assert.PanicsWithError(t, "reducer: registration is frozen: reducer reducer.deleteA", func() {
		On(reg, func(s doc, _ deleteA) doc { return s })
	})
	assert.Panics(t, func() { reg.OnChange(func(doc, any) {}) })
}

func TestRegistration_ErasedStateMismatch(t *testing.T) {
	reg := NewRegistration[doc]()
	_, _, err := reg.ReduceAny(context.Background(), "not a doc", deleteA{})
	assert.ErrorIs(t, err, ErrStateType)

	err = reg.EffectAny(context.Background(), 42, deleteA{})
	assert.ErrorIs(t, err, ErrStateType)
}

func TestRegistration_IntrospectionCopies(t *testing.T) {
	reg := NewRegistration[doc]()
	On(reg, func(s doc, _ deleteA) doc { return s })
	reg.OnChange(func(doc, any) {})

	reducers := reg.Reducers()
	require.Len(t, reducers, 1)
	assert.Equal(t, KindSync, reducers[0].Kind)
	assert.Equal(t, "reducer.deleteA", reducers[0].Tag)
	assert.Len(t, reg.Effects(), 1)
	assert.Equal(t, "reducer.doc", reg.StateType())
}
