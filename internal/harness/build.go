package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/roach88/statetree/internal/dispatch"
	"github.com/roach88/statetree/internal/engine"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reducer"
	"github.com/roach88/statetree/internal/schema"
)

// tracer collects the scenario trace. It is the store's Recorder and the
// sink of every effect built from the scenario.
type tracer struct {
	mu         sync.Mutex
	events     []TraceEvent
	validation int
	failures   int

	// next receives every record after the tracer, e.g. a journal.
	next engine.Recorder
}

// Record implements engine.Recorder.
func (t *tracer) Record(ctx context.Context, rec engine.Record) error {
	ev := TraceEvent{
		Type:   EventFold,
		Seq:    rec.Seq,
		ID:     rec.ID,
		Action: rec.Tag,
	}
	if a, ok := asAction(rec.Action); ok && len(a.Args) > 0 {
		ev.Args = a.Args
	}
	if state, ok := rec.State.(ir.Object); ok {
		ev.State = state
	}
	for _, err := range rec.Errors {
		ev.Errors = append(ev.Errors, err.Error())
	}
	if rec.Err != nil {
		ev.Failure = rec.Err.Error()
	}

	t.mu.Lock()
	t.events = append(t.events, ev)
	t.validation += len(rec.Errors)
	if rec.Err != nil {
		t.failures++
	}
	t.mu.Unlock()

	if t.next != nil {
		return t.next.Record(ctx, rec)
	}
	return nil
}

func (t *tracer) effect(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *tracer) snapshot(r *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.Trace = append(r.Trace, t.events...)
	r.ValidationErrors = t.validation
	r.Failures = t.failures
}

// builder turns scenario layers into registrations and dispatcher nodes.
type builder struct {
	store *engine.Store[ir.Object]
	trace *tracer
	dir   string
}

// build registers the layer's steps on reg and attaches its sub-states
// under node, recursively.
func (b *builder) build(node *dispatch.Node, reg *reducer.Registration[ir.Object], l *Layer) error {
	sch, err := b.schema(l)
	if err != nil {
		return fmt.Errorf("%s: %w", node.Path(), err)
	}

	for i, def := range l.Reducers {
		fn, err := compileReducer(def, sch)
		if err != nil {
			return fmt.Errorf("%s.reducers[%d]: %w", node.Path(), i, err)
		}
		reducer.OnTagAsyncResult(reg, def.On, fn)
	}

	for i, def := range l.Effects {
		fn, err := b.compileEffect(node.Path(), def)
		if err != nil {
			return fmt.Errorf("%s.effects[%d]: %w", node.Path(), i, err)
		}
		reg.OnChangeAsync(fn)
	}

	for i := range l.Substates {
		sub := &l.Substates[i]
		childReg := reducer.NewRegistration[ir.Object]()
		child, err := dispatch.Attach(node, projectionFor(sub), childReg, dispatch.WithName(sub.Name))
		if err != nil {
			return fmt.Errorf("%s: attach %s: %w", node.Path(), sub.Name, err)
		}
		if err := b.build(child, childReg, &sub.Layer); err != nil {
			return err
		}
	}

	return nil
}

func (b *builder) schema(l *Layer) (*schema.Schema, error) {
	switch {
	case l.Schema != "":
		return schema.Compile("inline.cue", l.Schema)
	case l.SchemaFile != "":
		path := l.SchemaFile
		if !filepath.IsAbs(path) && b.dir != "" {
			path = filepath.Join(b.dir, path)
		}
		return schema.Load(path)
	default:
		return nil, nil
	}
}

type setOp struct {
	path  []string
	value ir.Value
}

// compileReducer converts a ReducerDef into an async reducer. Template
// errors are transform failures; the error op and schema violations are
// validation errors.
func compileReducer(def ReducerDef, sch *schema.Schema) (func(context.Context, ir.Object, any) (reducer.Result[ir.Object], error), error) {
	paths := make([]string, 0, len(def.Set))
	for p := range def.Set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	sets := make([]setOp, len(paths))
	for i, p := range paths {
		v, err := ir.FromNative(def.Set[p])
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
		sets[i] = setOp{path: ir.SplitPath(p), value: v}
	}

	return func(_ context.Context, state ir.Object, action any) (reducer.Result[ir.Object], error) {
		a, _ := asAction(action)
		next := state

		for _, op := range sets {
			v, err := expand(op.value, a.Args)
			if err != nil {
				return reducer.Result[ir.Object]{State: state}, err
			}
			next, err = ir.With(next, op.path, v)
			if err != nil {
				return reducer.Result[ir.Object]{State: state}, err
			}
		}

		for _, p := range def.Unset {
			var err error
			next, err = ir.Without(next, ir.SplitPath(p))
			if err != nil {
				return reducer.Result[ir.Object]{State: state}, err
			}
		}

		var errs []error
		if def.Error != "" {
			msg, err := expandText(def.Error, a.Args)
			if err != nil {
				return reducer.Result[ir.Object]{State: state}, err
			}
			errs = append(errs, errors.New(msg))
		}
		if sch != nil {
			errs = append(errs, sch.Validate(next)...)
		}

		return reducer.Result[ir.Object]{State: next, Errors: errs}, nil
	}, nil
}

// compileEffect converts an EffectDef into an async effect that traces its
// call, then fails or dispatches follow-up actions.
func (b *builder) compileEffect(node string, def EffectDef) (func(context.Context, ir.Object, any) error, error) {
	follow := make([]Action, len(def.Dispatch))
	for i, step := range def.Dispatch {
		a, err := NewAction(step)
		if err != nil {
			return nil, fmt.Errorf("dispatch[%d]: %w", i, err)
		}
		follow[i] = a
	}

	return func(ctx context.Context, state ir.Object, action any) error {
		tag := reducer.TagOf(action)
		if def.On != "" && tag != def.On {
			return nil
		}
		a, _ := asAction(action)

		b.trace.effect(TraceEvent{
			Type:   EventEffect,
			Seq:    b.store.Clock().Current(),
			Action: tag,
			Args:   a.Args,
			Node:   node,
			State:  state,
		})

		if def.Fail != "" {
			msg, err := expandText(def.Fail, a.Args)
			if err != nil {
				return err
			}
			return errors.New(msg)
		}

		if len(follow) == 0 {
			return nil
		}
		next := make([]any, 0, len(follow))
		for _, f := range follow {
			args, err := expand(f.Args, a.Args)
			if err != nil {
				return fmt.Errorf("dispatch %s: %w", f.Type, err)
			}
			next = append(next, Action{Type: f.Type, Args: args.(ir.Object)})
		}
		// ctx comes from the fold, so Submit queues behind the current
		// action instead of waiting on it.
		_, err := b.store.Submit(ctx, next...)
		return err
	}, nil
}

// projectionFor addresses collection[key] inside the parent state, where
// key is read from the action argument the sub-state names.
func projectionFor(sub *Substate) dispatch.Projection[ir.Object, ir.Object, string] {
	base := ir.SplitPath(sub.Path)
	entry := func(key string) []string {
		p := make([]string, 0, len(base)+1)
		p = append(p, base...)
		return append(p, key)
	}

	return dispatch.Projection[ir.Object, ir.Object, string]{
		Key: func(action any) (string, bool) {
			return keyOf(action, sub.Key)
		},
		Get: func(parent ir.Object, key string) (ir.Object, bool) {
			v, ok := ir.Lookup(parent, entry(key))
			if !ok {
				return nil, false
			}
			obj, ok := v.(ir.Object)
			return obj, ok
		},
		SetAsync: func(_ context.Context, parent ir.Object, key string, child ir.Object) (ir.Object, error) {
			return ir.With(parent, entry(key), child)
		},
	}
}

// CompileSchemas compiles every schema of the scenario without running it
// and returns how many there were.
func CompileSchemas(s *Scenario) (int, error) {
	b := &builder{dir: s.dir}
	return b.compileLayer("root", &s.Layer)
}

func (b *builder) compileLayer(node string, l *Layer) (int, error) {
	n := 0
	sch, err := b.schema(l)
	if err != nil {
		return n, fmt.Errorf("%s: %w", node, err)
	}
	if sch != nil {
		n++
	}
	for i := range l.Substates {
		sub := &l.Substates[i]
		m, err := b.compileLayer(node+"/"+sub.Name, &sub.Layer)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
