package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/statetree/internal/engine"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/testutil"
)

// DefaultBatchPrefix prefixes batch IDs when the scenario sets none.
const DefaultBatchPrefix = "step"

type runOptions struct {
	logger   *slog.Logger
	recorder engine.Recorder
	seqStart int64
}

// Option configures a scenario run.
type Option func(*runOptions)

// WithLogger sets the store's logger. Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder forwards every fold record to rec after the harness traced
// it, e.g. a journal.Journal. Recorder errors are logged by the store and
// do not fail the run.
func WithRecorder(rec engine.Recorder) Option {
	return func(o *runOptions) {
		o.recorder = rec
	}
}

// WithSeqStart starts the clock at start, so the first fold gets start+1.
// Used to append a run to an existing journal.
func WithSeqStart(start int64) Option {
	return func(o *runOptions) {
		o.seqStart = start
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store with deterministic helpers:
// batch IDs are <batch_prefix>-1, -2, ... and seqs count from 1.
//
// Execution flow:
//  1. Build the store: initial state, registrations and sub-states
//  2. Subscribe to count notifications
//  3. Submit each step as one batch
//  4. Evaluate assertions against the trace and the settled state
//
// A returned error means the scenario could not be executed; assertion
// failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		// Suppress logs by default
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	initial, err := ir.FromNativeObject(scenario.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}

	prefix := scenario.BatchPrefix
	if prefix == "" {
		prefix = DefaultBatchPrefix
	}

	trace := &tracer{next: o.recorder}
	st := engine.New(initial,
		engine.WithLogger(o.logger),
		engine.WithIDGenerator(testutil.NewSequenceGenerator(prefix)),
		engine.WithClock(testutil.NewDeterministicClockAt(o.seqStart)),
		engine.WithRecorder(trace),
	)
	defer st.Close()

	b := &builder{store: st, trace: trace, dir: scenario.dir}
	if err := b.build(st.Root(), st.Registration(), &scenario.Layer); err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	result := NewResult()

	replayed := false
	unsubscribe := st.Subscribe(func(ir.Object) {
		if !replayed {
			replayed = true
			return
		}
		result.Notifications++
	})
	defer unsubscribe()

	for i, step := range scenario.Steps {
		actions := make([]any, len(step.Actions))
		for j, as := range step.Actions {
			a, err := NewAction(as)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			actions[j] = a
		}
		if _, err := st.Submit(ctx, actions...); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	trace.snapshot(result)
	result.State = st.State()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}
