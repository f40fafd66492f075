package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the spans the store starts.
const TracerName = "github.com/roach88/statetree/internal/engine"

// Record is what a Recorder receives for every folded action.
type Record struct {
	ID     string
	Batch  string
	Seq    int64
	Tag    string
	Action any

	// State is the working state after the fold, or the unchanged state
	// when Err is set.
	State  any
	Errors []error
	Err    error
}

// Recorder receives one Record per folded action, in fold order.
// Implemented by journal.Journal.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type options struct {
	logger   *slog.Logger
	ids      IDGenerator
	clock    Sequencer
	recorder Recorder
	tracer   trace.Tracer
	rootName string
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
		tracer:   otel.Tracer(TracerName),
		rootName: "root",
	}
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger used by the store and its dispatcher tree.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator sets the batch ID generator.
//
// Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithClock sets the logical clock, e.g. NewClockAt(journal.LastSeq()).
func WithClock(clock Sequencer) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRecorder sets a Recorder that receives every folded action.
func WithRecorder(rec Recorder) Option {
	return func(o *options) {
		o.recorder = rec
	}
}

// WithTracerProvider sets the provider spans are started from.
//
// Default: the global provider (a no-op unless telemetry.Setup installed one).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithRootName sets the name of the root dispatcher node.
func WithRootName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.rootName = name
		}
	}
}
