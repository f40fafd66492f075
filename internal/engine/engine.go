package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/statetree/internal/dispatch"
	"github.com/roach88/statetree/internal/reducer"
)

// Receipt is the outcome of folding one submitted action.
type Receipt[S any] struct {
	// ID is the action's ID: its batch ID plus its index in the batch.
	ID    string
	Batch string

	// Seq is the logical clock value stamped when the action was folded.
	Seq int64
	Tag string

	// State is the working state right after this action's fold. When Err
	// is set it is the state the action was folded against, unchanged.
	State S

	// Errors are the validation errors reported by reducers.
	Errors []error

	// Err is the transform failure, if any.
	Err error
}

// Store is the root state container.
//
// Thread-safety model:
//   - Dispatch(), Submit(), Post(), State(), Subscribe(): safe from any goroutine
//   - Inside a fold: Post() always; Submit()/Dispatch() only with the
//     context an async reducer or effect was handed
//   - Inside a subscriber: everything
//   - Registrations and sub-states must be set up before the first dispatch;
//     the dispatcher tree is frozen when the first drain starts
//
// INVARIANTS:
//   - At most one drain runs at any instant
//   - Actions are folded in the order they were enqueued
//   - Subscribers only ever see settled state, once per drain cycle, in
//     settle order and never while the busy flag is held
type Store[S any] struct {
	root   *dispatch.Node
	reg    *reducer.Registration[S]
	queue  *actionQueue[S]
	clock  Sequencer
	ids    IDGenerator
	logger *slog.Logger
	tracer trace.Tracer
	rec    Recorder

	draining atomic.Bool
	freeze   sync.Once

	// working is only touched by the drainer.
	working S

	mu        sync.RWMutex
	settled   S
	subs      []subscriber[S]
	nextSub   int
	notes     []notice[S]
	notifying bool
}

// New creates a Store holding initial, with an empty root registration.
func New[S any](initial S, opts ...Option) *Store[S] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	reg := reducer.NewRegistration[S]()
	return &Store[S]{
		root:    dispatch.NewRoot(reg, dispatch.WithLogger(o.logger), dispatch.WithName(o.rootName)),
		reg:     reg,
		queue:   newActionQueue[S](),
		clock:   o.clock,
		ids:     o.ids,
		logger:  o.logger,
		tracer:  o.tracer,
		rec:     o.recorder,
		working: initial,
		settled: initial,
	}
}

// Registration returns the root registration, for adding reducers and
// effects over the whole state.
func (s *Store[S]) Registration() *reducer.Registration[S] {
	return s.reg
}

// Root returns the root dispatcher node, for attaching sub-states directly.
func (s *Store[S]) Root() *dispatch.Node {
	return s.root
}

// State returns the last settled state.
func (s *Store[S]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settled
}

// QueueLen returns the number of actions waiting to be folded.
func (s *Store[S]) QueueLen() int {
	return s.queue.Len()
}

// Draining reports whether a drain is in progress.
func (s *Store[S]) Draining() bool {
	return s.draining.Load()
}

// Clock returns the store's logical clock.
func (s *Store[S]) Clock() Sequencer {
	return s.clock
}

// Close rejects further submissions. Actions already queued are still folded.
func (s *Store[S]) Close() {
	s.queue.Close()
}

// Dispatch submits the actions in order and returns the state after the
// last one was folded.
//
// Transform failures are joined into the returned error; the state change of
// each failed action is dropped and later actions still fold. Validation
// errors do not fail a dispatch: they are logged and reported by Submit.
//
// If ctx ends before the actions are folded, Dispatch returns the last
// settled state and ctx.Err(); the actions are still folded.
func (s *Store[S]) Dispatch(ctx context.Context, actions ...any) (S, error) {
	receipts, err := s.Submit(ctx, actions...)
	if err != nil {
		return s.State(), err
	}
	if len(receipts) == 0 {
		return s.State(), nil
	}

	var failures []error
	for _, r := range receipts {
		if r.Err != nil {
			failures = append(failures, r.Err)
		}
	}
	return receipts[len(receipts)-1].State, errors.Join(failures...)
}

// Submit enqueues the actions as one contiguous run and waits for a receipt
// per action. If no drain is in progress the calling goroutine drains the
// queue itself before waiting.
//
// Submitting from inside an async reducer or effect is allowed as long as
// the context handed to it is passed on: the actions are enqueued behind the
// current one and Submit returns (nil, nil) without waiting. Sync reducers
// and effects have no such context and must use Post instead; a Submit with
// an unrelated context from inside a fold waits on itself forever.
//
// Subscribers are notified outside the fold and may call Submit freely.
func (s *Store[S]) Submit(ctx context.Context, actions ...any) ([]Receipt[S], error) {
	if len(actions) == 0 {
		return nil, nil
	}

	items, err := s.enqueue(ctx, actions)
	if err != nil {
		return nil, err
	}

	// A nested submission from the drainer's own fold would deadlock
	// waiting on itself; its actions are folded after the current one.
	if inFold(ctx, s) {
		return nil, nil
	}

	s.drain()

	receipts := make([]Receipt[S], 0, len(items))
	for _, p := range items {
		// Receipts already delivered win over a context that is already done.
		select {
		case r := <-p.done:
			receipts = append(receipts, r)
			continue
		default:
		}
		select {
		case r := <-p.done:
			receipts = append(receipts, r)
		case <-ctx.Done():
			return receipts, ctx.Err()
		}
	}
	return receipts, nil
}

// Post enqueues the actions as one contiguous run without waiting for them.
//
// Post is safe from anywhere, including sync reducers and effects: inside a
// fold the actions are folded after the current one in the same drain
// cycle; outside a fold the caller drains the queue if no drain is running.
// Outcomes are only observable through subscribers, the Recorder and logs.
func (s *Store[S]) Post(actions ...any) error {
	if len(actions) == 0 {
		return nil
	}
	if _, err := s.enqueue(context.Background(), actions); err != nil {
		return err
	}
	s.drain()
	return nil
}

// enqueue stamps a batch ID on the actions and appends them to the queue as
// one contiguous run.
func (s *Store[S]) enqueue(ctx context.Context, actions []any) ([]*pending[S], error) {
	batch := s.ids.Generate()
	items := make([]*pending[S], len(actions))
	for i, action := range actions {
		items[i] = &pending[S]{
			id:     actionID(batch, i),
			batch:  batch,
			action: action,
			ctx:    ctx,
			done:   make(chan Receipt[S], 1),
		}
	}

	if !s.queue.Enqueue(items...) {
		return nil, NewClosedError()
	}
	s.logger.Debug("actions enqueued",
		"batch", batch,
		"count", len(items),
		"queue_len", s.queue.Len())
	return items, nil
}

// drain folds queued actions until the queue is empty, unless another
// goroutine is already draining.
//
// Subscribers are notified after the busy flag is released, so a listener
// that dispatches starts a drain of its own instead of waiting on this one.
// The queue is re-checked after every cycle: an action enqueued between the
// drainer's last dequeue and the release, or by a listener, is folded here.
func (s *Store[S]) drain() {
	for s.queue.Len() > 0 && s.draining.CompareAndSwap(false, true) {
		s.drainCycle()
		s.notify()
	}
}

// drainCycle runs one drain cycle. Must only be called while holding the
// busy flag; releases it on every exit path.
func (s *Store[S]) drainCycle() {
	defer s.draining.Store(false)

	s.freeze.Do(s.root.Freeze)

	folded := 0
	for {
		p, ok := s.queue.TryDequeue()
		if !ok {
			break
		}
		s.process(p)
		folded++
	}

	if folded > 0 {
		s.settle(folded)
	}
}

// process folds one action against the working state and delivers its
// receipt.
func (s *Store[S]) process(p *pending[S]) {
	seq := s.clock.Next()
	tag := reducer.TagOf(p.action)

	ctx, span := s.tracer.Start(withFold(context.WithoutCancel(p.ctx), s), "statetree.fold",
		trace.WithAttributes(
			attribute.String("statetree.action.id", p.id),
			attribute.String("statetree.action.tag", tag),
			attribute.Int64("statetree.seq", seq),
		))
	defer span.End()

	receipt := Receipt[S]{ID: p.id, Batch: p.batch, Seq: seq, Tag: tag}

	res, err := s.fold(ctx, p, tag)
	switch {
	case err != nil:
		receipt.State = s.working
		receipt.Errors = res.Errors
		receipt.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("fold failed, state change dropped",
			"action", p.id,
			"tag", tag,
			"seq", seq,
			"error", err)
	default:
		s.working = res.State
		receipt.State = res.State
		receipt.Errors = res.Errors
		if len(res.Errors) > 0 {
			span.SetAttributes(attribute.Int("statetree.validation_errors", len(res.Errors)))
			s.logger.Warn("action folded with validation errors",
				"action", p.id,
				"tag", tag,
				"seq", seq,
				"errors", ValidationErrors(res.Errors).Error())
		} else {
			s.logger.Debug("action folded",
				"action", p.id,
				"tag", tag,
				"seq", seq)
		}
	}

	s.record(ctx, p, receipt)
	p.done <- receipt
}

// fold runs the dispatcher tree, converting a panic into a STEP_PANIC error.
func (s *Store[S]) fold(ctx context.Context, p *pending[S], tag string) (res reducer.Result[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			res = reducer.Result[S]{State: s.working}
			err = NewPanicError(p.id, tag, r)
		}
	}()
	return dispatch.Fold(ctx, s.root, s.working, p.action)
}

// record hands the receipt to the Recorder. Recorder failures are logged and
// never fail the action.
func (s *Store[S]) record(ctx context.Context, p *pending[S], r Receipt[S]) {
	if s.rec == nil {
		return
	}
	err := s.rec.Record(ctx, Record{
		ID:     r.ID,
		Batch:  r.Batch,
		Seq:    r.Seq,
		Tag:    r.Tag,
		Action: p.action,
		State:  r.State,
		Errors: r.Errors,
		Err:    r.Err,
	})
	if err != nil {
		s.logger.Error("failed to record action",
			"action", r.ID,
			"seq", r.Seq,
			"error", err)
	}
}

type foldKey struct{}

// withFold marks ctx as belonging to an in-progress fold of store.
func withFold(ctx context.Context, store any) context.Context {
	return context.WithValue(ctx, foldKey{}, store)
}

// inFold reports whether ctx was derived from a fold of store.
func inFold(ctx context.Context, store any) bool {
	return ctx.Value(foldKey{}) == store
}
