// Package engine implements the state store: the root container that owns
// the current state, serializes submitted actions, folds each one through
// the dispatcher tree and notifies subscribers.
//
// ARCHITECTURE:
//
// Single-Flight Drain Loop:
// Actions are enqueued to a FIFO queue. The caller whose submission finds no
// drain in progress becomes the drainer and folds queued actions inline, one
// at a time, until the queue is empty. Callers arriving while a drain runs
// only enqueue and wait for their per-action receipt. This ensures:
//   - Actions are folded strictly in submission order
//   - Each action sees the effect of every action before it
//   - Subscribers are notified once per drain cycle, never mid-fold
//
// Action Processing Flow:
//  1. Submit stamps a batch ID and enqueues every action under one lock
//  2. drain() wins the busy flag by compare-and-swap, or returns
//  3. Each dequeued action is folded by dispatch.Fold against the working state
//  4. On success the working state is replaced; on failure it is kept
//  5. A Receipt is delivered to the submitting caller
//  6. When the queue is empty the working state is settled
//  7. The busy flag is released, then subscribers are notified
//
// The busy flag is released by defer on every exit path and the queue is
// re-checked after release, so a drain can never be wedged by a failing
// fold nor strand an action enqueued during the release. Notifying after
// the release lets a subscriber dispatch inline: its dispatch runs a drain
// cycle of its own.
//
// Reducers and effects run while the flag is held. Sync steps re-dispatch
// with Post, which never waits; async steps may also Submit with the
// context they were handed.
//
// FAILURE POLICY:
//
// A transform failure (or a panic inside a reducer/effect, recovered as
// STEP_PANIC) fails only the action being folded: its state change is
// discarded, its receipt carries the error, and the loop moves on to the
// next queued action. Effects that already ran are not undone.
//
// Folds are not cancellable. Each runs under context.WithoutCancel of its
// submitter's context; a submitter whose context ends stops waiting but its
// action is still folded in order.
package engine
