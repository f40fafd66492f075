// Package dispatch implements the recursive dispatcher tree that folds one
// action into one state.
//
// Each Node owns one registration, an optional projection into a sub-state,
// and an ordered list of child nodes. The recursion is written once against
// erased states (any); typed constructors (NewRoot, Attach, Fold) keep every
// node's public contract strongly typed.
//
// # Fold Order
//
// For (state, action) a node:
//
//  1. resolves its projection: no key, or no sub-state for the key, means the
//     node contributes nothing (its own reducers and effects do not run)
//  2. folds the current sub-state through every child, in attach order, each
//     child receiving the same action
//  3. runs its matching reducers, or all reducers when it has effects
//  4. runs its effects, whether or not a reducer fired
//  5. reintegrates the sub-state into the parent through the projection setter
//
// Children react before their parent. Every child sees every action and
// decides relevance through its own key selector.
//
// # Errors
//
// Validation errors reported by reducers are collected into the Outcome and
// never stop the fold. Transform failures (an async reducer or effect error,
// a setter error, an erased state of the wrong type) abort the fold and are
// returned as *StepError.
package dispatch
