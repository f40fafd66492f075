// Package reducer defines the reducer and effect steps that fold an action
// into a state, and the Registration builder that holds them in order.
//
// A reducer is a transform (state, action) -> state that applies only to the
// actions it matches. An effect runs after every reducer of its registration
// has applied and never produces state.
//
// # Step Kinds
//
// Both steps come in two kinds, selected by an explicit Kind tag rather than
// by runtime type tests:
//
//   - KindSync: plain function, cannot fail
//   - KindAsync: takes a context and returns an error; a non-nil error is a
//     transform failure that aborts the fold of that action
//
// Every reducer reports a Result: the new state plus any validation errors.
// Validation errors never stop the fold. The state-only forms (On, OnAsync,
// OnTag) are adapters that report no errors.
//
// # Ordering
//
// Reducers are tried in registration order and ALL matching reducers run,
// each seeing the previous one's output. Effects run afterwards, also in
// registration order.
//
// # Matching
//
// The match predicate is built once at registration time:
//
//	reducer.On(reg, func(s Doc, a DeleteA) Doc { ... })     // type assertion to DeleteA
//	reducer.OnTag(reg, "DeleteA", func(s Doc, a any) Doc { ... }) // TagOf(action) == "DeleteA"
//
// # Freezing
//
// A Registration is frozen before the first action is folded through it.
// Appending to a frozen registration panics: the step list a running store
// folds with never changes underneath it.
package reducer
