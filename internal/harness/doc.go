// Package harness runs declarative state-tree scenarios.
//
// A scenario is a YAML file describing an initial state, the reducers and
// effects of the root node, a tree of sub-states, a list of steps and the
// assertions to check afterwards. Run builds a real engine.Store over
// ir.Object states from it, submits each step as one batch, records a trace
// of every effect call and every folded action, and evaluates the
// assertions against the trace and the final state.
//
// Reducer operations:
//   - set:   path -> value; string values may use ${action.<arg>} templates
//   - unset: list of paths to remove
//   - error: a validation error message (templated), reported without
//     stopping the fold
//
// A template that names a missing argument fails the action.
//
// Sub-states address one entry of a collection in their parent state:
// path names the collection, key names the action argument holding the
// entry's key. An optional CUE schema validates the sub-state after every
// reducer of that node.
//
// Runs are deterministic: batch IDs come from testutil.SequenceGenerator
// and seqs from testutil.DeterministicClock, so RunWithGolden can compare
// the canonical JSON trace against a golden file byte for byte.
package harness
