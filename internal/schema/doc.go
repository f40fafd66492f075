// Package schema validates dynamic states against CUE constraints.
//
// A Schema is compiled once from CUE source and then unified with each
// value to validate. Every CUE error becomes one Violation, so a reducer can
// report them as validation errors alongside the state it produced.
package schema
