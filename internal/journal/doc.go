// Package journal is an append-only SQLite audit trail of folded actions.
//
// Every action a store folds becomes one row in the dispatches table: its
// ID, batch, logical seq, tag, canonical action JSON, resulting state JSON
// and hash, validation errors and failure. Journal implements
// engine.Recorder; the store logs recording failures and never fails a
// dispatch because of one.
//
// Rows are read back ordered by seq, then id, so a journal replays in the
// exact order its actions were folded.
package journal
