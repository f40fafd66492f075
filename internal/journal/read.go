package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Entry is one journaled action.
type Entry struct {
	ID        string   `json:"id"`
	Batch     string   `json:"batch"`
	Seq       int64    `json:"seq"`
	Tag       string   `json:"tag"`
	Action    string   `json:"action"`
	State     string   `json:"state"`
	StateHash string   `json:"state_hash"`
	Errors    []string `json:"errors"`
	Failure   string   `json:"failure,omitempty"`
}

// Failed reports whether the action's fold failed.
func (e Entry) Failed() bool {
	return e.Failure != ""
}

const selectEntry = `
	SELECT id, batch_id, seq, tag, action, state, state_hash, errors, failure
	FROM dispatches
`

const orderByFold = `ORDER BY seq ASC, id COLLATE BINARY ASC`

// Entries returns every journaled action in fold order.
//
// Returns an empty slice (not nil) for an empty journal.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	return j.Query(ctx, Filter{})
}

// Batch returns the actions of one submission, in fold order.
func (j *Journal) Batch(ctx context.Context, batchID string) ([]Entry, error) {
	return j.Query(ctx, Filter{Batch: batchID})
}

// Since returns the actions folded after seq, in fold order.
func (j *Journal) Since(ctx context.Context, seq int64) ([]Entry, error) {
	return j.Query(ctx, Filter{Since: seq})
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// A store reopening a journal continues from it via engine.NewClockAt.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM dispatches`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var errs string
	if err := rows.Scan(&e.ID, &e.Batch, &e.Seq, &e.Tag, &e.Action, &e.State, &e.StateHash, &errs, &e.Failure); err != nil {
		return Entry{}, fmt.Errorf("scan dispatch: %w", err)
	}
	msgs, err := unmarshalErrors(errs)
	if err != nil {
		return Entry{}, fmt.Errorf("dispatch %s: %w", e.ID, err)
	}
	e.Errors = msgs
	return e, nil
}
