package journal

import (
	"context"
	"strings"
)

// Filter selects journal entries. Zero fields do not filter; set fields
// are combined with AND.
type Filter struct {
	Batch       string // exact batch ID
	BatchPrefix string // batch IDs starting with this prefix
	Tag         string // action tag
	Since       int64  // entries with seq > Since
	FailedOnly  bool   // entries whose fold failed
}

// Query returns the entries matching f, in fold order.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Entry, error) {
	query, params := f.compile()
	return j.query(ctx, query, params...)
}

// compile converts f to a parameterized SELECT over dispatches.
// Values are never interpolated, and every query is ordered by seq with
// id as a deterministic tiebreaker.
func (f Filter) compile() (string, []any) {
	var where []string
	var params []any

	if f.Batch != "" {
		where = append(where, "batch_id = ?")
		params = append(params, f.Batch)
	}
	if f.BatchPrefix != "" {
		// instr avoids LIKE wildcards in user-supplied prefixes.
		where = append(where, "instr(batch_id, ?) = 1")
		params = append(params, f.BatchPrefix)
	}
	if f.Tag != "" {
		where = append(where, "tag = ?")
		params = append(params, f.Tag)
	}
	if f.Since > 0 {
		where = append(where, "seq > ?")
		params = append(params, f.Since)
	}
	if f.FailedOnly {
		where = append(where, "failure != ''")
	}

	var b strings.Builder
	b.WriteString(selectEntry)
	if len(where) > 0 {
		b.WriteString("WHERE ")
		b.WriteString(strings.Join(where, " AND "))
		b.WriteString("\n")
	}
	b.WriteString(orderByFold)
	return b.String(), params
}
