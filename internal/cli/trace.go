package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Batch    string // optional - one submission only
	Since    int64  // optional - entries folded after this seq
	Action   string // optional - filter to one action tag
	Failed   bool   // optional - failed folds only
}

// TraceEntry is one journaled fold in the trace timeline.
type TraceEntry struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Batch     string          `json:"batch"`
	Tag       string          `json:"tag"`
	Action    json.RawMessage `json:"action"`
	State     json.RawMessage `json:"state"`
	StateHash string          `json:"state_hash"`
	Errors    []string        `json:"errors,omitempty"`
	Failure   string          `json:"failure,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Folds            int    `json:"folds"`
	Batches          int    `json:"batches"`
	ValidationErrors int    `json:"validation_errors"`
	Failures         int    `json:"failures"`
	LastSeq          int64  `json:"last_seq"`
	LastStateHash    string `json:"last_state_hash,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled folds",
		Long: `Show the actions a journal recorded, in fold order.

The output includes:
- Timeline: every fold with its seq, action, validation errors and failure
- Stats: summary statistics over the shown folds

Examples:
  statetree trace --db ./statetree.db
  statetree trace --db ./statetree.db --batch run-0192f0c1-1
  statetree trace --db ./statetree.db --since 40 --action AddItem
  statetree trace --db ./statetree.db --failed
  statetree trace --db ./statetree.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $STATETREE_DB)")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "show one batch only")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "show folds after this seq")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action tag")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "show failed folds only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db := opts.database(opts.Database)
	if db == "" {
		return out.CommandError(ErrCodeJournal, "no journal: pass --db or set STATETREE_DB", nil)
	}

	j, err := journal.Open(db)
	if err != nil {
		return out.CommandError(ErrCodeJournal, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.Query(ctx, journal.Filter{
		Batch:      opts.Batch,
		Tag:        opts.Action,
		Since:      opts.Since,
		FailedOnly: opts.Failed,
	})
	if err != nil {
		return out.CommandError(ErrCodeJournal, "failed to read journal", err)
	}

	result := buildTrace(entries)

	if out.JSON() {
		return out.Success(result)
	}

	if len(result.Timeline) == 0 {
		fmt.Fprintln(out.Writer, "No dispatches recorded.")
		return nil
	}
	outputTraceText(out.Writer, result, opts.Verbose)
	return nil
}

// buildTrace converts journal entries to timeline entries.
func buildTrace(entries []journal.Entry) TraceResult {
	result := TraceResult{Timeline: []TraceEntry{}}
	batches := make(map[string]struct{})

	for _, e := range entries {
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:       e.Seq,
			ID:        e.ID,
			Batch:     e.Batch,
			Tag:       e.Tag,
			Action:    json.RawMessage(e.Action),
			State:     json.RawMessage(e.State),
			StateHash: e.StateHash,
			Errors:    e.Errors,
			Failure:   e.Failure,
		})

		batches[e.Batch] = struct{}{}
		result.Stats.ValidationErrors += len(e.Errors)
		if e.Failed() {
			result.Stats.Failures++
		}
		result.Stats.LastSeq = e.Seq
		result.Stats.LastStateHash = e.StateHash
	}

	result.Stats.Folds = len(result.Timeline)
	result.Stats.Batches = len(batches)
	return result
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintln(w, "=== Timeline ===")
	for _, e := range result.Timeline {
		formatTimelineEntry(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Folds:             %d\n", result.Stats.Folds)
	fmt.Fprintf(w, "  Batches:           %d\n", result.Stats.Batches)
	fmt.Fprintf(w, "  Validation errors: %d\n", result.Stats.ValidationErrors)
	fmt.Fprintf(w, "  Failures:          %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Last seq:          %d\n", result.Stats.LastSeq)
	if verbose {
		fmt.Fprintf(w, "  Last state hash:   %s\n", result.Stats.LastStateHash)
	}
}

func formatTimelineEntry(w io.Writer, e TraceEntry, verbose bool) {
	status := ""
	if e.Failure != "" {
		status = " FAILED"
	}
	fmt.Fprintf(w, "  [%d] %s %s%s\n", e.Seq, e.Tag, truncateID(e.ID), status)
	for _, msg := range e.Errors {
		fmt.Fprintf(w, "       error: %s\n", msg)
	}
	if e.Failure != "" {
		fmt.Fprintf(w, "       failure: %s\n", e.Failure)
	}
	if verbose {
		fmt.Fprintf(w, "       action: %s\n", e.Action)
		fmt.Fprintf(w, "       state: %s\n", e.State)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 24 {
		return id
	}
	return id[:8] + "..." + id[len(id)-12:]
}
