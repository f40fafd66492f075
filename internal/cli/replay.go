package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/harness"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database    string
	BatchPrefix string // batch prefix of the journaled run (default: scenario's)
}

// Divergence is the first fold where a replay and the journal disagree.
type Divergence struct {
	Index    int    `json:"index"`
	Field    string `json:"field"`
	Journal  string `json:"journal"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the replay result of one journaled run.
type ReplayResult struct {
	Scenario      string      `json:"scenario"`
	BatchPrefix   string      `json:"batch_prefix"`
	Journaled     int         `json:"journaled"`
	Replayed      int         `json:"replayed"`
	Deterministic bool        `json:"deterministic"`
	Divergence    *Divergence `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a journaled scenario and verify determinism",
		Long: `Re-run a scenario in memory and compare every fold with the journal a
previous "statetree run --db" wrote.

The journaled run is selected by its batch prefix. The replay starts its
clock just before the first journaled seq, so ids, seqs, action tags and
state hashes must all match.

Exit codes:
  0 - The replay matches the journal
  1 - The replay diverged from the journal
  2 - Command error (journal not found, no journaled run, etc.)

Examples:
  statetree replay ./scenarios/cart.yaml --db ./statetree.db --batch-prefix 0192f0c1-...
  statetree replay ./scenarios/cart.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $STATETREE_DB)")
	cmd.Flags().StringVar(&opts.BatchPrefix, "batch-prefix", "", "batch prefix of the journaled run (default: scenario's)")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db := opts.database(opts.Database)
	if db == "" {
		return out.CommandError(ErrCodeJournal, "no journal: pass --db or set STATETREE_DB", nil)
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.CommandError(ErrCodeLoad, "failed to load scenario", err)
	}
	if opts.BatchPrefix != "" {
		scenario.BatchPrefix = opts.BatchPrefix
	}
	if scenario.BatchPrefix == "" {
		scenario.BatchPrefix = harness.DefaultBatchPrefix
	}

	j, err := journal.Open(db)
	if err != nil {
		return out.CommandError(ErrCodeJournal, "failed to open journal", err)
	}
	defer j.Close()

	// Harness batch IDs are <prefix>-1, <prefix>-2, ...
	journaled, err := j.Query(ctx, journal.Filter{BatchPrefix: scenario.BatchPrefix + "-"})
	if err != nil {
		return out.CommandError(ErrCodeJournal, "failed to read journal", err)
	}
	if len(journaled) == 0 {
		return out.CommandError(ErrCodeJournal,
			fmt.Sprintf("no journaled run with batch prefix %q", scenario.BatchPrefix), nil)
	}

	opts.Logger.Debug("replaying", "scenario", scenario.Name, "batch_prefix", scenario.BatchPrefix,
		"seq_start", journaled[0].Seq-1)
	run, err := harness.RunContext(ctx, scenario,
		harness.WithLogger(opts.Logger),
		harness.WithSeqStart(journaled[0].Seq-1),
	)
	if err != nil {
		return out.CommandError(ErrCodeRun, "failed to replay scenario", err)
	}

	folds := run.Folds()
	result := ReplayResult{
		Scenario:    scenario.Name,
		BatchPrefix: scenario.BatchPrefix,
		Journaled:   len(journaled),
		Replayed:    len(folds),
		Divergence:  compareFolds(journaled, folds),
	}
	result.Deterministic = result.Divergence == nil

	if out.JSON() {
		if !result.Deterministic {
			return out.Failure(ExitFailure, ErrCodeDivergence, "replay diverged from journal", result)
		}
		return out.Success(result)
	}

	return outputReplayText(out.Writer, result)
}

// compareFolds returns the first disagreement between the journal and the
// replayed folds, or nil.
func compareFolds(journaled []journal.Entry, folds []harness.TraceEvent) *Divergence {
	for i := 0; i < len(journaled) && i < len(folds); i++ {
		e, f := journaled[i], folds[i]
		if e.ID != f.ID {
			return &Divergence{Index: i, Field: "id", Journal: e.ID, Replayed: f.ID}
		}
		if e.Seq != f.Seq {
			return &Divergence{Index: i, Field: "seq",
				Journal: fmt.Sprint(e.Seq), Replayed: fmt.Sprint(f.Seq)}
		}
		if e.Tag != f.Action {
			return &Divergence{Index: i, Field: "tag", Journal: e.Tag, Replayed: f.Action}
		}
		if e.Failure != f.Failure {
			return &Divergence{Index: i, Field: "failure", Journal: e.Failure, Replayed: f.Failure}
		}
		hash, err := ir.StateHash(f.State)
		if err != nil {
			return &Divergence{Index: i, Field: "state_hash", Journal: e.StateHash, Replayed: err.Error()}
		}
		if e.StateHash != hash {
			return &Divergence{Index: i, Field: "state_hash", Journal: e.StateHash, Replayed: hash}
		}
	}

	if len(journaled) != len(folds) {
		return &Divergence{
			Index:    min(len(journaled), len(folds)),
			Field:    "count",
			Journal:  fmt.Sprint(len(journaled)),
			Replayed: fmt.Sprint(len(folds)),
		}
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult) error {
	fmt.Fprintf(w, "Replay of %s (batch prefix %s)\n", result.Scenario, result.BatchPrefix)
	fmt.Fprintf(w, "  Journaled folds: %d\n", result.Journaled)
	fmt.Fprintf(w, "  Replayed folds:  %d\n", result.Replayed)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches journal")
		return nil
	}

	d := result.Divergence
	fmt.Fprintf(w, "✗ Replay diverged at fold %d (%s)\n", d.Index, d.Field)
	fmt.Fprintf(w, "  journal:  %s\n", d.Journal)
	fmt.Fprintf(w, "  replayed: %s\n", d.Replayed)
	return NewExitError(ExitFailure, "replay diverged from journal")
}
