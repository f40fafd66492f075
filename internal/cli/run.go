package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/engine"
	"github.com/roach88/statetree/internal/harness"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	BatchPrefix string
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Name             string    `json:"name"`
	Pass             bool      `json:"pass"`
	State            ir.Object `json:"state"`
	Folds            int       `json:"folds"`
	Notifications    int       `json:"notifications"`
	ValidationErrors int       `json:"validation_errors"`
	Failures         int       `json:"failures"`
	Journal          string    `json:"journal,omitempty"`
	BatchPrefix      string    `json:"batch_prefix,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Fold a scenario and print its final state",
		Long: `Fold every step of a scenario through a state store and print the
settled state.

With --db (or STATETREE_DB) every folded action is appended to a SQLite
journal. Runs into an existing journal continue its seq numbering and use a
fresh batch prefix, so several runs can share one journal.

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, journal error, etc.)

Examples:
  statetree run ./scenarios/cart.yaml
  statetree run ./scenarios/cart.yaml --db ./statetree.db
  statetree run ./scenarios/cart.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $STATETREE_DB)")
	cmd.Flags().StringVar(&opts.BatchPrefix, "batch-prefix", "", "batch ID prefix (default: scenario's, or a fresh UUID when journaling)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.CommandError(ErrCodeLoad, "failed to load scenario", err)
	}
	if opts.BatchPrefix != "" {
		scenario.BatchPrefix = opts.BatchPrefix
	}

	runOpts := []harness.Option{harness.WithLogger(opts.Logger)}

	db := opts.database(opts.Database)
	if db != "" {
		j, err := journal.Open(db)
		if err != nil {
			return out.CommandError(ErrCodeJournal, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				opts.Logger.Error("error closing journal", "error", closeErr)
			}
		}()

		last, err := j.LastSeq(ctx)
		if err != nil {
			return out.CommandError(ErrCodeJournal, "failed to read journal", err)
		}
		if scenario.BatchPrefix == "" {
			scenario.BatchPrefix = engine.UUIDv7Generator{}.Generate()
		}
		runOpts = append(runOpts, harness.WithRecorder(j), harness.WithSeqStart(last))
		opts.Logger.Info("journaling run", "db", db, "seq_start", last, "batch_prefix", scenario.BatchPrefix)
	}

	result, err := harness.RunContext(ctx, scenario, runOpts...)
	if err != nil {
		return out.CommandError(ErrCodeRun, "failed to run scenario", err)
	}

	summary := RunResult{
		Name:             scenario.Name,
		Pass:             result.Pass,
		State:            result.State,
		Folds:            len(result.Folds()),
		Notifications:    result.Notifications,
		ValidationErrors: result.ValidationErrors,
		Failures:         result.Failures,
		Journal:          db,
		BatchPrefix:      scenario.BatchPrefix,
		Errors:           result.Errors,
	}

	if out.JSON() {
		if !summary.Pass {
			return out.Failure(ExitFailure, ErrCodeFailed,
				fmt.Sprintf("scenario %s failed", scenario.Name), summary)
		}
		return out.Success(summary)
	}

	writeRunText(out.Writer, summary)
	if !summary.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, r RunResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}

	state, err := ir.MarshalCanonical(r.State)
	if err != nil {
		state = []byte(fmt.Sprint(r.State))
	}
	fmt.Fprintf(w, "Final state: %s\n", state)
	fmt.Fprintf(w, "Folds: %d, notifications: %d, validation errors: %d, failures: %d\n",
		r.Folds, r.Notifications, r.ValidationErrors, r.Failures)
	if r.Journal != "" {
		fmt.Fprintf(w, "Journal: %s (batch prefix %s)\n", r.Journal, r.BatchPrefix)
	}
}
