package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File    string `json:"file"`
	Name    string `json:"name,omitempty"`
	Valid   bool   `json:"valid"`
	Schemas int    `json:"schemas"`
	Error   string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenarios without running them",
		Long: `Validate scenario files without folding any action.

Checks YAML structure and required fields, rejects unknown keys and
compiles every CUE schema the scenario and its sub-states name. Faster
than run for development feedback.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (missing file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		out.VerboseLog("Validating %s", file)
		v, err := validateFile(file)
		if err != nil {
			return out.CommandError(ErrCodeLoad, "failed to read scenario", err)
		}
		if !v.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, v)
	}

	if out.JSON() {
		if !result.Valid {
			return out.Failure(ExitFailure, ErrCodeInvalid,
				fmt.Sprintf("%d scenario(s) invalid", countInvalid(result.Files)), result)
		}
		return out.Success(result)
	}

	writeValidationText(out.Writer, result)
	if !result.Valid {
		return NewExitError(ExitFailure,
			fmt.Sprintf("validation failed for %d scenario(s)", countInvalid(result.Files)))
	}
	return nil
}

// validateFile loads one scenario and compiles its schemas. Only an
// unreadable file is returned as an error; everything else is a finding.
func validateFile(file string) (FileValidation, error) {
	v := FileValidation{File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, err
		}
		v.Error = err.Error()
		return v, nil
	}
	v.Name = scenario.Name

	n, err := harness.CompileSchemas(scenario)
	v.Schemas = n
	if err != nil {
		v.Error = err.Error()
		return v, nil
	}

	v.Valid = true
	return v, nil
}

func countInvalid(files []FileValidation) int {
	n := 0
	for _, f := range files {
		if !f.Valid {
			n++
		}
	}
	return n
}

func writeValidationText(w io.Writer, result ValidationResult) {
	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s (%s, %d schema(s))\n", f.File, f.Name, f.Schemas)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", f.File)
		fmt.Fprintf(w, "  %s\n", f.Error)
	}
	if result.Valid {
		fmt.Fprintln(w, "✓ All scenarios valid")
	}
}
