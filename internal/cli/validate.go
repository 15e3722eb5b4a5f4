package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/manifest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Holdings int    `json:"holdings"`
	Capacity *int   `json:"capacity,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest.cue>",
		Short: "Validate a holdings manifest without loading it",
		Long: `Check a CUE holdings manifest against the manifest schema without touching
the database. Errors report the file position of the offending value.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	m, err := manifest.Load(path)
	if err != nil {
		result := ValidationResult{Valid: false, Message: err.Error()}

		var merr *manifest.Error
		if errors.As(err, &merr) {
			result.Message = merr.Message
			if merr.Pos.IsValid() {
				result.File = merr.Pos.Filename()
				result.Line = merr.Pos.Line()
				result.Column = merr.Pos.Column()
			}
		}

		if err := f.Error(ErrCodeManifest, err.Error(), result); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "manifest is invalid", err)
	}

	f.VerboseLog("Validated %d holding(s) in %s", len(m.Holdings), path)

	result := ValidationResult{Valid: true, Holdings: len(m.Holdings), Capacity: m.Capacity}
	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("✓ %s is valid (%d holding(s))", path, len(m.Holdings)))
}
