package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docmap/internal/catalog"
)

// CheckReport holds descriptor validation results.
type CheckReport struct {
	Valid    bool                      `json:"valid"`
	Models   int                       `json:"models"`
	Errors   []catalog.ValidationError `json:"errors,omitempty"`
	Warnings []catalog.CycleWarning    `json:"warnings,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <models-dir>",
		Short: "Validate model declarations without compiling pipelines",
		Long: `Validate CUE model declarations without compiling any pipeline.

Reports every broken model rather than stopping at the first one: unknown
formats, dangling model references, relation keys that are not declared,
primary columns that are not identifiers and embedded models that contain
themselves. Relation cycles between models are reported as warnings, since
they only fail compilation when every relation on the cycle is visible.

Exit codes:
  0 - All models valid (warnings allowed)
  1 - One or more models are invalid
  2 - Command error (invalid paths, CUE errors, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	// Collect-all mode: one broken model must not hide the others
	loadResult, loadErrors := catalog.LoadDir(modelsDir, catalog.LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *catalog.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCheckError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCheckError(formatter, catalog.ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, modelsDir)

	report := CheckReport{Models: loadResult.Catalog.Len()}

	// Load errors become validation errors
	for _, err := range loadErrors {
		code, message := parseLoadError(err)
		report.Errors = append(report.Errors, catalog.ValidationError{
			Column:  "load",
			Message: message,
			Code:    code,
		})
	}

	for _, name := range loadResult.Catalog.Names() {
		formatter.VerboseLog("Validating model: %s", name)
	}
	report.Errors = append(report.Errors, catalog.Validate(loadResult.Catalog)...)
	report.Warnings = catalog.AnalyzeCycles(loadResult.Catalog)
	report.Valid = len(report.Errors) == 0

	if !report.Valid {
		return outputCheckFailures(formatter, report)
	}
	return outputCheckSuccess(formatter, report)
}

// outputCheckSuccess outputs successful validation results.
func outputCheckSuccess(formatter *OutputFormatter, report CheckReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	formatter.Pass("All %d model(s) valid", report.Models)
	printCycleWarnings(formatter, report.Warnings)
	return nil
}

// outputCheckError outputs a single command error.
func outputCheckError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCheckFailures outputs every validation error.
func outputCheckFailures(formatter *OutputFormatter, report CheckReport) error {
	errs := report.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   report,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.EncodeIndented(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	formatter.Fail("Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		location := err.Model
		if err.Column != "" {
			if location != "" {
				location += "."
			}
			location += err.Column
		}
		if location != "" {
			fmt.Fprintln(formatter.Writer, location)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	printCycleWarnings(formatter, report.Warnings)

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func printCycleWarnings(formatter *OutputFormatter, warnings []catalog.CycleWarning) {
	for _, w := range warnings {
		formatter.Warn("%s", w.Message)
	}
}
