package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/docmap/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // explicit config file

	// Settings are the loaded configuration. Commands built without the root
	// command fall back to config.Default.
	Settings *config.Config
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docmap CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docmap",
		Short: "docmap - document model pipeline compiler",
		Long: `docmap compiles declarative document models into MongoDB aggregation
pipelines and $jsonSchema collection validators.

Models are declared in CUE. Read requests (views, filter, sort, page) are
compiled into pipelines that join related collections, fold unwound arrays
back into nested documents and project every visible column.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default .docmap.yaml in the working directory)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidatorCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewPlansCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load reads the configuration, applies it under the flags and sets up
// logging on stderr.
func (o *RootOptions) load(cmd *cobra.Command) error {
	settings, err := config.Load(o.Config)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	if !cmd.Flags().Changed("format") {
		o.Format = settings.Format
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	o.Settings = settings
	o.Logger = settings.Log.SetupLogging(cmd.ErrOrStderr(), o.Verbose)
	return nil
}

// settings returns the loaded configuration or the defaults.
func (o *RootOptions) settings() *config.Config {
	if o.Settings == nil {
		def := config.Default()
		return &def
	}
	return o.Settings
}

// logger returns the configured logger or the slog default.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
