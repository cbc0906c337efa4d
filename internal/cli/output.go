package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // everything compiled, validated or passed
	ExitFailure      = 1 // models invalid, scenarios failed or a document was rejected
	ExitCommandError = 2 // the command itself could not run: bad paths, flags, store
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	dimColor  = color.New(color.FgCyan)
)

// ExitError carries the process exit code out of a command. Commands
// report the failure through their formatter first, so main only prints
// errors that are not ExitErrors.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the ExitError in err's chain, or
// ExitFailure for any other error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every --format json reply.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failure. Code is a catalog (E1xx), model (E2xx) or
// command (E0xx) error code.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON. Diagnostics go
// to ErrWriter so they never mix with a JSON reply.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(response CLIResponse, indent bool) error {
	encoder := json.NewEncoder(f.Writer)
	if indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(response)
}

// Success writes data as an ok response, or prints it in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: StatusOK, Data: data}, false)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error response. Text mode prints details only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: StatusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		}, false)
	}
	failColor.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// EncodeIndented writes response as indented JSON, for replies that carry
// pipelines or validators meant to be read.
func (f *OutputFormatter) EncodeIndented(response CLIResponse) error {
	return f.encode(response, true)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

// VerboseLog writes a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// Pass prints a green check mark line.
func (f *OutputFormatter) Pass(format string, args ...any) {
	passColor.Fprintf(f.Writer, "\u2713 "+format+"\n", args...)
}

// Fail prints a red cross line.
func (f *OutputFormatter) Fail(format string, args ...any) {
	failColor.Fprintf(f.Writer, "\u2717 "+format+"\n", args...)
}

// Warn prints a yellow warning line.
func (f *OutputFormatter) Warn(format string, args ...any) {
	warnColor.Fprintf(f.Writer, "\u26a0 "+format+"\n", args...)
}

// Detail prints an indented line under a status line.
func (f *OutputFormatter) Detail(format string, args ...any) {
	dimColor.Fprintf(f.Writer, "  "+format+"\n", args...)
}
