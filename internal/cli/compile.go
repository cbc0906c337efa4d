package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/catalog"
	"github.com/roach88/docmap/internal/document"
	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/pipeline"
	"github.com/roach88/docmap/internal/query"
	"github.com/roach88/docmap/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Model   string   // model to compile; every model when empty
	Views   []string // view modes, overriding the request and config
	Request string   // request file
	Codec   string   // identifier codec, overriding config
	Store   string   // plan store path, overriding config
	Output  string   // output file path
}

// CompiledPipeline is one compiled read request.
type CompiledPipeline struct {
	Model       string          `json:"model"`
	Views       []string        `json:"views"`
	Fingerprint string          `json:"fingerprint"`
	Operators   []string        `json:"operators"`
	Stages      json.RawMessage `json:"stages"`
	Stored      *StoredPlan     `json:"stored,omitempty"`

	pipeline mongo.Pipeline
}

// StoredPlan reports where a pipeline landed in the plan store.
type StoredPlan struct {
	Seq         int64  `json:"seq"`
	Fingerprint string `json:"fingerprint"`
	Inserted    bool   `json:"inserted"`
}

// CompilationResult holds the compiled pipelines.
type CompilationResult struct {
	Pipelines []CompiledPipeline `json:"pipelines"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <models-dir>",
		Short: "Compile read requests to aggregation pipelines",
		Long: `Compile read requests against CUE model declarations into MongoDB
aggregation pipelines.

Without --model or --request every declared model is compiled with the
configured views. A request file sets views, filter, sort and page:

  model: Author
  views: [posts]
  filter:
    name: {op: eq, value: Ada}
  sort:
    - {column: name, order: asc}
  page: {start: 0, count: 10}

Examples:
  docmap compile ./models
  docmap compile ./models --model Author --views posts
  docmap compile ./models --request author.yaml --store plans.db
  docmap compile ./models --format json -o pipelines.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "model to compile")
	cmd.Flags().StringSliceVar(&opts.Views, "views", nil, "view modes (comma separated)")
	cmd.Flags().StringVarP(&opts.Request, "request", "r", "", "request file (YAML)")
	cmd.Flags().StringVar(&opts.Codec, "codec", "", "identifier codec (objectid|uuid)")
	cmd.Flags().StringVar(&opts.Store, "store", "", "plan store path")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	settings := opts.settings()

	cat, err := loadCatalog(formatter, modelsDir)
	if err != nil {
		return err
	}

	codecName := settings.Codec
	if opts.Codec != "" {
		codecName = opts.Codec
	}
	codec, err := pipeline.CodecByName(codecName)
	if err != nil {
		return outputCompileError(formatter, catalog.ErrCodeGeneric, err.Error(), nil)
	}

	requests, err := compileRequests(opts, cmd, cat, settings.Views)
	if err != nil {
		return outputCompileError(formatter, catalog.ErrCodeGeneric, err.Error(), nil)
	}

	compiler := pipeline.New(
		pipeline.WithIdentifierCodec(codec),
		pipeline.WithLogger(opts.logger()),
	)

	result := &CompilationResult{Pipelines: make([]CompiledPipeline, 0, len(requests))}
	for _, req := range requests {
		if _, ok := cat.Model(req.Model); !ok {
			return outputCompileError(formatter, catalog.ErrCodeUnknownModel, fmt.Sprintf("unknown model %q", req.Model), nil)
		}
		formatter.VerboseLog("Compiling %s (views %v)", req.Model, req.Views)

		stages, err := compiler.Compile(cat, req)
		if err != nil {
			code := string(model.CodeOf(err))
			if code == "" {
				code = catalog.ErrCodeGeneric
			}
			return outputCompileError(formatter, code, err.Error(), map[string]string{"model": req.Model})
		}

		compiled, err := newCompiledPipeline(req, stages)
		if err != nil {
			return outputCompileError(formatter, catalog.ErrCodeGeneric, err.Error(), nil)
		}
		result.Pipelines = append(result.Pipelines, compiled)
	}

	storePath := settings.Store
	if opts.Store != "" {
		storePath = opts.Store
	}
	if storePath != "" {
		if err := storePipelines(cmd, opts.logger(), storePath, result); err != nil {
			return outputCompileError(formatter, catalog.ErrCodeWriteFailed, err.Error(), nil)
		}
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeJSONFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, catalog.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output, opts.Model != "" || opts.Request != "")
}

// loadCatalog loads the models directory and reports load errors. The
// returned error is already formatted for the CLI.
func loadCatalog(formatter *OutputFormatter, modelsDir string) (*catalog.Catalog, error) {
	loadResult, loadErrors := catalog.LoadDir(modelsDir, catalog.LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *catalog.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return nil, outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return nil, outputCompileError(formatter, catalog.ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, modelsDir)
	if len(loadErrors) > 0 {
		return nil, outputCompileErrors(formatter, loadErrors)
	}
	for _, name := range loadResult.Catalog.Names() {
		formatter.VerboseLog("Loaded model: %s", name)
	}
	return loadResult.Catalog, nil
}

// compileRequests builds the requests to compile. Explicit --views win over
// the request's views, which win over the configured defaults.
func compileRequests(opts *CompileOptions, cmd *cobra.Command, cat *catalog.Catalog, defaultViews []string) ([]*query.Request, error) {
	var requests []*query.Request
	switch {
	case opts.Request != "":
		req, err := query.LoadRequest(opts.Request)
		if err != nil {
			return nil, err
		}
		if opts.Model != "" {
			req.Model = opts.Model
		}
		requests = append(requests, req)
	case opts.Model != "":
		requests = append(requests, &query.Request{Model: opts.Model})
	default:
		for _, name := range cat.Names() {
			requests = append(requests, &query.Request{Model: name})
		}
	}

	for _, req := range requests {
		if cmd.Flags().Changed("views") {
			req.Views = opts.Views
		} else if req.Views == nil {
			req.Views = defaultViews
		}
	}
	return requests, nil
}

func newCompiledPipeline(req *query.Request, stages mongo.Pipeline) (CompiledPipeline, error) {
	raw, err := document.MarshalCanonical(stages)
	if err != nil {
		return CompiledPipeline{}, fmt.Errorf("marshaling pipeline: %w", err)
	}
	fingerprint, err := document.PipelineFingerprint(stages)
	if err != nil {
		return CompiledPipeline{}, err
	}
	views := req.Views
	if views == nil {
		views = []string{}
	}
	return CompiledPipeline{
		Model:       req.Model,
		Views:       views,
		Fingerprint: fingerprint,
		Operators:   operators(stages),
		Stages:      raw,
		pipeline:    stages,
	}, nil
}

// storePipelines saves every compiled pipeline in the plan store.
func storePipelines(cmd *cobra.Command, logger *slog.Logger, path string, result *CompilationResult) error {
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	for i := range result.Pipelines {
		p := &result.Pipelines[i]
		rec, inserted, err := st.SavePipeline(cmd.Context(), p.Model, p.Views, p.pipeline)
		if err != nil {
			return fmt.Errorf("storing %s pipeline: %w", p.Model, err)
		}
		p.Stored = &StoredPlan{Seq: rec.Seq, Fingerprint: rec.Fingerprint, Inserted: inserted}
	}
	return nil
}

func operators(stages mongo.Pipeline) []string {
	ops := make([]string, len(stages))
	for i, stage := range stages {
		if len(stage) > 0 {
			ops[i] = stage[0].Key
		}
	}
	return ops
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string, single bool) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	formatter.Pass("Compiled %d pipeline(s)", len(result.Pipelines))
	fmt.Fprintln(formatter.Writer)

	for _, p := range result.Pipelines {
		fmt.Fprintf(formatter.Writer, "%s [%s]: %d stage(s)\n", p.Model, strings.Join(p.Views, ","), len(p.Operators))
		formatter.Detail("%s", strings.Join(p.Operators, " "))
		if p.Stored != nil {
			state := "existing"
			if p.Stored.Inserted {
				state = "new"
			}
			formatter.Detail("stored #%d %s (%s)", p.Stored.Seq, shortFingerprint(p.Stored.Fingerprint), state)
		}
		if single {
			indented, err := document.Indent(p.pipeline)
			if err != nil {
				return err
			}
			fmt.Fprintln(formatter.Writer)
			formatter.Writer.Write(indented)
		}
	}

	if outputFile != "" {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "Wrote pipelines to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple load errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := formatter.EncodeIndented(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	formatter.Fail("Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *catalog.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return catalog.ErrCodeGeneric, err.Error()
}

// writeJSONFile writes v to a file as indented JSON.
func writeJSONFile(v any, filename string) error {
	// Indented for readability; canonical bytes are used only for hashing.
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
