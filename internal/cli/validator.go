package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/catalog"
	"github.com/roach88/docmap/internal/document"
	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/store"
	"github.com/roach88/docmap/internal/validator"
)

// Validator dialect names, as stored in the plan store.
const (
	DialectBSON = "bson"
	DialectJSON = "json"
)

// ValidatorOptions holds flags for the validator command.
type ValidatorOptions struct {
	*RootOptions
	Model      string // model to build; every model when empty
	JSONSchema bool   // draft-4 JSON Schema instead of $jsonSchema
	Check      string // JSON document file to check against Model
	Store      string // plan store path, overriding config
}

// BuiltValidator is one compiled collection validator.
type BuiltValidator struct {
	Model       string          `json:"model"`
	Collection  string          `json:"collection,omitempty"`
	Dialect     string          `json:"dialect"`
	Fingerprint string          `json:"fingerprint"`
	Revision    int64           `json:"revision,omitempty"`
	Document    json.RawMessage `json:"document"`

	doc bson.D
}

// CheckResult reports an offline document check.
type CheckResult struct {
	Model      string   `json:"model"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// NewValidatorCommand creates the validator command.
func NewValidatorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidatorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validator <models-dir>",
		Short: "Build collection validators from model declarations",
		Long: `Build the $jsonSchema validator a collection enforces on write.

With --json-schema the same constraints are rendered as a draft-4 JSON
Schema for plain JSON documents. With --check a JSON document file is
validated offline against the model and violations are listed.

Exit codes:
  0 - Validators built (or the document conforms)
  1 - The checked document violates the model
  2 - Command error (invalid paths, unknown model, etc.)

Examples:
  docmap validator ./models --model Author
  docmap validator ./models --json-schema --format json
  docmap validator ./models --model Author --check author.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidator(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "model to build")
	cmd.Flags().BoolVar(&opts.JSONSchema, "json-schema", false, "emit draft-4 JSON Schema instead of $jsonSchema")
	cmd.Flags().StringVar(&opts.Check, "check", "", "JSON document file to validate against --model")
	cmd.Flags().StringVar(&opts.Store, "store", "", "plan store path")

	return cmd
}

func runValidator(opts *ValidatorOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cat, err := loadCatalog(formatter, modelsDir)
	if err != nil {
		return err
	}

	models := cat.Models()
	if opts.Model != "" {
		m, ok := cat.Model(opts.Model)
		if !ok {
			return outputCompileError(formatter, catalog.ErrCodeUnknownModel, fmt.Sprintf("unknown model %q", opts.Model), nil)
		}
		models = []*model.Model{m}
	}

	if opts.Check != "" {
		if opts.Model == "" {
			return outputCompileError(formatter, catalog.ErrCodeGeneric, "--check requires --model", nil)
		}
		return runDocumentCheck(formatter, models[0], opts.Check)
	}

	dialect, dialectName := validator.BSON, DialectBSON
	if opts.JSONSchema {
		dialect, dialectName = validator.JSON, DialectJSON
	}

	built := make([]BuiltValidator, 0, len(models))
	for _, m := range models {
		formatter.VerboseLog("Building %s validator for %s", dialectName, m.Name)
		doc, err := validator.BuildDialect(m, dialect)
		if err != nil {
			code := string(model.CodeOf(err))
			if code == "" {
				code = catalog.ErrCodeGeneric
			}
			return outputCompileError(formatter, code, err.Error(), map[string]string{"model": m.Name})
		}
		if dialect == validator.BSON {
			doc = bson.D{{Key: "$jsonSchema", Value: doc}}
		}
		bv, err := newBuiltValidator(m, dialectName, doc)
		if err != nil {
			return outputCompileError(formatter, catalog.ErrCodeGeneric, err.Error(), nil)
		}
		built = append(built, bv)
	}

	storePath := opts.settings().Store
	if opts.Store != "" {
		storePath = opts.Store
	}
	if storePath != "" {
		if err := storeValidators(cmd, opts.logger(), storePath, built); err != nil {
			return outputCompileError(formatter, catalog.ErrCodeWriteFailed, err.Error(), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(built)
	}

	for _, bv := range built {
		header := bv.Model
		if bv.Collection != "" {
			header += " (" + bv.Collection + ")"
		}
		formatter.Pass("%s", header)
		if bv.Revision > 0 {
			formatter.Detail("stored revision %d", bv.Revision)
		}
		indented, err := document.Indent(bv.doc)
		if err != nil {
			return err
		}
		formatter.Writer.Write(indented)
	}
	return nil
}

func newBuiltValidator(m *model.Model, dialect string, doc bson.D) (BuiltValidator, error) {
	raw, err := document.MarshalCanonical(doc)
	if err != nil {
		return BuiltValidator{}, fmt.Errorf("marshaling validator: %w", err)
	}
	fingerprint, err := document.Fingerprint(document.DomainValidator, doc)
	if err != nil {
		return BuiltValidator{}, err
	}
	return BuiltValidator{
		Model:       m.Name,
		Collection:  m.Collection,
		Dialect:     dialect,
		Fingerprint: fingerprint,
		Document:    raw,
		doc:         doc,
	}, nil
}

// storeValidators upserts the validators into the plan store.
func storeValidators(cmd *cobra.Command, logger *slog.Logger, path string, built []BuiltValidator) error {
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	for i := range built {
		bv := &built[i]
		rec, err := st.SaveValidator(cmd.Context(), bv.Model, bv.Dialect, bv.doc)
		if err != nil {
			return fmt.Errorf("storing %s validator: %w", bv.Model, err)
		}
		bv.Revision = rec.Revision
	}
	return nil
}

// runDocumentCheck validates a JSON document file against m.
func runDocumentCheck(formatter *OutputFormatter, m *model.Model, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return outputCompileError(formatter, catalog.ErrCodeNotFound, fmt.Sprintf("reading document: %v", err), nil)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return outputCompileError(formatter, catalog.ErrCodeGeneric, fmt.Sprintf("parsing document %s: %v", path, err), nil)
	}

	result := CheckResult{Model: m.Name, Valid: true}
	if err := validator.Check(m, doc); err != nil {
		var docErr *validator.DocumentError
		if !errors.As(err, &docErr) {
			return outputCompileError(formatter, catalog.ErrCodeGeneric, err.Error(), nil)
		}
		result.Valid = false
		result.Violations = docErr.Violations
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_DOCUMENT_INVALID",
				Message: fmt.Sprintf("document violates model %s", m.Name),
			}
		}
		if err := formatter.EncodeIndented(response); err != nil {
			return err
		}
	} else if result.Valid {
		formatter.Pass("Document matches %s", m.Name)
	} else {
		formatter.Fail("Document violates %s", m.Name)
		for _, v := range result.Violations {
			fmt.Fprintf(formatter.Writer, "  %s\n", v)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("document violates model %s (%d violation(s))", m.Name, len(result.Violations)))
	}
	return nil
}
