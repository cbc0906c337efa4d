package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docmap/internal/catalog"
	"github.com/roach88/docmap/internal/document"
	"github.com/roach88/docmap/internal/store"
)

// PlansOptions holds flags for the plans command.
type PlansOptions struct {
	*RootOptions
	Store     string // plan store path, overriding config
	Model     string // list only this model's pipelines
	Show      string // pipeline fingerprint to print
	Validator string // model whose stored validator to print
	Dialect   string // validator dialect
}

// PlanEntry is one stored pipeline in a listing.
type PlanEntry struct {
	store.PipelineRecord
	StageCount int `json:"stage_count"`
}

// StoredDocument is a stored pipeline or validator with its document.
type StoredDocument struct {
	Record   any    `json:"record"`
	Document any    `json:"document"`
	Kind     string `json:"kind"`
}

// NewPlansCommand creates the plans command.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect the plan store",
		Long: `List pipelines and validators saved by compile --store and
validator --store.

Examples:
  docmap plans --store plans.db
  docmap plans --store plans.db --model Author
  docmap plans --store plans.db --show 3f2a...
  docmap plans --store plans.db --validator Author --dialect bson`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "plan store path")
	cmd.Flags().StringVar(&opts.Model, "model", "", "list only this model's pipelines")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the pipeline with this fingerprint (or unique prefix)")
	cmd.Flags().StringVar(&opts.Validator, "validator", "", "print the stored validator of this model")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", DialectBSON, "validator dialect (bson|json)")

	return cmd
}

func runPlans(opts *PlansOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	path := opts.settings().Store
	if opts.Store != "" {
		path = opts.Store
	}
	if path == "" {
		return outputCheckError(formatter, catalog.ErrCodeNotFound, "no plan store: set --store or store in the config", nil)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return outputCheckError(formatter, catalog.ErrCodeNotFound, fmt.Sprintf("plan store not found: %s", path), nil)
	}

	st, err := store.Open(path, store.WithLogger(opts.logger()))
	if err != nil {
		return outputCheckError(formatter, catalog.ErrCodeLoadFailed, fmt.Sprintf("opening plan store: %v", err), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.Show != "":
		rec, err := findPipeline(cmd, st, opts.Show)
		if errors.Is(err, sql.ErrNoRows) {
			return outputCheckError(formatter, catalog.ErrCodeNotFound, fmt.Sprintf("no pipeline with fingerprint %s", opts.Show), nil)
		}
		if err != nil {
			return outputCheckError(formatter, catalog.ErrCodeLoadFailed, err.Error(), nil)
		}
		return outputStoredDocument(formatter, "pipeline", rec, rec.Stages)

	case opts.Validator != "":
		rec, err := st.GetValidator(ctx, opts.Validator, opts.Dialect)
		if errors.Is(err, sql.ErrNoRows) {
			return outputCheckError(formatter, catalog.ErrCodeNotFound, fmt.Sprintf("no %s validator stored for %s", opts.Dialect, opts.Validator), nil)
		}
		if err != nil {
			return outputCheckError(formatter, catalog.ErrCodeLoadFailed, err.Error(), nil)
		}
		return outputStoredDocument(formatter, "validator", rec, rec.Document)
	}

	records, err := st.ListPipelines(ctx, opts.Model)
	if err != nil {
		return outputCheckError(formatter, catalog.ErrCodeLoadFailed, err.Error(), nil)
	}
	entries := make([]PlanEntry, len(records))
	for i, rec := range records {
		entries[i] = PlanEntry{PipelineRecord: rec, StageCount: len(rec.Stages)}
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No pipelines stored.")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%-5s %-12s %-16s %-6s %s\n", "SEQ", "FINGERPRINT", "MODEL", "STAGES", "VIEWS")
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%-5d %-12s %-16s %-6d %s\n",
			e.Seq, shortFingerprint(e.Fingerprint), e.Model, e.StageCount, strings.Join(e.Views, ","))
	}
	return nil
}

// findPipeline looks a pipeline up by fingerprint, accepting the unique
// prefix printed by the listing.
func findPipeline(cmd *cobra.Command, st *store.Store, fingerprint string) (store.PipelineRecord, error) {
	rec, err := st.GetPipeline(cmd.Context(), fingerprint)
	if !errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	records, err := st.ListPipelines(cmd.Context(), "")
	if err != nil {
		return store.PipelineRecord{}, err
	}
	var matches []store.PipelineRecord
	for _, r := range records {
		if strings.HasPrefix(r.Fingerprint, fingerprint) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return store.PipelineRecord{}, sql.ErrNoRows
	case 1:
		return matches[0], nil
	}
	return store.PipelineRecord{}, fmt.Errorf("fingerprint prefix %s is ambiguous (%d pipelines)", fingerprint, len(matches))
}

func outputStoredDocument(formatter *OutputFormatter, kind string, rec any, doc any) error {
	if formatter.Format == "json" {
		raw, err := document.MarshalCanonical(doc)
		if err != nil {
			return err
		}
		return formatter.Success(StoredDocument{Kind: kind, Record: rec, Document: json.RawMessage(raw)})
	}

	indented, err := document.Indent(doc)
	if err != nil {
		return err
	}
	_, err = formatter.Writer.Write(indented)
	return err
}
