package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/xapi-server/schema"
	"github.com/stevemurr/xapi-server/store"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	Shapes string
}

// DocumentReport is the validation outcome for one document.
type DocumentReport struct {
	Index  int      `json:"index"`
	ID     string   `json:"id,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateReport is the JSON payload of the validate command.
type ValidateReport struct {
	Documents string           `json:"documents"`
	Shapes    string           `json:"shapes"`
	Conforms  bool             `json:"conforms"`
	Results   []DocumentReport `json:"results"`
}

// NewValidateCommand checks a documents file against JSON Schema shapes.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <documents>",
		Short: "Validate documents against shapes",
		Long: `Validate a JSON or JSON-LD file holding one document or an array of
documents against a JSON Schema shapes file.

Without --shapes the built-in statement shapes are used: a statement needs an
identified actor, a verb with an IRI id and an object with an id.

Exit codes:
  0 - Every document conforms
  1 - At least one document does not conform
  2 - Command error (unreadable files, invalid shapes)`,
		Example: `  xapi-server validate examples/generated-statements.jsonld
  xapi-server validate statements.json --shapes my-shapes.json --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Shapes, "shapes", "s", "", "JSON Schema shapes file (default built-in statement shapes)")

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, opts *ValidateOptions, path string) error {
	docs, err := store.ReadDocuments(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read documents", err)
	}
	shapes, err := schema.LoadShapes(opts.Shapes)
	if err != nil {
		return WrapExitError(ExitCommandError, "load shapes", err)
	}

	shapesName := opts.Shapes
	if shapesName == "" {
		shapesName = "built-in statement shapes"
	}
	report := ValidateReport{Documents: path, Shapes: shapesName, Conforms: true}

	v := schema.NewValidator()
	for i, doc := range docs {
		res, err := v.Check(shapes, doc)
		if err != nil {
			return WrapExitError(ExitCommandError, "validate", err)
		}
		id, _ := doc.ID()
		report.Results = append(report.Results, DocumentReport{
			Index:  i,
			ID:     id,
			Valid:  res.Valid,
			Errors: res.Errors,
		})
		if !res.Valid {
			report.Conforms = false
		}
	}

	f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if report.Conforms {
		if err := f.Success(report, formatReport(report)+"Validation successful!"); err != nil {
			return err
		}
		return nil
	}
	if err := f.Failure(report, "documents do not conform", formatReport(report)+"Validation failed."); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "validation failed")
}

func formatReport(r ValidateReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Validating %s against %s...\n", r.Documents, r.Shapes)
	for _, res := range r.Results {
		name := res.ID
		if name == "" {
			name = fmt.Sprintf("document %d", res.Index)
		}
		if res.Valid {
			fmt.Fprintf(&b, "  ok    %s\n", name)
			continue
		}
		fmt.Fprintf(&b, "  FAIL  %s\n", name)
		for _, e := range (schema.Result{Errors: res.Errors}).Summary() {
			fmt.Fprintf(&b, "        - %s\n", e)
		}
	}
	return b.String()
}
