package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevemurr/xapi-server/sample"
	"github.com/stevemurr/xapi-server/store"
)

// DefaultGenerateOut is where generate writes when --out is not given.
const DefaultGenerateOut = "examples/generated-statements.jsonld"

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Count   int
	Out     string
	Context string
}

// NewGenerateCommand writes example statements to a JSON-LD file.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write example statements to a JSON-LD file",
		Long: `Write example xAPI statements as a JSON array.

Each statement gets a fresh urn:uuid id, the current UTC timestamp and an
@context pointing at the statement JSON-LD context.`,
		Example: `  xapi-server generate
  xapi-server generate --count 10 --out /tmp/statements.jsonld`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of statements to generate")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", DefaultGenerateOut, "output file")
	cmd.Flags().StringVar(&opts.Context, "context", sample.DefaultContext, "JSON-LD @context reference")

	return cmd
}

func runGenerate(cmd *cobra.Command, rootOpts *RootOptions, opts *GenerateOptions) error {
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--count must be at least 1, got %d", opts.Count))
	}

	gen := &sample.Generator{Context: opts.Context}
	docs := gen.Statements(opts.Count)
	if err := store.WriteDocuments(opts.Out, docs); err != nil {
		return WrapExitError(ExitCommandError, "write statements", err)
	}

	f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(
		map[string]any{"path": opts.Out, "count": len(docs)},
		fmt.Sprintf("Wrote %d example statement(s) to %s", len(docs), opts.Out),
	)
}
