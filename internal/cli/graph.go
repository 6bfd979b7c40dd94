package cli

import (
	"fmt"

	"github.com/picklr-io/resolvr/internal/engine"
	"github.com/spf13/cobra"
)

func newGraphCmd(_ *app) *cobra.Command {
	var properties map[string]string
	cmd := &cobra.Command{
		Use:   "graph <document>",
		Short: "Output the dependency graph in DOT format",
		Long: `Generates the dependency graph of a document in Graphviz DOT format.
Dependencies on resources outside the document are not shown. Pipe the
output to 'dot' to generate an image:

  resolvr graph resources.pkl | dot -Tpng > graph.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd.Context(), args[0], properties)
			if err != nil {
				return err
			}
			dag, err := engine.BuildDAG(doc.Specs)
			if err != nil {
				return fmt.Errorf("failed to build graph: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "digraph resolvr {")
			fmt.Fprintln(out, `  rankdir = "BT";`)
			fmt.Fprintln(out, "  node [shape = rect];")
			fmt.Fprintln(out)
			for _, addr := range dag.Order() {
				fmt.Fprintf(out, "  %q;\n", addr)
			}
			fmt.Fprintln(out)
			for _, addr := range dag.Order() {
				for _, dep := range dag.Dependencies(addr) {
					fmt.Fprintf(out, "  %q -> %q;\n", addr, dep)
				}
			}
			fmt.Fprintln(out, "}")
			return nil
		},
	}
	cmd.Flags().StringToStringVarP(&properties, "property", "p", nil, "External properties passed to Pkl documents")
	return cmd
}
