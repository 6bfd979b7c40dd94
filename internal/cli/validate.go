package cli

import (
	"fmt"

	"github.com/picklr-io/resolvr/internal/engine"
	"github.com/spf13/cobra"
)

func newValidateCmd(_ *app) *cobra.Command {
	var properties map[string]string
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Validate resource documents",
		Long: `Loads each document, checks every spec against its invariants and builds
the dependency graph. Nothing is read from the inventory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				fmt.Fprintf(out, "Checking %s... ", path)
				doc, err := loadDocument(cmd.Context(), path, properties)
				if err == nil {
					_, err = engine.BuildDAG(doc.Specs)
				}
				if err != nil {
					failed++
					fmt.Fprintln(out, "FAILED")
					fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", err)
					continue
				}
				fmt.Fprintf(out, "OK (%d resources)\n", len(doc.Specs))
			}
			if failed > 0 {
				return fmt.Errorf("validation failed for %d of %d document(s)", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVarP(&properties, "property", "p", nil, "External properties passed to Pkl documents")
	return cmd
}
