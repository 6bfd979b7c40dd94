package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/picklr-io/resolvr/internal/state"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [address]",
		Short: "Show the last resolved record",
		Long:  `Displays the last resolved record, or one resource of it.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := state.NewBackend(ctx, &a.cfg.State)
			if err != nil {
				return fmt.Errorf("failed to initialize state backend: %w", err)
			}
			rec, err := backend.Read(ctx)
			if err != nil {
				return fmt.Errorf("failed to read last resolved record: %w", err)
			}

			resources := rec.Resources
			if len(args) == 1 {
				res := rec.Resource(args[0])
				if res == nil {
					return fmt.Errorf("resource %s not found in the last resolved record", args[0])
				}
				resources = []state.ResourceRecord{*res}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				var v any = rec
				if len(args) == 1 {
					v = resources[0]
				}
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal record: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(args) == 0 {
				fmt.Fprintf(out, "Record: version=%d serial=%d lineage=%s\n", rec.Version, rec.Serial, rec.Lineage)
				if !rec.ResolvedAt.IsZero() {
					fmt.Fprintf(out, "Resolved: %s\n", rec.ResolvedAt.Format("2006-01-02T15:04:05Z07:00"))
				}
				fmt.Fprintf(out, "Resources: %d\n\n", len(rec.Resources))
			}
			for _, res := range resources {
				fmt.Fprintf(out, "# %s\n", res.Address)
				for _, region := range sortedKeys(res.Regions) {
					fmt.Fprintf(out, "  [%s]\n", region)
					props := res.Regions[region]
					for _, k := range sortedKeys(props) {
						fmt.Fprintf(out, "    %s = %v\n", k, props[k])
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
