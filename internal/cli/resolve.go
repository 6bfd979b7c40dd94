package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/picklr-io/resolvr/internal/engine"
	"github.com/picklr-io/resolvr/internal/eval"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/regional"
	"github.com/picklr-io/resolvr/internal/resolver"
	"github.com/picklr-io/resolvr/internal/spec"
	"github.com/picklr-io/resolvr/internal/state"
	"github.com/spf13/cobra"
)

type resolveOptions struct {
	targets    []string
	properties map[string]string
	outFile    string
	record     bool
	audit      bool
}

// outcomeView is the JSON form of one resolved spec.
type outcomeView struct {
	Address   string              `json:"address"`
	Kind      spec.Kind           `json:"kind"`
	ID        string              `json:"id"`
	Resources []regional.Resource `json:"resources,omitempty"`
	Error     string              `json:"error,omitempty"`
	Attempts  int                 `json:"attempts"`
}

func newResolveCmd(a *app) *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <document>",
		Short: "Resolve a document into per-region resources",
		Long: `Resolves every spec of a document against the inventory and prints the
per-region resources as JSON, in dependency order.

With --audit, the output is compared with the last resolved record and the
differences are printed to stderr. With --record, the result becomes the new
last resolved record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runResolve(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.targets, "target", "t", nil, "Resolve only these addresses and their dependencies")
	cmd.Flags().StringToStringVarP(&opts.properties, "property", "p", nil, "External properties passed to Pkl documents")
	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "Write the resolved resources to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Store the result as the last resolved record")
	cmd.Flags().BoolVar(&opts.audit, "audit", false, "Report differences from the last resolved record")
	return cmd
}

func (a *app) runResolve(cmd *cobra.Command, path string, opts *resolveOptions) error {
	ctx := cmd.Context()

	doc, err := loadDocument(ctx, path, opts.properties)
	if err != nil {
		return err
	}

	src, err := a.registry.Load(ctx, a.cfg)
	if err != nil {
		return err
	}

	eng := engine.New(
		resolver.DefaultChain(src.Approvals),
		src.Snapshot,
		engine.WithParallelism(a.cfg.Engine.Parallelism),
		engine.WithResourceTimeout(a.cfg.Engine.Timeout),
		engine.WithRetryPolicy(&engine.RetryPolicy{
			MaxRetries: a.cfg.Engine.MaxRetries,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
		}),
	)

	result, err := eng.ResolveWithCallback(ctx, doc.Specs, opts.targets, logEvent)
	if err != nil {
		return err
	}

	if err := writeOutcomes(cmd.OutOrStdout(), opts.outFile, result); err != nil {
		return err
	}

	if opts.audit || opts.record {
		if err := a.compareAndRecord(ctx, cmd.ErrOrStderr(), result, opts); err != nil {
			return err
		}
	}
	return result.Err()
}

func loadDocument(ctx context.Context, path string, properties map[string]string) (*eval.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return eval.NewEvaluator(filepath.Dir(abs)).LoadDocument(ctx, abs, properties)
}

func logEvent(ev engine.Event) {
	switch ev.Status {
	case "retrying":
		logging.Warn("retrying", "address", ev.Address, "attempt", ev.Attempt, "error", ev.Error)
	case "completed":
		logging.Info("resolved", "address", ev.Address, "attempts", ev.Attempt, "duration", ev.Duration)
	case "failed":
		logging.Error("resolution failed", "address", ev.Address, "attempts", ev.Attempt, "error", ev.Error)
	}
}

func writeOutcomes(stdout io.Writer, outFile string, result *engine.Result) error {
	views := make([]outcomeView, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		v := outcomeView{
			Address:   o.Address,
			Kind:      o.Kind,
			ID:        o.ID,
			Resources: o.Resources,
			Attempts:  o.Attempts,
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		views = append(views, v)
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal resolved resources: %w", err)
	}
	data = append(data, '\n')

	if outFile == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}
	return nil
}

func (a *app) compareAndRecord(ctx context.Context, stderr io.Writer, result *engine.Result, opts *resolveOptions) error {
	backend, err := state.NewBackend(ctx, &a.cfg.State)
	if err != nil {
		return fmt.Errorf("failed to initialize state backend: %w", err)
	}

	if opts.record {
		if err := backend.Lock(ctx); err != nil {
			return fmt.Errorf("failed to lock last resolved record: %w", err)
		}
		defer func() {
			if err := backend.Unlock(ctx); err != nil {
				logging.Warn("failed to unlock last resolved record", "error", err)
			}
		}()
	}

	prior, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last resolved record: %w", err)
	}

	if opts.audit {
		drifts, err := engine.Audit(prior, result)
		if err != nil {
			return fmt.Errorf("audit failed: %w", err)
		}
		renderDrifts(stderr, drifts)
	}

	if opts.record {
		next, err := result.Record(prior)
		if err != nil {
			return fmt.Errorf("failed to build record: %w", err)
		}
		if err := backend.Write(ctx, next); err != nil {
			return fmt.Errorf("failed to write last resolved record: %w", err)
		}
		logging.Info("recorded resolution", "resources", len(next.Resources))
	}
	return nil
}

var driftSymbols = map[string]string{
	"create": "+",
	"update": "~",
	"delete": "-",
}

func renderDrifts(w io.Writer, drifts []engine.Drift) {
	changed := 0
	for _, d := range drifts {
		symbol, ok := driftSymbols[d.Action]
		if !ok {
			continue
		}
		changed++
		fmt.Fprintf(w, "%s %s\n", symbol, d.Address)

		keys := make([]string, 0, len(d.Diff))
		for k := range d.Diff {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			diff := d.Diff[k]
			switch diff.Action {
			case "create":
				fmt.Fprintf(w, "    + %s = %v\n", k, diff.After)
			case "delete":
				fmt.Fprintf(w, "    - %s = %v\n", k, diff.Before)
			default:
				fmt.Fprintf(w, "    ~ %s = %v -> %v\n", k, diff.Before, diff.After)
			}
		}
	}
	if changed == 0 {
		fmt.Fprintln(w, "No changes since the last resolution.")
	}
}
