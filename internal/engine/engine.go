// Package engine resolves whole documents: it runs every spec through the
// resolver chain and the regional fan-out, concurrently, with a timeout
// and retries per spec, and reports the outcomes in dependency order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/regional"
	"github.com/picklr-io/resolvr/internal/resolver"
	"github.com/picklr-io/resolvr/internal/spec"
	"golang.org/x/sync/errgroup"
)

const defaultParallelism = 10

// Engine orchestrates resolution of many specs against one inventory.
type Engine struct {
	chain       *resolver.Chain
	inventory   inventory.Snapshot
	parallelism int
	timeout     time.Duration
	retry       *RetryPolicy
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism bounds how many specs resolve at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithResourceTimeout bounds the resolution of a single spec.
func WithResourceTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRetryPolicy sets how retryable failures are retried.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// New creates an engine resolving specs through chain against inv.
func New(chain *resolver.Chain, inv inventory.Snapshot, opts ...Option) *Engine {
	e := &Engine{
		chain:       chain,
		inventory:   inv,
		parallelism: defaultParallelism,
		timeout:     DefaultTimeout,
		retry:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Event reports progress on one spec.
type Event struct {
	Address  string
	Status   string // "started", "retrying", "completed", "failed"
	Attempt  int
	Duration time.Duration
	Error    error
}

// Callback receives events. Calls are serialized.
type Callback func(Event)

// Outcome is the result of resolving one spec.
type Outcome struct {
	Address   string
	Kind      spec.Kind
	ID        string
	Spec      spec.Spec // normalized by the resolver chain; nil on failure
	Resources []regional.Resource
	Err       error
	Attempts  int
	Duration  time.Duration
}

// Result holds the outcomes of a document in dependency order.
type Result struct {
	Outcomes []*Outcome
	graph    *DAG
}

// Outcome returns the outcome for an address, or nil.
func (r *Result) Outcome(addr string) *Outcome {
	for _, o := range r.Outcomes {
		if o.Address == addr {
			return o
		}
	}
	return nil
}

// Graph returns the dependency graph the result was ordered by.
func (r *Result) Graph() *DAG {
	return r.graph
}

// Failed returns the outcomes that carry an error.
func (r *Result) Failed() []*Outcome {
	var out []*Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Err joins the errors of all failed outcomes.
func (r *Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, o := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", o.Address, o.Err))
	}
	return fmt.Errorf("%d resource(s) failed: %w", len(failed), errors.Join(errs...))
}

// Resolve resolves every spec of a document.
func (e *Engine) Resolve(ctx context.Context, specs []spec.Spec) (*Result, error) {
	return e.ResolveWithCallback(ctx, specs, nil, nil)
}

// ResolveWithCallback resolves the specs at the target addresses and
// their transitive dependencies, or every spec when targets is empty.
// The returned error covers document-level problems only; per-spec
// failures are reported in the outcomes.
func (e *Engine) ResolveWithCallback(ctx context.Context, specs []spec.Spec, targets []string, callback Callback) (*Result, error) {
	dag, err := BuildDAG(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	selected, err := selectTargets(dag, targets)
	if err != nil {
		return nil, err
	}

	byAddr := make(map[string]spec.Spec, len(specs))
	for _, s := range specs {
		byAddr[Address(s)] = s
	}

	var emitMu sync.Mutex
	emit := func(ev Event) {
		if callback == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		callback(ev)
	}

	order := dag.Order()
	outcomes := make([]*Outcome, 0, len(order))
	for _, addr := range order {
		if selected == nil || selected[addr] {
			s := byAddr[addr]
			outcomes = append(outcomes, &Outcome{Address: addr, Kind: s.Kind(), ID: s.ID()})
		}
	}

	logging.Debug("resolving document", "resources", len(outcomes), "parallelism", e.parallelism)

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for _, o := range outcomes {
		g.Go(func() error {
			e.resolveOne(ctx, byAddr[o.Address], o, emit)
			return nil
		})
	}
	_ = g.Wait()

	return &Result{Outcomes: outcomes, graph: dag}, nil
}

func (e *Engine) resolveOne(ctx context.Context, s spec.Spec, o *Outcome, emit func(Event)) {
	log := logging.With("address", o.Address)
	start := time.Now()
	emit(Event{Address: o.Address, Status: "started"})

	ctx, cancel := WithTimeout(ctx, e.timeout)
	defer cancel()

	err := RetryWithBackoff(ctx, e.retry, func() error {
		o.Attempts++
		if err := ctx.Err(); err != nil {
			return err
		}
		normalized, err := e.chain.Resolve(ctx, s, e.inventory)
		if err == nil {
			var resources []regional.Resource
			resources, err = regional.Resolve(normalized)
			if err == nil {
				o.Spec, o.Resources = normalized, resources
				return nil
			}
		}
		if IsRetryable(err) {
			log.Warn("resolution failed, retrying", "attempt", o.Attempts, "error", err)
			emit(Event{Address: o.Address, Status: "retrying", Attempt: o.Attempts, Error: err})
		}
		return err
	}, IsRetryable)

	o.Duration = time.Since(start)
	if err != nil {
		o.Err = err
		var unsupported *resolver.UnsupportedResolverInvocationError
		if errors.As(err, &unsupported) {
			log.Error("resolver dispatch defect", "resolver", unsupported.Resolver, "kind", unsupported.Kind)
		} else {
			log.Warn("resolution failed", "attempts", o.Attempts, "error", err)
		}
		emit(Event{Address: o.Address, Status: "failed", Attempt: o.Attempts, Duration: o.Duration, Error: err})
		return
	}

	log.Info("resolved", "regions", len(o.Resources), "attempts", o.Attempts, "duration", o.Duration)
	emit(Event{Address: o.Address, Status: "completed", Attempt: o.Attempts, Duration: o.Duration})
}

func selectTargets(dag *DAG, targets []string) (map[string]bool, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	selected := make(map[string]bool)
	for _, t := range targets {
		if !dag.Has(t) {
			return nil, fmt.Errorf("target %s is not in the document", t)
		}
		selected[t] = true
		for _, dep := range dag.TransitiveDeps(t) {
			selected[dep] = true
		}
	}
	return selected, nil
}

// Addresses returns the addresses of outcomes, in order.
func (r *Result) Addresses() []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Address)
	}
	return out
}
