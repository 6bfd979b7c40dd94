// Package provider maps inventory provider names to the inventory sources
// the resolvers consult.
package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/picklr-io/resolvr/internal/config"
	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/providers/aws"
)

// Source is a loaded inventory: the snapshot the resolvers read and the
// approval repository behind artifact image providers.
type Source struct {
	Snapshot  inventory.Snapshot
	Approvals inventory.ApprovalRepository
}

// Factory builds a Source from configuration.
type Factory func(ctx context.Context, cfg *config.Config) (*Source, error)

// Registry manages the known inventory providers and the sources loaded
// from them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	sources   map[string]*Source
}

// NewRegistry returns a registry with the built-in "file" and "aws"
// providers.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		sources:   make(map[string]*Source),
	}
	r.Register("file", fileSource)
	r.Register("aws", awsSource)
	return r
}

// Register adds or replaces a provider factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.sources, name)
}

// Names lists the registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Load initializes the configured provider once and wraps its snapshot in
// an inventory.Cache. Later calls return the same source.
func (r *Registry) Load(ctx context.Context, cfg *config.Config) (*Source, error) {
	name := cfg.Inventory.Provider
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sources[name]; ok {
		return s, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", name, err)
	}
	if cfg.Approvals.Source == "dynamodb" {
		s.Approvals, err = aws.NewApprovalsFromConfig(ctx, cfg.Approvals.Table, cfg.Approvals.Region, cfg.Approvals.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load approvals: %w", err)
		}
	}
	s.Snapshot = inventory.NewCache(s.Snapshot, cfg.Inventory.CacheTTL)
	r.sources[name] = s
	return s, nil
}

// Get returns a loaded source.
func (r *Registry) Get(name string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return s, nil
}

func fileSource(_ context.Context, cfg *config.Config) (*Source, error) {
	mem, err := inventory.LoadFile(cfg.Inventory.File)
	if err != nil {
		return nil, err
	}
	return &Source{Snapshot: mem, Approvals: mem}, nil
}

func awsSource(_ context.Context, cfg *config.Config) (*Source, error) {
	accounts := make([]aws.Account, 0, len(cfg.Inventory.Accounts))
	for _, a := range cfg.Inventory.Accounts {
		accounts = append(accounts, aws.Account{Name: a.Name, Profile: a.Profile, Regions: a.Regions})
	}
	inv, err := aws.New(aws.Options{
		Accounts:      accounts,
		KeyPairPrefix: cfg.Inventory.KeyPairPrefix,
	})
	if err != nil {
		return nil, err
	}
	return &Source{Snapshot: inv}, nil
}
