// Package resolver fills ambiguous spec fields from inventory. Every
// resolver is idempotent, leaves fields the user set untouched and returns
// a new spec rather than modifying its input.
package resolver

import (
	"context"
	"slices"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/spec"
)

// Resolver normalizes one aspect of a spec.
type Resolver interface {
	Name() string
	Supports(kind spec.Kind) bool
	// Resolve returns the spec with this resolver's fields filled in. It
	// returns UnsupportedResolverInvocationError for unsupported kinds.
	Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error)
}

// Chain runs an explicit, ordered list of resolvers.
type Chain struct {
	resolvers []Resolver
}

// NewChain returns a chain running resolvers in the given order.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: slices.Clone(resolvers)}
}

// DefaultChain returns the standard pipeline:
// network, availability zones, image, key pair, certificate.
func DefaultChain(approvals inventory.ApprovalRepository) *Chain {
	return NewChain(
		NewNetworkResolver(),
		NewAvailabilityZoneResolver(),
		NewImageResolver(approvals),
		NewKeyPairResolver(),
		NewCertificateResolver(),
	)
}

// Resolvers returns the chain members in order.
func (c *Chain) Resolvers() []Resolver {
	return slices.Clone(c.resolvers)
}

// Resolve passes the spec through every resolver that supports its kind.
func (c *Chain) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	for _, r := range c.resolvers {
		if !r.Supports(s.Kind()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := r.Resolve(ctx, s, inv)
		if err != nil {
			return nil, err
		}
		logging.Debug("resolver applied", "resolver", r.Name(), "resource", s.ID())
		s = next
	}
	return s, nil
}

type kindSet []spec.Kind

func (k kindSet) supports(kind spec.Kind) bool {
	return slices.Contains(k, kind)
}
