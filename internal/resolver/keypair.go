package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/spec"
)

// RegionPlaceholder is replaced by the region name in templated key pairs.
const RegionPlaceholder = "{{region}}"

// KeyPairResolver applies the account's default key pair to clusters that
// do not set one. A templated default becomes one override per region.
type KeyPairResolver struct{}

// NewKeyPairResolver creates a key pair resolver.
func NewKeyPairResolver() *KeyPairResolver {
	return &KeyPairResolver{}
}

func (r *KeyPairResolver) Name() string { return "key-pair" }

func (r *KeyPairResolver) Supports(kind spec.Kind) bool { return kind == spec.KindCluster }

func (r *KeyPairResolver) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	c, ok := s.(*spec.ClusterSpec)
	if !ok {
		return nil, &UnsupportedResolverInvocationError{Resolver: r.Name(), Kind: s.Kind()}
	}
	if lc := c.Defaults.LaunchConfiguration; lc != nil && lc.KeyPair != nil {
		return s, nil
	}

	def, err := inv.DefaultKeyPair(ctx, c.Locations.Account)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to look up default key pair for %s: %w", c.Locations.Account, err)}
	}
	if def == "" {
		return s, nil
	}

	if !strings.Contains(def, RegionPlaceholder) {
		out := c.Clone()
		if out.Defaults.LaunchConfiguration == nil {
			out.Defaults.LaunchConfiguration = &spec.LaunchConfigurationSpec{}
		}
		out.Defaults.LaunchConfiguration.KeyPair = &def
		logging.Debug("resolved key pair", "resource", c.ID(), "keyPair", def)
		return out, nil
	}

	var pending []string
	for _, region := range c.Locations.RegionNames() {
		if lc := c.Override(region).LaunchConfiguration; lc != nil && lc.KeyPair != nil {
			continue
		}
		pending = append(pending, region)
	}
	if len(pending) == 0 {
		return s, nil
	}

	out := c.Clone()
	if out.Overrides == nil {
		out.Overrides = make(map[string]spec.ServerGroupSpec, len(pending))
	}
	for _, region := range pending {
		keyPair := strings.ReplaceAll(def, RegionPlaceholder, region)
		o := out.Overrides[region]
		if o.LaunchConfiguration == nil {
			o.LaunchConfiguration = &spec.LaunchConfigurationSpec{}
		}
		o.LaunchConfiguration.KeyPair = &keyPair
		out.Overrides[region] = o
		logging.Debug("resolved key pair", "resource", c.ID(), "region", region, "keyPair", keyPair)
	}
	return out, nil
}
