package resolver

import (
	"context"
	"fmt"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/spec"
)

// ImageResolver sets a per-region image on clusters that take their image
// from an image provider. Regions with an explicit image are left alone.
type ImageResolver struct {
	approvals inventory.ApprovalRepository
}

// NewImageResolver creates an image resolver reading approvals from approvals.
func NewImageResolver(approvals inventory.ApprovalRepository) *ImageResolver {
	return &ImageResolver{approvals: approvals}
}

func (r *ImageResolver) Name() string { return "image" }

func (r *ImageResolver) Supports(kind spec.Kind) bool { return kind == spec.KindCluster }

func (r *ImageResolver) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	c, ok := s.(*spec.ClusterSpec)
	if !ok {
		return nil, &UnsupportedResolverInvocationError{Resolver: r.Name(), Kind: s.Kind()}
	}
	if c.ImageProvider == nil {
		return s, nil
	}
	regions := regionsWithoutImage(c)
	if len(regions) == 0 {
		return s, nil
	}

	version, err := r.appVersion(ctx, c)
	if err != nil {
		return nil, err
	}

	img, err := inv.Image(ctx, version, c.Locations.Account, regions)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to look up image for %s: %w", version, err)}
	}
	var missing []string
	for _, region := range regions {
		if img == nil || img.ImageIDs[region] == "" {
			missing = append(missing, region)
		}
	}
	if len(missing) > 0 {
		return nil, &NoImageFoundForRegionsError{ResourceID: c.ID(), AppVersion: version, Regions: missing}
	}

	out := c.Clone()
	if out.Overrides == nil {
		out.Overrides = make(map[string]spec.ServerGroupSpec, len(regions))
	}
	for _, region := range regions {
		o := out.Overrides[region]
		if o.LaunchConfiguration == nil {
			o.LaunchConfiguration = &spec.LaunchConfigurationSpec{}
		}
		o.LaunchConfiguration.Image = &spec.Image{
			ID:            img.ImageIDs[region],
			AppVersion:    img.AppVersion,
			BaseImageName: img.BaseImageName,
		}
		out.Overrides[region] = o
	}
	logging.Debug("resolved image", "resource", c.ID(), "appVersion", version, "image", img.Name)
	return out, nil
}

func (r *ImageResolver) appVersion(ctx context.Context, c *spec.ClusterSpec) (string, error) {
	switch p := c.ImageProvider.(type) {
	case spec.VersionImageProvider:
		return p.AppVersion, nil
	case spec.ArtifactImageProvider:
		if r.approvals == nil {
			return "", &LookupError{Resolver: r.Name(), Err: fmt.Errorf("no approval repository configured")}
		}
		version, ok, err := r.approvals.LatestVersionApprovedIn(ctx, p.DeliveryConfig, p.Artifact, p.Environment)
		if err != nil {
			return "", &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to look up approved version of %s: %w", p.Artifact, err)}
		}
		if !ok {
			return "", &NoImageSatisfiesConstraintsError{ResourceID: c.ID(), Artifact: p.Artifact, Environment: p.Environment}
		}
		return version, nil
	default:
		return "", fmt.Errorf("unsupported image provider %T", p)
	}
}

// regionsWithoutImage returns the sorted regions that have no image in
// either tier.
func regionsWithoutImage(c *spec.ClusterSpec) []string {
	if lc := c.Defaults.LaunchConfiguration; lc != nil && lc.Image != nil {
		return nil
	}
	var regions []string
	for _, region := range c.Locations.RegionNames() {
		if lc := c.Override(region).LaunchConfiguration; lc != nil && lc.Image != nil {
			continue
		}
		regions = append(regions, region)
	}
	return regions
}
