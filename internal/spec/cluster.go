package spec

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ClusterSpec is a tiered server group document: Defaults apply to every
// region and Overrides replace or extend them per region.
type ClusterSpec struct {
	Moniker       Moniker                    `json:"moniker"`
	Locations     Locations                  `json:"locations"`
	ImageProvider ImageProvider              `json:"imageProvider,omitempty"`
	Defaults      ServerGroupSpec            `json:"defaults"`
	Overrides     map[string]ServerGroupSpec `json:"overrides,omitempty"`
}

// ServerGroupSpec is the shape shared by the defaults and override tiers.
// Nil fields are unset.
type ServerGroupSpec struct {
	LaunchConfiguration *LaunchConfigurationSpec `json:"launchConfiguration,omitempty"`
	Capacity            *Capacity                `json:"capacity,omitempty"`
	Dependencies        *Dependencies            `json:"dependencies,omitempty"`
	Health              *HealthSpec              `json:"health,omitempty"`
	Scaling             *ScalingSpec             `json:"scaling,omitempty"`
	Tags                map[string]string        `json:"tags,omitempty"`
}

// LaunchConfigurationSpec holds the launch parameters of a server group tier.
type LaunchConfigurationSpec struct {
	Image              *Image  `json:"image,omitempty"`
	InstanceType       *string `json:"instanceType,omitempty"`
	EBSOptimized       *bool   `json:"ebsOptimized,omitempty"`
	IAMRole            *string `json:"iamRole,omitempty"`
	KeyPair            *string `json:"keyPair,omitempty"`
	InstanceMonitoring *bool   `json:"instanceMonitoring,omitempty"`
	RamdiskID          *string `json:"ramdiskId,omitempty"`
	RequireIMDSv2      *bool   `json:"requireIMDSv2,omitempty"`
}

// Image is a concrete machine image in one region.
type Image struct {
	ID            string `json:"id"`
	AppVersion    string `json:"appVersion,omitempty"`
	BaseImageName string `json:"baseImageName,omitempty"`
}

// Capacity bounds the instance count of a server group.
type Capacity struct {
	Min     int  `json:"min"`
	Max     int  `json:"max"`
	Desired *int `json:"desired,omitempty"`
}

// Dependencies names the load balancers, security groups and target groups a
// server group attaches to.
type Dependencies struct {
	LoadBalancerNames  []string `json:"loadBalancerNames,omitempty"`
	SecurityGroupNames []string `json:"securityGroupNames,omitempty"`
	TargetGroups       []string `json:"targetGroups,omitempty"`
}

// HealthSpec holds auto scaling group health settings.
type HealthSpec struct {
	Cooldown            *Duration `json:"cooldown,omitempty"`
	Warmup              *Duration `json:"warmup,omitempty"`
	HealthCheckType     *string   `json:"healthCheckType,omitempty"`
	EnabledMetrics      []string  `json:"enabledMetrics,omitempty"`
	TerminationPolicies []string  `json:"terminationPolicies,omitempty"`
}

var healthCheckTypes = []string{"EC2", "ELB"}

func (*ClusterSpec) Kind() Kind { return KindCluster }
func (c *ClusterSpec) ID() string { return resourceID(c.Locations.Account, c.Moniker) }
func (c *ClusterSpec) Name() string { return c.Moniker.String() }
func (c *ClusterSpec) Account() string { return c.Locations.Account }
func (c *ClusterSpec) ResourceLocations() Locations { return c.Locations.Clone() }
func (*ClusterSpec) sealed() {}

func (c *ClusterSpec) WithLocations(l Locations) Spec {
	out := c.Clone()
	out.Locations = l.Clone()
	return out
}

// DependsOn returns the load balancer and security group names referenced
// by any tier.
func (c *ClusterSpec) DependsOn() []string {
	set := make(map[string]bool)
	add := func(d *Dependencies) {
		if d == nil {
			return
		}
		for _, n := range d.LoadBalancerNames {
			set[n] = true
		}
		for _, n := range d.SecurityGroupNames {
			set[n] = true
		}
	}
	add(c.Defaults.Dependencies)
	for _, o := range c.Overrides {
		add(o.Dependencies)
	}
	return slices.Sorted(maps.Keys(set))
}

// Override returns the override tier for a region, or an empty one.
func (c *ClusterSpec) Override(region string) ServerGroupSpec {
	if o, ok := c.Overrides[region]; ok {
		return o
	}
	return ServerGroupSpec{}
}

// Clone returns a deep copy. Resolvers modify clones, never the receiver.
func (c *ClusterSpec) Clone() *ClusterSpec {
	out := &ClusterSpec{
		Moniker:       c.Moniker,
		Locations:     c.Locations.Clone(),
		ImageProvider: c.ImageProvider,
		Defaults:      c.Defaults.Clone(),
	}
	if c.Overrides != nil {
		out.Overrides = make(map[string]ServerGroupSpec, len(c.Overrides))
		for r, o := range c.Overrides {
			out.Overrides[r] = o.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the tier.
func (s ServerGroupSpec) Clone() ServerGroupSpec {
	out := ServerGroupSpec{
		LaunchConfiguration: s.LaunchConfiguration.Clone(),
		Scaling:             s.Scaling.Clone(),
		Tags:                maps.Clone(s.Tags),
	}
	if s.Capacity != nil {
		c := *s.Capacity
		if s.Capacity.Desired != nil {
			c.Desired = aws.Int(*s.Capacity.Desired)
		}
		out.Capacity = &c
	}
	if s.Dependencies != nil {
		out.Dependencies = &Dependencies{
			LoadBalancerNames:  slices.Clone(s.Dependencies.LoadBalancerNames),
			SecurityGroupNames: slices.Clone(s.Dependencies.SecurityGroupNames),
			TargetGroups:       slices.Clone(s.Dependencies.TargetGroups),
		}
	}
	if s.Health != nil {
		h := *s.Health
		h.Cooldown = cloneDuration(s.Health.Cooldown)
		h.Warmup = cloneDuration(s.Health.Warmup)
		h.HealthCheckType = clonePtr(s.Health.HealthCheckType)
		h.EnabledMetrics = slices.Clone(s.Health.EnabledMetrics)
		h.TerminationPolicies = slices.Clone(s.Health.TerminationPolicies)
		out.Health = &h
	}
	return out
}

func (l *LaunchConfigurationSpec) Clone() *LaunchConfigurationSpec {
	if l == nil {
		return nil
	}
	out := &LaunchConfigurationSpec{
		InstanceType:       clonePtr(l.InstanceType),
		EBSOptimized:       clonePtr(l.EBSOptimized),
		IAMRole:            clonePtr(l.IAMRole),
		KeyPair:            clonePtr(l.KeyPair),
		InstanceMonitoring: clonePtr(l.InstanceMonitoring),
		RamdiskID:          clonePtr(l.RamdiskID),
		RequireIMDSv2:      clonePtr(l.RequireIMDSv2),
	}
	if l.Image != nil {
		img := *l.Image
		out.Image = &img
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDuration(d *Duration) *Duration {
	return clonePtr(d)
}

// Validate checks the cluster for contradictions. Capacity and scaling
// are checked per region on the merged tiers: a region either has a
// desired instance count or at least one scaling policy, never both.
func (c *ClusterSpec) Validate() error {
	v := &violations{}
	c.Moniker.validate(v, 0)
	c.Locations.validate(v)
	validateImageProvider(v, c.ImageProvider)
	validateOverrideRegions(v, c.Locations, c.Overrides)

	c.Defaults.validate(v, "defaults")
	regions := make([]string, 0, len(c.Overrides))
	for r := range c.Overrides {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	for _, r := range regions {
		c.Overrides[r].validate(v, "overrides."+r)
	}

	for _, region := range c.Locations.RegionNames() {
		o := c.Override(region)
		capacity := o.Capacity
		if capacity == nil {
			capacity = c.Defaults.Capacity
		}
		scaled := c.Defaults.Scaling.HasPolicies() || o.Scaling.HasPolicies()
		switch {
		case capacity == nil:
		case scaled && capacity.Desired != nil:
			v.addf("region %s: capacity.desired must not be set when scaling policies are defined", region)
		case !scaled && capacity.Desired == nil:
			v.addf("region %s: capacity.desired is required when no scaling policies are defined", region)
		}
	}
	return v.err(KindCluster, c.ID())
}

func (s ServerGroupSpec) validate(v *violations, tier string) {
	if c := s.Capacity; c != nil {
		if c.Min < 0 || c.Max < c.Min {
			v.addf("%s: capacity requires 0 <= min <= max, got min=%d max=%d", tier, c.Min, c.Max)
		}
		if c.Desired != nil && (*c.Desired < c.Min || *c.Desired > c.Max) {
			v.addf("%s: capacity.desired %d is outside [%d, %d]", tier, *c.Desired, c.Min, c.Max)
		}
	}
	if lc := s.LaunchConfiguration; lc != nil && lc.Image != nil && lc.Image.ID == "" {
		v.addf("%s: launchConfiguration.image requires an id", tier)
	}
	if h := s.Health; h != nil && h.HealthCheckType != nil && !slices.Contains(healthCheckTypes, *h.HealthCheckType) {
		v.addf("%s: unknown health check type %q", tier, *h.HealthCheckType)
	}
	s.Scaling.validate(v)
}

func (c *ClusterSpec) UnmarshalJSON(data []byte) error {
	type plain ClusterSpec
	var raw struct {
		plain
		ImageProvider json.RawMessage `json:"imageProvider"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	provider, err := decodeImageProvider(raw.ImageProvider)
	if err != nil {
		return err
	}
	*c = ClusterSpec(raw.plain)
	c.ImageProvider = provider
	return nil
}
