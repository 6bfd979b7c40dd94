// Package regional fans tiered specs out into one concrete desired state
// per region. Everything here is pure: no I/O, and the same spec always
// yields an identical result.
package regional

import (
	"fmt"
	"slices"
	"time"

	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/spec"
)

const (
	DefaultCooldown        = 10 * time.Second
	DefaultWarmup          = 300 * time.Second
	DefaultHealthCheckType = "EC2"
)

// DefaultTerminationPolicies applies when no tier names a termination policy.
var DefaultTerminationPolicies = []string{"OldestInstance"}

// DefaultIAMRole is the instance profile used when no tier names one.
func DefaultIAMRole(app string) string {
	return app + "InstanceProfile"
}

// ResolveCluster returns one server group per declared region, sorted by
// region. If any region is missing a required field the whole cluster
// fails and no server groups are returned.
func ResolveCluster(c *spec.ClusterSpec) ([]ServerGroup, error) {
	regions := c.Locations.Clone().Regions
	groups := make([]ServerGroup, 0, len(regions))
	for _, region := range regions {
		sg, err := resolveServerGroup(c, region)
		if err != nil {
			return nil, err
		}
		groups = append(groups, sg)
	}
	return groups, nil
}

func resolveServerGroup(c *spec.ClusterSpec, region spec.RegionSpec) (ServerGroup, error) {
	id := c.ID()
	override := c.Override(region.Name)
	defaults := c.Defaults
	field := func(name string) merge.Field {
		return merge.Field{Name: name, Region: region.Name, ResourceID: id}
	}

	launch, err := resolveLaunchConfiguration(c.Moniker.App, launchOf(override), launchOf(defaults), field)
	if err != nil {
		return ServerGroup{}, err
	}

	scaling := resolveScaling(defaults.Scaling, override.Scaling)
	scaled := len(scaling.TargetTracking) > 0 || len(scaling.Step) > 0

	return ServerGroup{
		ID:   id,
		Name: c.Moniker.String(),
		Location: Location{
			Account:           c.Locations.Account,
			Region:            region.Name,
			VPC:               c.Locations.VPC,
			Subnet:            c.Locations.Subnet,
			AvailabilityZones: merge.Union(region.AvailabilityZones),
		},
		LaunchConfiguration: launch,
		Capacity:            resolveCapacity(merge.First(override.Capacity, defaults.Capacity), scaled),
		Dependencies:        resolveDependencies(defaults.Dependencies, override.Dependencies),
		Health:              resolveHealth(healthOf(override), healthOf(defaults)),
		Scaling:             scaling,
		Tags:                merge.Overlay(defaults.Tags, override.Tags),
	}, nil
}

func launchOf(s spec.ServerGroupSpec) spec.LaunchConfigurationSpec {
	if s.LaunchConfiguration == nil {
		return spec.LaunchConfigurationSpec{}
	}
	return *s.LaunchConfiguration
}

func healthOf(s spec.ServerGroupSpec) spec.HealthSpec {
	if s.Health == nil {
		return spec.HealthSpec{}
	}
	return *s.Health
}

func resolveLaunchConfiguration(app string, o, d spec.LaunchConfigurationSpec, field func(string) merge.Field) (LaunchConfiguration, error) {
	image, err := merge.Scalar(field("launchConfiguration.image"), o.Image, d.Image)
	if err != nil {
		return LaunchConfiguration{}, err
	}
	instanceType, err := merge.Scalar(field("launchConfiguration.instanceType"), o.InstanceType, d.InstanceType)
	if err != nil {
		return LaunchConfiguration{}, err
	}
	role := DefaultIAMRole(app)
	iamRole, err := merge.Scalar(field("launchConfiguration.iamRole"), o.IAMRole, d.IAMRole, &role)
	if err != nil {
		return LaunchConfiguration{}, err
	}
	keyPair, err := merge.Scalar(field("launchConfiguration.keyPair"), o.KeyPair, d.KeyPair)
	if err != nil {
		return LaunchConfiguration{}, err
	}

	return LaunchConfiguration{
		ImageID:            image.ID,
		AppVersion:         image.AppVersion,
		BaseImageName:      image.BaseImageName,
		InstanceType:       instanceType,
		EBSOptimized:       merge.ScalarOr(false, o.EBSOptimized, d.EBSOptimized),
		IAMRole:            iamRole,
		KeyPair:            keyPair,
		InstanceMonitoring: merge.ScalarOr(false, o.InstanceMonitoring, d.InstanceMonitoring),
		RamdiskID:          merge.ScalarOr("", o.RamdiskID, d.RamdiskID),
		RequireIMDSv2:      merge.ScalarOr(false, o.RequireIMDSv2, d.RequireIMDSv2),
	}, nil
}

// resolveCapacity defaults to (1, 1, 1). A scaled group leaves desired
// unset so the scaling policies own it.
func resolveCapacity(c *spec.Capacity, scaled bool) Capacity {
	if c == nil {
		c = &spec.Capacity{Min: 1, Max: 1}
		if !scaled {
			one := 1
			c.Desired = &one
		}
	}
	out := Capacity{Min: c.Min, Max: c.Max}
	if c.Desired != nil && !scaled {
		desired := *c.Desired
		out.Desired = &desired
	}
	return out
}

func resolveDependencies(d, o *spec.Dependencies) Dependencies {
	if d == nil {
		d = &spec.Dependencies{}
	}
	if o == nil {
		o = &spec.Dependencies{}
	}
	return Dependencies{
		LoadBalancerNames:  merge.Union(d.LoadBalancerNames, o.LoadBalancerNames),
		SecurityGroupNames: merge.Union(d.SecurityGroupNames, o.SecurityGroupNames),
		TargetGroups:       merge.Union(d.TargetGroups, o.TargetGroups),
	}
}

func resolveHealth(o, d spec.HealthSpec) Health {
	policies := merge.Union(d.TerminationPolicies, o.TerminationPolicies)
	if len(policies) == 0 {
		policies = slices.Clone(DefaultTerminationPolicies)
	}
	return Health{
		Cooldown:            merge.ScalarOr(spec.Duration(DefaultCooldown), o.Cooldown, d.Cooldown),
		Warmup:              merge.ScalarOr(spec.Duration(DefaultWarmup), o.Warmup, d.Warmup),
		HealthCheckType:     merge.ScalarOr(DefaultHealthCheckType, o.HealthCheckType, d.HealthCheckType),
		EnabledMetrics:      merge.Union(d.EnabledMetrics, o.EnabledMetrics),
		TerminationPolicies: policies,
	}
}

// resolveScaling unions policies by name; an override policy replaces the
// default policy of the same name.
func resolveScaling(d, o *spec.ScalingSpec) Scaling {
	if d == nil {
		d = &spec.ScalingSpec{}
	}
	if o == nil {
		o = &spec.ScalingSpec{}
	}
	out := Scaling{}
	for _, p := range merge.UnionBy(func(p spec.TargetTrackingPolicy) string { return p.Name }, d.TargetTracking, o.TargetTracking) {
		out.TargetTracking = append(out.TargetTracking, p.Clone())
	}
	for _, p := range merge.UnionBy(func(p spec.StepScalingPolicy) string { return p.Name }, d.Step, o.Step) {
		out.Step = append(out.Step, p.Clone())
	}
	return out
}

// Resolve dispatches a spec to its regional resolution.
func Resolve(s spec.Spec) ([]Resource, error) {
	var out []Resource
	switch s := s.(type) {
	case *spec.ClusterSpec:
		groups, err := ResolveCluster(s)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			out = append(out, g)
		}
	case *spec.SecurityGroupSpec:
		groups, err := ResolveSecurityGroup(s)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			out = append(out, g)
		}
	case *spec.ApplicationLoadBalancerSpec:
		for _, lb := range ResolveApplicationLoadBalancer(s) {
			out = append(out, lb)
		}
	case *spec.ClassicLoadBalancerSpec:
		for _, lb := range ResolveClassicLoadBalancer(s) {
			out = append(out, lb)
		}
	default:
		return nil, fmt.Errorf("no regional resolution for %s", s.Kind())
	}
	return out, nil
}
