package regional

import (
	"slices"
	"sort"
	"time"

	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/spec"
)

// DefaultIdleTimeout matches the AWS default for both load balancer types.
const DefaultIdleTimeout = 60 * time.Second

// ResolveApplicationLoadBalancer returns one ALB per declared region.
// Listeners are ordered by port, rules by priority and actions by order.
func ResolveApplicationLoadBalancer(a *spec.ApplicationLoadBalancerSpec) []ApplicationLoadBalancer {
	listeners := make([]spec.ApplicationListener, 0, len(a.Listeners))
	for _, l := range a.Listeners {
		l = l.Clone()
		sortActions(l.DefaultActions)
		for _, r := range l.Rules {
			sortActions(r.Actions)
		}
		sort.Slice(l.Rules, func(i, j int) bool { return l.Rules[i].Priority < l.Rules[j].Priority })
		listeners = append(listeners, l)
	}
	sort.Slice(listeners, func(i, j int) bool { return listeners[i].Port < listeners[j].Port })

	var out []ApplicationLoadBalancer
	for _, region := range a.Locations.Clone().Regions {
		o := a.Overrides[region.Name]
		var overrideGroups []string
		if o.Dependencies != nil {
			overrideGroups = o.Dependencies.SecurityGroupNames
		}

		regionListeners := make([]spec.ApplicationListener, len(listeners))
		for i, l := range listeners {
			regionListeners[i] = l.Clone()
		}
		targetGroups := a.Clone().TargetGroups
		sort.Slice(targetGroups, func(i, j int) bool { return targetGroups[i].Name < targetGroups[j].Name })

		out = append(out, ApplicationLoadBalancer{
			ID:                 a.ID(),
			Name:               a.Moniker.String(),
			Location:           lbLocation(a.Locations, region),
			Internal:           a.Internal,
			IdleTimeout:        merge.ScalarOr(spec.Duration(DefaultIdleTimeout), o.IdleTimeout, a.IdleTimeout),
			Listeners:          regionListeners,
			TargetGroups:       targetGroups,
			SecurityGroupNames: merge.Union(a.Dependencies.SecurityGroupNames, overrideGroups),
		})
	}
	return out
}

// ResolveClassicLoadBalancer returns one classic ELB per declared region.
func ResolveClassicLoadBalancer(c *spec.ClassicLoadBalancerSpec) []ClassicLoadBalancer {
	var out []ClassicLoadBalancer
	for _, region := range c.Locations.Clone().Regions {
		o := c.Overrides[region.Name]
		var overrideGroups []string
		if o.Dependencies != nil {
			overrideGroups = o.Dependencies.SecurityGroupNames
		}
		listeners := slices.Clone(c.Listeners)
		sort.Slice(listeners, func(i, j int) bool { return listeners[i].ExternalPort < listeners[j].ExternalPort })

		out = append(out, ClassicLoadBalancer{
			ID:                 c.ID(),
			Name:               c.Moniker.String(),
			Location:           lbLocation(c.Locations, region),
			Internal:           c.Internal,
			IdleTimeout:        merge.ScalarOr(spec.Duration(DefaultIdleTimeout), o.IdleTimeout, c.IdleTimeout),
			Listeners:          listeners,
			HealthCheck:        merge.ScalarOr(c.HealthCheck, o.HealthCheck).Clone(),
			SecurityGroupNames: merge.Union(c.Dependencies.SecurityGroupNames, overrideGroups),
		})
	}
	return out
}

func lbLocation(l spec.Locations, region spec.RegionSpec) Location {
	return Location{
		Account:           l.Account,
		Region:            region.Name,
		VPC:               l.VPC,
		Subnet:            l.Subnet,
		AvailabilityZones: merge.Union(region.AvailabilityZones),
	}
}

func sortActions(actions []spec.Action) {
	sort.Slice(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })
}
