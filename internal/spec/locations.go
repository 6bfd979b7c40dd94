package spec

import (
	"slices"
	"sort"
)

// Locations describes where a resource is deployed.
type Locations struct {
	Account string `json:"account"`
	// VPC is the network name. Empty means the resolver chain picks one.
	VPC string `json:"vpc,omitempty"`
	// Subnet is the subnet purpose. Empty means the resolver chain picks one.
	Subnet  string       `json:"subnet,omitempty"`
	Regions []RegionSpec `json:"regions"`
}

// RegionSpec is one region, optionally pinned to explicit availability zones.
type RegionSpec struct {
	Name              string   `json:"name"`
	AvailabilityZones []string `json:"availabilityZones,omitempty"`
}

// RegionNames returns the declared region names in sorted order.
func (l Locations) RegionNames() []string {
	names := make([]string, 0, len(l.Regions))
	for _, r := range l.Regions {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Region returns the region spec with the given name.
func (l Locations) Region(name string) (RegionSpec, bool) {
	for _, r := range l.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return RegionSpec{}, false
}

// HasRegion reports whether name is one of the declared regions.
func (l Locations) HasRegion(name string) bool {
	_, ok := l.Region(name)
	return ok
}

// Clone returns a deep copy with regions sorted by name.
func (l Locations) Clone() Locations {
	out := l
	out.Regions = make([]RegionSpec, len(l.Regions))
	for i, r := range l.Regions {
		out.Regions[i] = RegionSpec{Name: r.Name, AvailabilityZones: slices.Clone(r.AvailabilityZones)}
	}
	sort.Slice(out.Regions, func(i, j int) bool { return out.Regions[i].Name < out.Regions[j].Name })
	return out
}

func (l Locations) validate(v *violations) {
	if l.Account == "" {
		v.add("locations.account is required")
	}
	if len(l.Regions) == 0 {
		v.add("locations.regions must declare at least one region")
	}
	seen := make(map[string]bool, len(l.Regions))
	for _, r := range l.Regions {
		if r.Name == "" {
			v.add("locations.regions contains a region without a name")
			continue
		}
		if seen[r.Name] {
			v.addf("region %s is declared more than once", r.Name)
		}
		seen[r.Name] = true
	}
}
