package spec

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"sort"
	"strings"
)

// SecurityGroupSpec describes a security group and its inbound rules.
type SecurityGroupSpec struct {
	Moniker      Moniker                          `json:"moniker"`
	Locations    Locations                        `json:"locations"`
	Description  *string                          `json:"description,omitempty"`
	InboundRules IngressRules                     `json:"inboundRules,omitempty"`
	Overrides    map[string]SecurityGroupOverride `json:"overrides,omitempty"`
}

// SecurityGroupOverride replaces the description or adds inbound rules in one
// region.
type SecurityGroupOverride struct {
	Description  *string      `json:"description,omitempty"`
	InboundRules IngressRules `json:"inboundRules,omitempty"`
}

// PortRange is an inclusive port range. A nil range means all ports.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (p *PortRange) String() string {
	if p == nil {
		return "all"
	}
	return fmt.Sprintf("%d-%d", p.Start, p.End)
}

// IngressRule is one inbound rule. Implementations: SelfReferenceRule,
// ReferenceRule, CIDRRule.
type IngressRule interface {
	// Key identifies the rule for union and sorting.
	Key() string
	Ports() *PortRange
	ingressRule()
}

// SelfReferenceRule allows traffic from members of the same group.
type SelfReferenceRule struct {
	Protocol  string     `json:"protocol"`
	PortRange *PortRange `json:"portRange,omitempty"`
}

// ReferenceRule allows traffic from another named security group.
type ReferenceRule struct {
	Protocol  string     `json:"protocol"`
	Name      string     `json:"name"`
	Account   string     `json:"account,omitempty"`
	VPC       string     `json:"vpc,omitempty"`
	PortRange *PortRange `json:"portRange,omitempty"`
}

// CIDRRule allows traffic from an address block.
type CIDRRule struct {
	Protocol   string     `json:"protocol"`
	BlockRange string     `json:"blockRange"`
	PortRange  *PortRange `json:"portRange,omitempty"`
}

func (r SelfReferenceRule) Key() string {
	return fmt.Sprintf("self/%s/%s", strings.ToLower(r.Protocol), r.PortRange)
}

func (r ReferenceRule) Key() string {
	return fmt.Sprintf("ref/%s/%s/%s/%s/%s", r.Account, r.VPC, r.Name, strings.ToLower(r.Protocol), r.PortRange)
}

func (r CIDRRule) Key() string {
	return fmt.Sprintf("cidr/%s/%s/%s", r.BlockRange, strings.ToLower(r.Protocol), r.PortRange)
}

func (r SelfReferenceRule) Ports() *PortRange { return r.PortRange }
func (r ReferenceRule) Ports() *PortRange { return r.PortRange }
func (r CIDRRule) Ports() *PortRange { return r.PortRange }

func (SelfReferenceRule) ingressRule() {}
func (ReferenceRule) ingressRule() {}
func (CIDRRule) ingressRule() {}

func (r SelfReferenceRule) MarshalJSON() ([]byte, error) {
	type plain SelfReferenceRule
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"self", plain(r)})
}

func (r ReferenceRule) MarshalJSON() ([]byte, error) {
	type plain ReferenceRule
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"reference", plain(r)})
}

func (r CIDRRule) MarshalJSON() ([]byte, error) {
	type plain CIDRRule
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"cidr", plain(r)})
}

// IngressRules decodes a list of tagged ingress rules.
type IngressRules []IngressRule

func (rs *IngressRules) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IngressRules, 0, len(raw))
	for i, item := range raw {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(item, &tag); err != nil {
			return fmt.Errorf("inboundRules[%d]: %w", i, err)
		}
		var rule IngressRule
		var err error
		switch tag.Type {
		case "self":
			var r SelfReferenceRule
			err = json.Unmarshal(item, &r)
			rule = r
		case "reference":
			var r ReferenceRule
			err = json.Unmarshal(item, &r)
			rule = r
		case "cidr":
			var r CIDRRule
			err = json.Unmarshal(item, &r)
			rule = r
		default:
			return fmt.Errorf("inboundRules[%d]: unknown rule type %q", i, tag.Type)
		}
		if err != nil {
			return fmt.Errorf("inboundRules[%d]: %w", i, err)
		}
		out = append(out, rule)
	}
	*rs = out
	return nil
}

// Clone copies the rules. Rule values are immutable apart from their port
// range, which is copied too.
func (rs IngressRules) Clone() IngressRules {
	if rs == nil {
		return nil
	}
	out := make(IngressRules, len(rs))
	for i, r := range rs {
		switch r := r.(type) {
		case SelfReferenceRule:
			r.PortRange = clonePtr(r.PortRange)
			out[i] = r
		case ReferenceRule:
			r.PortRange = clonePtr(r.PortRange)
			out[i] = r
		case CIDRRule:
			r.PortRange = clonePtr(r.PortRange)
			out[i] = r
		}
	}
	return out
}

func (*SecurityGroupSpec) Kind() Kind { return KindSecurityGroup }
func (s *SecurityGroupSpec) ID() string { return resourceID(s.Locations.Account, s.Moniker) }
func (s *SecurityGroupSpec) Name() string { return s.Moniker.String() }
func (s *SecurityGroupSpec) Account() string { return s.Locations.Account }
func (s *SecurityGroupSpec) ResourceLocations() Locations { return s.Locations.Clone() }
func (*SecurityGroupSpec) sealed() {}

func (s *SecurityGroupSpec) WithLocations(l Locations) Spec {
	out := s.Clone()
	out.Locations = l.Clone()
	return out
}

// DependsOn returns the groups referenced by name in the same account.
func (s *SecurityGroupSpec) DependsOn() []string {
	set := make(map[string]bool)
	collect := func(rules IngressRules) {
		for _, r := range rules {
			if ref, ok := r.(ReferenceRule); ok && (ref.Account == "" || ref.Account == s.Account()) && ref.Name != s.Name() {
				set[ref.Name] = true
			}
		}
	}
	collect(s.InboundRules)
	for _, o := range s.Overrides {
		collect(o.InboundRules)
	}
	names := slices.Collect(maps.Keys(set))
	sort.Strings(names)
	return names
}

func (s *SecurityGroupSpec) Clone() *SecurityGroupSpec {
	out := &SecurityGroupSpec{
		Moniker:      s.Moniker,
		Locations:    s.Locations.Clone(),
		Description:  clonePtr(s.Description),
		InboundRules: s.InboundRules.Clone(),
	}
	if s.Overrides != nil {
		out.Overrides = make(map[string]SecurityGroupOverride, len(s.Overrides))
		for r, o := range s.Overrides {
			out.Overrides[r] = SecurityGroupOverride{
				Description:  clonePtr(o.Description),
				InboundRules: o.InboundRules.Clone(),
			}
		}
	}
	return out
}

var ingressProtocols = []string{"tcp", "udp", "icmp", "all"}

// Validate checks the moniker, locations and every inbound rule.
func (s *SecurityGroupSpec) Validate() error {
	v := &violations{}
	s.Moniker.validate(v, 0)
	s.Locations.validate(v)
	validateOverrideRegions(v, s.Locations, s.Overrides)
	validateIngress(v, s.InboundRules)
	for _, o := range s.Overrides {
		validateIngress(v, o.InboundRules)
	}
	return v.err(KindSecurityGroup, s.ID())
}

func validateIngress(v *violations, rules IngressRules) {
	for _, r := range rules {
		var protocol string
		switch r := r.(type) {
		case SelfReferenceRule:
			protocol = r.Protocol
		case ReferenceRule:
			protocol = r.Protocol
			if r.Name == "" {
				v.add("reference ingress rule requires a group name")
			}
		case CIDRRule:
			protocol = r.Protocol
			if _, err := netip.ParsePrefix(r.BlockRange); err != nil {
				v.addf("ingress rule has invalid CIDR %q", r.BlockRange)
			}
		}
		if !slices.Contains(ingressProtocols, strings.ToLower(protocol)) {
			v.addf("ingress rule %s uses unknown protocol %q", r.Key(), protocol)
		}
		if p := r.Ports(); p != nil && (p.Start < 0 || p.End > 65535 || p.Start > p.End) {
			v.addf("ingress rule %s has invalid port range", r.Key())
		}
		if strings.EqualFold(protocol, "all") && r.Ports() != nil {
			v.addf("ingress rule %s: protocol all does not take a port range", r.Key())
		}
	}
}
