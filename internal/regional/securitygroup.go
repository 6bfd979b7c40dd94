package regional

import (
	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/spec"
)

// ResolveSecurityGroup returns one security group per declared region.
// Inbound rules are the union of the default and override rules.
func ResolveSecurityGroup(s *spec.SecurityGroupSpec) ([]SecurityGroup, error) {
	var out []SecurityGroup
	for _, region := range s.Locations.Clone().Regions {
		o := s.Overrides[region.Name]
		rules := merge.UnionBy(spec.IngressRule.Key, s.InboundRules.Clone(), o.InboundRules.Clone())
		out = append(out, SecurityGroup{
			ID:   s.ID(),
			Name: s.Moniker.String(),
			Location: Location{
				Account: s.Locations.Account,
				Region:  region.Name,
				VPC:     s.Locations.VPC,
			},
			Description:  merge.ScalarOr(s.Moniker.String(), o.Description, s.Description),
			InboundRules: rules,
		})
	}
	return out, nil
}
