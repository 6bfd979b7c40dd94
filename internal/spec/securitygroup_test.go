package spec

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecurityGroup() *SecurityGroupSpec {
	return &SecurityGroupSpec{
		Moniker:     Moniker{App: "fnord"},
		Locations:   Locations{Account: "test", Regions: []RegionSpec{{Name: "us-east-1"}, {Name: "us-west-2"}}},
		Description: aws.String("fnord app"),
		InboundRules: IngressRules{
			SelfReferenceRule{Protocol: "tcp", PortRange: &PortRange{Start: 7001, End: 7002}},
			ReferenceRule{Protocol: "tcp", Name: "fnord-elb", PortRange: &PortRange{Start: 7001, End: 7001}},
			CIDRRule{Protocol: "tcp", BlockRange: "10.0.0.0/8", PortRange: &PortRange{Start: 443, End: 443}},
		},
	}
}

func TestSecurityGroupValidate(t *testing.T) {
	sg := testSecurityGroup()
	require.NoError(t, sg.Validate())

	sg.InboundRules = append(sg.InboundRules, CIDRRule{Protocol: "tcp", BlockRange: "not-a-cidr"})
	requireInvalid(t, sg.Validate(), "invalid CIDR")

	sg = testSecurityGroup()
	sg.InboundRules = IngressRules{SelfReferenceRule{Protocol: "tcp", PortRange: &PortRange{Start: 9000, End: 80}}}
	requireInvalid(t, sg.Validate(), "invalid port range")
}

func TestSecurityGroupDependsOn(t *testing.T) {
	sg := testSecurityGroup()
	sg.Overrides = map[string]SecurityGroupOverride{
		"us-west-2": {InboundRules: IngressRules{
			ReferenceRule{Protocol: "tcp", Name: "other", Account: "prod"},
			ReferenceRule{Protocol: "tcp", Name: "fnord"},
		}},
	}
	assert.Equal(t, []string{"fnord-elb"}, sg.DependsOn())
}

func TestIngressRulesJSON(t *testing.T) {
	sg := testSecurityGroup()
	data, err := json.Marshal(sg)
	require.NoError(t, err)

	var decoded SecurityGroupSpec
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sg.InboundRules, decoded.InboundRules)

	err = json.Unmarshal([]byte(`{"inboundRules":[{"type":"prefix-list"}]}`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix-list")
}
