package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testALB() *ApplicationLoadBalancerSpec {
	return &ApplicationLoadBalancerSpec{
		Moniker:   Moniker{App: "fnord", Stack: "test"},
		Locations: Locations{Account: "test", Regions: []RegionSpec{{Name: "us-east-1"}}},
		Listeners: []ApplicationListener{{
			Port:           443,
			Protocol:       "HTTPS",
			Certificate:    "fnord-cert",
			DefaultActions: []Action{{Type: "forward", Order: 1, TargetGroupName: "fnord-web"}},
			Rules: []Rule{{
				Priority:   10,
				Conditions: []RuleCondition{{Field: "path-pattern", Values: []string{"/old/*"}}},
				Actions: []Action{
					{Type: "redirect", Order: 2, Redirect: &Redirect{Path: "/new", StatusCode: "HTTP_301"}},
					{Type: "forward", Order: 1, TargetGroupName: "fnord-web"},
				},
			}},
		}},
		TargetGroups: []TargetGroup{{Name: "fnord-web", Port: 8080, Protocol: "HTTP"}},
	}
}

func TestALBValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ApplicationLoadBalancerSpec)
		wantErr string
	}{
		{name: "valid", modify: func(*ApplicationLoadBalancerSpec) {}},
		{
			name: "https without certificate",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.Listeners[0].Certificate = ""
			},
			wantErr: "HTTPS listener on port 443 requires a certificate",
		},
		{
			name: "name too long",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.Moniker.Detail = "averyveryverylongdetailvalue"
			},
			wantErr: "the maximum is 32",
		},
		{
			name: "target group name too long",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.TargetGroups[0].Name = "fnord-web-target-group-with-a-long-name"
				a.Listeners[0].DefaultActions[0].TargetGroupName = a.TargetGroups[0].Name
				a.Listeners[0].Rules[0].Actions[1].TargetGroupName = a.TargetGroups[0].Name
			},
			wantErr: "target group name",
		},
		{
			name: "duplicate action order",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.Listeners[0].Rules[0].Actions[0].Order = 1
			},
			wantErr: "more than one action with order 1",
		},
		{
			name: "forward to unknown target group",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.Listeners[0].DefaultActions[0].TargetGroupName = "missing"
			},
			wantErr: "unknown target group",
		},
		{
			name: "tcp listener",
			modify: func(a *ApplicationLoadBalancerSpec) {
				a.Listeners[0].Protocol = "TCP"
			},
			wantErr: "expected HTTP or HTTPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alb := testALB()
			tt.modify(alb)
			err := alb.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			requireInvalid(t, err, tt.wantErr)
		})
	}
}

func testCLB() *ClassicLoadBalancerSpec {
	return &ClassicLoadBalancerSpec{
		Moniker:   Moniker{App: "fnord", Stack: "test"},
		Locations: Locations{Account: "test", Regions: []RegionSpec{{Name: "us-east-1"}}},
		Listeners: []ClassicListener{{
			InternalProtocol: "HTTP",
			InternalPort:     7001,
			ExternalProtocol: "HTTPS",
			ExternalPort:     443,
			Certificate:      "fnord-cert",
		}},
		HealthCheck:  ClassicHealthCheck{Target: "HTTP:7001/health"},
		Dependencies: LoadBalancerDependencies{SecurityGroupNames: []string{"fnord-elb", "fnord"}},
	}
}

func TestCLBValidate(t *testing.T) {
	clb := testCLB()
	require.NoError(t, clb.Validate())

	clb.Listeners[0].Certificate = ""
	requireInvalid(t, clb.Validate(), "HTTPS listener on port 443 requires a certificate")

	clb = testCLB()
	clb.Listeners[0].ExternalProtocol = "QUIC"
	requireInvalid(t, clb.Validate(), "unknown protocol")
}

func TestCLBDependsOn(t *testing.T) {
	clb := testCLB()
	clb.Overrides = map[string]ClassicLoadBalancerOverride{
		"us-east-1": {Dependencies: &LoadBalancerDependencies{SecurityGroupNames: []string{"fnord-east"}}},
	}
	assert.Equal(t, []string{"fnord", "fnord-east", "fnord-elb"}, clb.DependsOn())
}

func TestALBClone_IsDeep(t *testing.T) {
	alb := testALB()
	clone := alb.Clone()
	clone.Listeners[0].Rules[0].Actions[0].Redirect.Path = "/elsewhere"
	clone.Listeners[0].Rules[0].Conditions[0].Values[0] = "/changed"

	assert.Equal(t, "/new", alb.Listeners[0].Rules[0].Actions[0].Redirect.Path)
	assert.Equal(t, "/old/*", alb.Listeners[0].Rules[0].Conditions[0].Values[0])
}
