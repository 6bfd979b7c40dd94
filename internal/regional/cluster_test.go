package regional

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(id string) *spec.Image {
	return &spec.Image{ID: id, AppVersion: "fnord-1.0.0-h1.abc", BaseImageName: "bionic-classic"}
}

func testCluster() *spec.ClusterSpec {
	return &spec.ClusterSpec{
		Moniker: spec.Moniker{App: "fnord", Stack: "test"},
		Locations: spec.Locations{
			Account: "test",
			VPC:     "vpc0",
			Subnet:  "internal (vpc0)",
			Regions: []spec.RegionSpec{
				{Name: "us-west-2", AvailabilityZones: []string{"us-west-2b", "us-west-2a"}},
				{Name: "us-east-1"},
			},
		},
		Defaults: spec.ServerGroupSpec{
			LaunchConfiguration: &spec.LaunchConfigurationSpec{
				InstanceType: aws.String("m5.large"),
				KeyPair:      aws.String("fnord-keypair"),
			},
			Dependencies: &spec.Dependencies{
				LoadBalancerNames:  []string{"fnord-internal"},
				SecurityGroupNames: []string{"fnord", "fnord-elb"},
			},
			Tags: map[string]string{"team": "fnord", "env": "test"},
		},
		Overrides: map[string]spec.ServerGroupSpec{
			"us-east-1": {
				LaunchConfiguration: &spec.LaunchConfigurationSpec{
					Image:        image("ami-east"),
					InstanceType: aws.String("m5.xlarge"),
				},
				Dependencies: &spec.Dependencies{SecurityGroupNames: []string{"fnord-east", "fnord"}},
				Tags:         map[string]string{"team": "fnord-east", "cost": "x"},
			},
			"us-west-2": {
				LaunchConfiguration: &spec.LaunchConfigurationSpec{Image: image("ami-west")},
			},
		},
	}
}

func byRegion(t *testing.T, groups []ServerGroup, region string) ServerGroup {
	t.Helper()
	for _, g := range groups {
		if g.Location.Region == region {
			return g
		}
	}
	t.Fatalf("no server group for %s", region)
	return ServerGroup{}
}

func TestResolveCluster_OneGroupPerRegionSorted(t *testing.T) {
	groups, err := ResolveCluster(testCluster())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "us-east-1", groups[0].Location.Region)
	assert.Equal(t, "us-west-2", groups[1].Location.Region)
	for _, g := range groups {
		assert.Equal(t, "test:fnord-test", g.ID)
		assert.Equal(t, "fnord-test", g.Name)
		assert.Equal(t, "vpc0", g.Location.VPC)
		assert.Equal(t, "internal (vpc0)", g.Location.Subnet)
	}
	assert.Equal(t, []string{"us-west-2a", "us-west-2b"}, groups[1].Location.AvailabilityZones)
}

func TestResolveCluster_ScalarOverridePrecedence(t *testing.T) {
	groups, err := ResolveCluster(testCluster())
	require.NoError(t, err)

	east := byRegion(t, groups, "us-east-1")
	west := byRegion(t, groups, "us-west-2")
	assert.Equal(t, "m5.xlarge", east.LaunchConfiguration.InstanceType)
	assert.Equal(t, "m5.large", west.LaunchConfiguration.InstanceType)
	assert.Equal(t, "ami-east", east.LaunchConfiguration.ImageID)
	assert.Equal(t, "ami-west", west.LaunchConfiguration.ImageID)
}

func TestResolveCluster_Defaults(t *testing.T) {
	groups, err := ResolveCluster(testCluster())
	require.NoError(t, err)

	west := byRegion(t, groups, "us-west-2")
	assert.Equal(t, "fnordInstanceProfile", west.LaunchConfiguration.IAMRole)
	assert.False(t, west.LaunchConfiguration.EBSOptimized)
	assert.False(t, west.LaunchConfiguration.InstanceMonitoring)
	assert.False(t, west.LaunchConfiguration.RequireIMDSv2)
	assert.Equal(t, Capacity{Min: 1, Max: 1, Desired: aws.Int(1)}, west.Capacity)
	assert.Equal(t, spec.Duration(DefaultCooldown), west.Health.Cooldown)
	assert.Equal(t, spec.Duration(DefaultWarmup), west.Health.Warmup)
	assert.Equal(t, "EC2", west.Health.HealthCheckType)
	assert.Equal(t, []string{"OldestInstance"}, west.Health.TerminationPolicies)
}

func TestResolveCluster_SetUnion(t *testing.T) {
	groups, err := ResolveCluster(testCluster())
	require.NoError(t, err)

	east := byRegion(t, groups, "us-east-1")
	assert.Equal(t, []string{"fnord", "fnord-east", "fnord-elb"}, east.Dependencies.SecurityGroupNames)
	assert.Equal(t, []string{"fnord-internal"}, east.Dependencies.LoadBalancerNames)

	west := byRegion(t, groups, "us-west-2")
	assert.Equal(t, []string{"fnord", "fnord-elb"}, west.Dependencies.SecurityGroupNames)
}

func TestResolveCluster_MapOverlay(t *testing.T) {
	groups, err := ResolveCluster(testCluster())
	require.NoError(t, err)

	east := byRegion(t, groups, "us-east-1")
	assert.Equal(t, map[string]string{"team": "fnord-east", "env": "test", "cost": "x"}, east.Tags)
	west := byRegion(t, groups, "us-west-2")
	assert.Equal(t, map[string]string{"team": "fnord", "env": "test"}, west.Tags)
}

func TestResolveCluster_MissingImageFailsWholeCluster(t *testing.T) {
	c := testCluster()
	delete(c.Overrides, "us-west-2")

	groups, err := ResolveCluster(c)
	require.Error(t, err)
	assert.Nil(t, groups)

	var missing *merge.MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "launchConfiguration.image", missing.Field)
	assert.Equal(t, "us-west-2", missing.Region)
	assert.Equal(t, "test:fnord-test", missing.ResourceID)
}

func TestResolveCluster_MissingKeyPair(t *testing.T) {
	c := testCluster()
	c.Defaults.LaunchConfiguration.KeyPair = nil

	_, err := ResolveCluster(c)
	var missing *merge.MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "launchConfiguration.keyPair", missing.Field)
	assert.Equal(t, "us-east-1", missing.Region)
}

func TestResolveCluster_ScalingLeavesDesiredUnset(t *testing.T) {
	c := testCluster()
	c.Defaults.Scaling = &spec.ScalingSpec{TargetTracking: []spec.TargetTrackingPolicy{{
		Name:        "cpu",
		TargetValue: 50,
		MetricSpec:  spec.MetricSpec{Predefined: &spec.PredefinedMetric{Type: "ASGAverageCPUUtilization"}},
	}}}
	c.Overrides["us-east-1"] = spec.ServerGroupSpec{
		LaunchConfiguration: c.Overrides["us-east-1"].LaunchConfiguration,
		Capacity:            &spec.Capacity{Min: 2, Max: 10},
		Scaling: &spec.ScalingSpec{TargetTracking: []spec.TargetTrackingPolicy{{
			Name:        "cpu",
			TargetValue: 70,
			MetricSpec:  spec.MetricSpec{Predefined: &spec.PredefinedMetric{Type: "ASGAverageCPUUtilization"}},
		}}},
	}
	require.NoError(t, c.Validate())

	groups, err := ResolveCluster(c)
	require.NoError(t, err)

	east := byRegion(t, groups, "us-east-1")
	assert.Equal(t, Capacity{Min: 2, Max: 10}, east.Capacity)
	require.Len(t, east.Scaling.TargetTracking, 1)
	assert.Equal(t, 70.0, east.Scaling.TargetTracking[0].TargetValue)

	west := byRegion(t, groups, "us-west-2")
	assert.Equal(t, Capacity{Min: 1, Max: 1}, west.Capacity)
	assert.Equal(t, 50.0, west.Scaling.TargetTracking[0].TargetValue)
}

func TestResolveCluster_Deterministic(t *testing.T) {
	c := testCluster()
	first, err := ResolveCluster(c)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ResolveCluster(c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveCluster_DoesNotAliasSpec(t *testing.T) {
	c := testCluster()
	groups, err := ResolveCluster(c)
	require.NoError(t, err)

	groups[0].Tags["team"] = "changed"
	groups[1].Dependencies.SecurityGroupNames[0] = "changed"
	assert.Equal(t, "fnord", c.Defaults.Tags["team"])
	assert.Equal(t, "fnord", c.Defaults.Dependencies.SecurityGroupNames[0])
}

func TestResolve_Dispatch(t *testing.T) {
	resources, err := Resolve(testCluster())
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, spec.KindCluster, resources[0].ResourceKind())
	assert.Equal(t, "us-east-1", resources[0].RegionName())
}
