package spec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCluster() *ClusterSpec {
	return &ClusterSpec{
		Moniker: Moniker{App: "fnord", Stack: "test"},
		Locations: Locations{
			Account: "test",
			Regions: []RegionSpec{{Name: "us-west-2"}, {Name: "us-east-1"}},
		},
		Defaults: ServerGroupSpec{
			LaunchConfiguration: &LaunchConfigurationSpec{InstanceType: aws.String("m5.large")},
			Capacity:            &Capacity{Min: 1, Max: 3, Desired: aws.Int(2)},
		},
	}
}

func cpuPolicy(name string) TargetTrackingPolicy {
	return TargetTrackingPolicy{
		Name:        name,
		TargetValue: 60,
		MetricSpec:  MetricSpec{Predefined: &PredefinedMetric{Type: "ASGAverageCPUUtilization"}},
	}
}

func requireInvalid(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	var invalid *SpecInvalidError
	require.True(t, errors.As(err, &invalid), "expected SpecInvalidError, got %T", err)
	assert.Contains(t, err.Error(), contains)
}

func TestMonikerString(t *testing.T) {
	tests := []struct {
		moniker Moniker
		want    string
	}{
		{Moniker{App: "fnord"}, "fnord"},
		{Moniker{App: "fnord", Stack: "test"}, "fnord-test"},
		{Moniker{App: "fnord", Detail: "canary"}, "fnord--canary"},
		{Moniker{App: "fnord", Stack: "test", Detail: "canary"}, "fnord-test-canary"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.moniker.String())
		})
	}
}

func TestClusterValidate_Valid(t *testing.T) {
	c := testCluster()
	require.NoError(t, c.Validate())
	assert.Equal(t, "test:fnord-test", c.ID())
}

func TestClusterValidate_DesiredWithScalingPolicies(t *testing.T) {
	c := testCluster()
	c.Defaults.Scaling = &ScalingSpec{TargetTracking: []TargetTrackingPolicy{cpuPolicy("cpu")}}
	requireInvalid(t, c.Validate(), "capacity.desired must not be set")
}

func TestClusterValidate_PolicyInOverrideConflictsWithDefaultDesired(t *testing.T) {
	c := testCluster()
	c.Overrides = map[string]ServerGroupSpec{
		"us-east-1": {Scaling: &ScalingSpec{TargetTracking: []TargetTrackingPolicy{cpuPolicy("cpu")}}},
	}
	requireInvalid(t, c.Validate(), "region us-east-1")
}

func TestClusterValidate_ScalingWithoutDesired(t *testing.T) {
	c := testCluster()
	c.Defaults.Capacity = &Capacity{Min: 1, Max: 10}
	c.Defaults.Scaling = &ScalingSpec{TargetTracking: []TargetTrackingPolicy{cpuPolicy("cpu")}}
	require.NoError(t, c.Validate())
}

func TestClusterValidate_NoDesiredNoPolicies(t *testing.T) {
	c := testCluster()
	c.Defaults.Capacity = &Capacity{Min: 1, Max: 10}
	requireInvalid(t, c.Validate(), "capacity.desired is required")
}

func TestClusterValidate_CapacityBounds(t *testing.T) {
	c := testCluster()
	c.Defaults.Capacity = &Capacity{Min: 2, Max: 3, Desired: aws.Int(5)}
	requireInvalid(t, c.Validate(), "outside [2, 3]")
}

func TestClusterValidate_OverrideForUndeclaredRegion(t *testing.T) {
	c := testCluster()
	c.Overrides = map[string]ServerGroupSpec{"eu-west-1": {}}
	requireInvalid(t, c.Validate(), "eu-west-1")
}

func TestClusterValidate_DuplicateRegion(t *testing.T) {
	c := testCluster()
	c.Locations.Regions = append(c.Locations.Regions, RegionSpec{Name: "us-west-2"})
	requireInvalid(t, c.Validate(), "more than once")
}

func TestClusterValidate_CollectsEveryViolation(t *testing.T) {
	c := testCluster()
	c.Locations.Account = ""
	c.Defaults.Capacity = &Capacity{Min: 3, Max: 1, Desired: aws.Int(2)}
	err := c.Validate()
	var invalid *SpecInvalidError
	require.True(t, errors.As(err, &invalid))
	assert.GreaterOrEqual(t, len(invalid.Violations), 2)
}

func TestClusterClone_IsDeep(t *testing.T) {
	c := testCluster()
	c.Defaults.Tags = map[string]string{"team": "a"}
	c.Overrides = map[string]ServerGroupSpec{
		"us-east-1": {LaunchConfiguration: &LaunchConfigurationSpec{KeyPair: aws.String("kp")}},
	}

	clone := c.Clone()
	clone.Defaults.Tags["team"] = "b"
	*clone.Defaults.LaunchConfiguration.InstanceType = "c5.large"
	*clone.Overrides["us-east-1"].LaunchConfiguration.KeyPair = "other"
	*clone.Defaults.Capacity.Desired = 3

	assert.Equal(t, "a", c.Defaults.Tags["team"])
	assert.Equal(t, "m5.large", *c.Defaults.LaunchConfiguration.InstanceType)
	assert.Equal(t, "kp", *c.Overrides["us-east-1"].LaunchConfiguration.KeyPair)
	assert.Equal(t, 2, *c.Defaults.Capacity.Desired)
}

func TestClusterDependsOn(t *testing.T) {
	c := testCluster()
	c.Defaults.Dependencies = &Dependencies{LoadBalancerNames: []string{"fnord-lb"}, SecurityGroupNames: []string{"fnord"}}
	c.Overrides = map[string]ServerGroupSpec{
		"us-east-1": {Dependencies: &Dependencies{SecurityGroupNames: []string{"fnord-east", "fnord"}}},
	}
	assert.Equal(t, []string{"fnord", "fnord-east", "fnord-lb"}, c.DependsOn())
}

func TestClusterJSON_ImageProvider(t *testing.T) {
	c := testCluster()
	c.ImageProvider = ArtifactImageProvider{DeliveryConfig: "dc", Artifact: "fnord", Environment: "test"}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"artifact"`)

	var decoded ClusterSpec
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.ImageProvider, decoded.ImageProvider)
	assert.Equal(t, c.ID(), decoded.ID())
}

func TestClusterJSON_UnknownImageProvider(t *testing.T) {
	var c ClusterSpec
	err := json.Unmarshal([]byte(`{"imageProvider":{"type":"bakery"}}`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bakery")
}

func TestDurationJSON(t *testing.T) {
	var d struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"5m","b":30}`), &d))
	assert.Equal(t, "5m0s", d.A.String())
	assert.Equal(t, "30s", d.B.String())

	_, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &d))
}
