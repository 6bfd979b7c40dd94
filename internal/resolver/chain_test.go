package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/picklr-io/resolvr/internal/regional"
	"github.com/picklr-io/resolvr/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_OrderIndependentForNetworkAndZones(t *testing.T) {
	inv := testInventory()
	in := testCluster()
	in.Locations.Subnet = "internal (vpc5)"
	in.Locations.Regions = []spec.RegionSpec{{Name: "us-east-1"}}

	a, err := NewChain(NewNetworkResolver(), NewAvailabilityZoneResolver()).Resolve(context.Background(), in, inv)
	require.NoError(t, err)
	b, err := NewChain(NewAvailabilityZoneResolver(), NewNetworkResolver()).Resolve(context.Background(), in, inv)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	loc := a.ResourceLocations()
	assert.Equal(t, "vpc5", loc.VPC)
	assert.Equal(t, []string{"us-east-1b"}, loc.Regions[0].AvailabilityZones)
}

func TestChain_Idempotent(t *testing.T) {
	inv := testInventory()
	chain := DefaultChain(inv)

	once, err := chain.Resolve(context.Background(), testCluster(), inv)
	require.NoError(t, err)
	twice, err := chain.Resolve(context.Background(), once, inv)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestChain_FullClusterPipeline(t *testing.T) {
	inv := testInventory()
	in := testCluster()

	resolved, err := DefaultChain(inv).Resolve(context.Background(), in, inv)
	require.NoError(t, err)

	groups, err := regional.ResolveCluster(resolved.(*spec.ClusterSpec))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	east, west := groups[0], groups[1]
	assert.Equal(t, "us-east-1", east.Location.Region)
	assert.Equal(t, "vpc0", east.Location.VPC)
	assert.Equal(t, "internal (vpc0)", east.Location.Subnet)
	assert.Equal(t, []string{"us-east-1a", "us-east-1c", "us-east-1d"}, east.Location.AvailabilityZones)
	assert.Equal(t, "ami-111", east.LaunchConfiguration.ImageID)
	assert.Equal(t, "nf-keypair-test-us-east-1", east.LaunchConfiguration.KeyPair)
	assert.Equal(t, "fnordInstanceProfile", east.LaunchConfiguration.IAMRole)

	assert.Equal(t, "us-west-2", west.Location.Region)
	assert.Equal(t, "ami-222", west.LaunchConfiguration.ImageID)
	assert.Equal(t, "nf-keypair-test-us-west-2", west.LaunchConfiguration.KeyPair)

	// input untouched
	assert.Empty(t, in.Locations.VPC)
	assert.Empty(t, in.Overrides)
}

func TestChain_SkipsUnsupportedResolvers(t *testing.T) {
	inv := testInventory()
	sg := &spec.SecurityGroupSpec{
		Moniker:   spec.Moniker{App: "fnord"},
		Locations: spec.Locations{Account: "test", Regions: []spec.RegionSpec{{Name: "us-east-1"}}},
	}

	out, err := DefaultChain(inv).Resolve(context.Background(), sg, inv)
	require.NoError(t, err)

	loc := out.ResourceLocations()
	assert.Equal(t, "vpc0", loc.VPC)
	assert.Empty(t, loc.Subnet)
	assert.Empty(t, loc.Regions[0].AvailabilityZones)
}

func TestChain_StopsAtFirstError(t *testing.T) {
	inv := testInventory()
	in := testCluster()
	in.ImageProvider = spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "prod"}

	out, err := DefaultChain(inv).Resolve(context.Background(), in, inv)
	assert.Nil(t, out)
	var unsatisfied *NoImageSatisfiesConstraintsError
	assert.True(t, errors.As(err, &unsatisfied))
}

func TestChain_CanceledContext(t *testing.T) {
	inv := testInventory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultChain(inv).Resolve(ctx, testCluster(), inv)
	assert.ErrorIs(t, err, context.Canceled)
}
