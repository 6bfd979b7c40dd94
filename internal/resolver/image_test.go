package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageResolver_Success(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)

	out, err := r.Resolve(context.Background(), testCluster(), inv)
	require.NoError(t, err)

	c := out.(*spec.ClusterSpec)
	east := launchOverride(c, "us-east-1")
	west := launchOverride(c, "us-west-2")
	require.NotNil(t, east)
	require.NotNil(t, west)
	assert.Equal(t, &spec.Image{ID: "ami-111", AppVersion: "fnord-1.1.0-h2.def", BaseImageName: "bionic-classic"}, east.Image)
	assert.Equal(t, &spec.Image{ID: "ami-222", AppVersion: "fnord-1.1.0-h2.def", BaseImageName: "bionic-classic"}, west.Image)
}

func TestImageResolver_PartialRegionFailure(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)
	in := testCluster()
	in.ImageProvider = spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "staging"}

	out, err := r.Resolve(context.Background(), in, inv)
	require.Error(t, err)
	assert.Nil(t, out)

	var notFound *NoImageFoundForRegionsError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"us-west-2"}, notFound.Regions)
	assert.Equal(t, "fnord-1.2.0-h3.abc", notFound.AppVersion)
}

func TestImageResolver_NoApprovedVersion(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)
	in := testCluster()
	in.ImageProvider = spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "prod"}

	_, err := r.Resolve(context.Background(), in, inv)
	var unsatisfied *NoImageSatisfiesConstraintsError
	require.True(t, errors.As(err, &unsatisfied))
	assert.Equal(t, "prod", unsatisfied.Environment)
}

func TestImageResolver_ExplicitRegionImageKept(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)
	in := testCluster()
	in.ImageProvider = spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "staging"}
	in.Overrides = map[string]spec.ServerGroupSpec{
		"us-west-2": {LaunchConfiguration: &spec.LaunchConfigurationSpec{Image: &spec.Image{ID: "ami-custom"}}},
	}

	out, err := r.Resolve(context.Background(), in, inv)
	require.NoError(t, err)

	c := out.(*spec.ClusterSpec)
	assert.Equal(t, "ami-custom", launchOverride(c, "us-west-2").Image.ID)
	assert.Equal(t, "ami-333", launchOverride(c, "us-east-1").Image.ID)
}

func TestImageResolver_VersionProviderSkipsApprovals(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(nil)
	in := testCluster()
	in.ImageProvider = spec.VersionImageProvider{AppVersion: "fnord-1.1.0-h2.def"}

	out, err := r.Resolve(context.Background(), in, inv)
	require.NoError(t, err)
	assert.Equal(t, "ami-222", launchOverride(out.(*spec.ClusterSpec), "us-west-2").Image.ID)
}

func TestImageResolver_NoProviderIsNoop(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)
	in := testCluster()
	in.ImageProvider = nil

	out, err := r.Resolve(context.Background(), in, inv)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

type failingApprovals struct{}

func (failingApprovals) LatestVersionApprovedIn(context.Context, string, string, string) (string, bool, error) {
	return "", false, errors.New("connection reset by peer")
}

var _ inventory.ApprovalRepository = failingApprovals{}

func TestImageResolver_ApprovalLookupFailure(t *testing.T) {
	r := NewImageResolver(failingApprovals{})

	_, err := r.Resolve(context.Background(), testCluster(), testInventory())
	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestImageResolver_Idempotent(t *testing.T) {
	inv := testInventory()
	r := NewImageResolver(inv)
	once, err := r.Resolve(context.Background(), testCluster(), inv)
	require.NoError(t, err)
	twice, err := r.Resolve(context.Background(), once, inv)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
