package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemory_ImagePrefersCoverageThenNewest(t *testing.T) {
	m := NewMemory(Data{Images: []NamedImage{
		{Name: "old-full", Account: "test", AppVersion: "v1", CreationDate: t0, ImageIDs: map[string]string{"us-east-1": "ami-1", "us-west-2": "ami-2"}},
		{Name: "new-partial", Account: "test", AppVersion: "v1", CreationDate: t0.Add(time.Hour), ImageIDs: map[string]string{"us-east-1": "ami-3"}},
		{Name: "other-account", Account: "prod", AppVersion: "v1", CreationDate: t0.Add(2 * time.Hour), ImageIDs: map[string]string{"us-east-1": "ami-4", "us-west-2": "ami-5"}},
	}})
	ctx := context.Background()

	img, err := m.Image(ctx, "v1", "test", []string{"us-east-1", "us-west-2"})
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "old-full", img.Name)

	img, err = m.Image(ctx, "v1", "test", []string{"us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "new-partial", img.Name)

	img, err = m.Image(ctx, "v2", "test", []string{"us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	m := NewMemory(Data{
		Subnets: []Subnet{{ID: "subnet-1", Purpose: "internal (vpc0)"}},
		Images:  []NamedImage{{Name: "i", Account: "test", AppVersion: "v1", ImageIDs: map[string]string{"us-east-1": "ami-1"}}},
	})
	ctx := context.Background()

	subnets, _ := m.Subnets(ctx, DefaultProvider)
	subnets[0].Purpose = "changed"
	img, _ := m.Image(ctx, "v1", "test", []string{"us-east-1"})
	img.ImageIDs["us-east-1"] = "changed"

	subnets, _ = m.Subnets(ctx, DefaultProvider)
	assert.Equal(t, "internal (vpc0)", subnets[0].Purpose)
	img, _ = m.Image(ctx, "v1", "test", []string{"us-east-1"})
	assert.Equal(t, "ami-1", img.ImageIDs["us-east-1"])
}

func TestMemory_LatestVersionApprovedIn(t *testing.T) {
	m := NewMemory(Data{})
	m.Approve(Approval{DeliveryConfig: "dc", Artifact: "fnord", Environment: "test", Version: "fnord-1.0.0", ApprovedAt: t0})
	m.Approve(Approval{DeliveryConfig: "dc", Artifact: "fnord", Environment: "test", Version: "fnord-1.1.0", ApprovedAt: t0.Add(time.Hour)})
	m.Approve(Approval{DeliveryConfig: "dc", Artifact: "fnord", Environment: "prod", Version: "fnord-0.9.0", ApprovedAt: t0.Add(2 * time.Hour)})
	ctx := context.Background()

	v, ok, err := m.LatestVersionApprovedIn(ctx, "dc", "fnord", "test")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fnord-1.1.0", v)

	_, ok, err = m.LatestVersionApprovedIn(ctx, "dc", "fnord", "staging")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
networks:
  - id: vpc-1
    name: vpc0
    account: test
    region: us-east-1
subnets:
  - id: subnet-1
    vpcId: vpc-1
    account: test
    region: us-east-1
    availabilityZone: us-east-1a
    purpose: internal (vpc0)
keyPairs:
  test: nf-keypair-test-{{region}}
images:
  - name: fnord-1.0.0-h1
    account: test
    appVersion: fnord-1.0.0-h1
    creationDate: 2026-01-01T00:00:00Z
    imageIds:
      us-east-1: ami-1
`), 0644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	networks, _ := m.Networks(ctx, DefaultProvider)
	require.Len(t, networks, 1)
	assert.Equal(t, "vpc0", networks[0].Name)

	kp, _ := m.DefaultKeyPair(ctx, "test")
	assert.Equal(t, "nf-keypair-test-{{region}}", kp)

	img, _ := m.Image(ctx, "fnord-1.0.0-h1", "test", []string{"us-east-1"})
	require.NotNil(t, img)
	assert.Equal(t, t0, img.CreationDate)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMemory_SetDefaultKeyPair(t *testing.T) {
	m := NewMemory(Data{})
	ctx := context.Background()

	kp, err := m.DefaultKeyPair(ctx, "test")
	require.NoError(t, err)
	assert.Empty(t, kp)

	m.SetDefaultKeyPair("test", "nf-keypair-test-{{region}}")
	kp, err = m.DefaultKeyPair(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "nf-keypair-test-{{region}}", kp)

	data := m.Data()
	data.KeyPairs["test"] = "changed"
	assert.Equal(t, "nf-keypair-test-{{region}}", m.Data().KeyPairs["test"])
}
