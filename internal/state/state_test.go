package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/picklr-io/resolvr/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{
		Version: CurrentVersion,
		Lineage: "test-lineage",
		Resources: []ResourceRecord{{
			Address: "ec2/cluster@v1/test:fnord",
			Kind:    spec.KindCluster,
			ID:      "test:fnord",
			Regions: map[string]map[string]any{
				"us-east-1": {"name": "fnord", "capacity": map[string]any{"min": float64(1)}},
			},
		}},
	}
}

func TestManager_ReadMissingFile(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "last-resolved.json"))

	r, err := mgr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, r.Version)
	assert.Zero(t, r.Serial)
	assert.NotEmpty(t, r.Lineage)
	assert.Empty(t, r.Resources)
}

func TestManager_ReadWrite(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")
	path := filepath.Join(t.TempDir(), "nested", "last-resolved.json")
	mgr := NewManager(path)
	ctx := context.Background()

	require.NoError(t, mgr.Write(ctx, testRecord()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"address": "ec2/cluster@v1/test:fnord"`)

	r, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Serial)
	assert.Equal(t, "test-lineage", r.Lineage)
	require.NotNil(t, r.Resource("ec2/cluster@v1/test:fnord"))
	assert.Equal(t, testRecord().Resources[0].Regions, r.Resources[0].Regions)

	require.NoError(t, mgr.Write(ctx, r))
	r, err = mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Serial)
}

func TestManager_EncryptedRoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "record passphrase")
	path := filepath.Join(t.TempDir(), "last-resolved.json")
	mgr := NewManager(path)
	ctx := context.Background()

	require.NoError(t, mgr.Write(ctx, testRecord()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "fnord")

	r, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-lineage", r.Lineage)
}

func TestMarshal_AssignsLineage(t *testing.T) {
	data, err := Marshal(&Record{})
	require.NoError(t, err)

	r, err := Unmarshal(data)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Lineage)
	assert.Equal(t, CurrentVersion, r.Version)
	assert.Equal(t, int64(1), r.Serial)
}

func TestUnmarshal_RejectsNewerVersion(t *testing.T) {
	_, err := Unmarshal([]byte(`{"version": 99}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer")
}

func TestRecord_Addresses(t *testing.T) {
	r := &Record{Resources: []ResourceRecord{{Address: "b"}, {Address: "a"}}}
	assert.Equal(t, []string{"a", "b"}, r.Addresses())
	assert.Nil(t, r.Resource("c"))

	var missing *Record
	assert.Nil(t, missing.Addresses())
}

func TestNormalize(t *testing.T) {
	type value struct {
		Name string `json:"name"`
		Min  int    `json:"min"`
	}
	got, err := Normalize(value{Name: "fnord", Min: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "fnord", "min": float64(2)}, got)
}

func TestManager_Lock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-resolved.json")
	a, b := NewManager(path), NewManager(path)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx))
	err := b.Lock(ctx)
	var locked *LockedError
	require.True(t, errors.As(err, &locked))

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, b.Lock(ctx))
	require.NoError(t, b.Unlock(ctx))
	require.NoError(t, b.Unlock(ctx))
}
