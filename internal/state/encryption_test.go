package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusterRecord() *Record {
	r := NewRecord()
	r.Resources = []ResourceRecord{{
		Address: "ec2/cluster@v1.prod:fnord-main",
		Kind:    "ec2/cluster@v1",
		ID:      "prod:fnord-main",
		Regions: map[string]map[string]any{
			"us-east-1": {"imageId": "ami-0abc", "keyPair": "fnord-prod-keypair"},
		},
	}}
	return r
}

func TestEncryptState_PlainWithoutKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	content, err := Marshal(clusterRecord())
	require.NoError(t, err)

	out, err := EncryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, out)

	back, err := DecryptState(out)
	require.NoError(t, err)
	assert.Equal(t, content, back)
}

func TestDecryptState_Failures(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "us-east-1 passphrase")
	sealed, err := EncryptState([]byte(`{"version": 1, "serial": 7}`))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		t.Setenv(EncryptionKeyEnvVar, "us-west-2 passphrase")
		_, err := DecryptState(sealed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wrong key")
	})

	t.Run("key unset", func(t *testing.T) {
		t.Setenv(EncryptionKeyEnvVar, "")
		_, err := DecryptState(sealed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decrypt([]byte(encryptedHeader+"AAAA\n"), DeriveKey("k"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too short")
	})
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte(encryptedHeader+"c2VhbGVk")))
	assert.False(t, IsEncrypted([]byte(`{"version": 1}`)))
	assert.False(t, IsEncrypted(nil))
}
