package proccommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("s3cret-db-password")
	passphrase := "unit-test-passphrase"

	blob, err := Encrypt(plaintext, passphrase)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), string(plaintext))

	decrypted, err := Decrypt(blob, passphrase)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptIsSalted(t *testing.T) {
	plaintext := []byte("same input")
	passphrase := "unit-test-passphrase"

	blob1, err := Encrypt(plaintext, passphrase)
	require.NoError(t, err)
	blob2, err := Encrypt(plaintext, passphrase)
	require.NoError(t, err)

	// Salt and nonce are random, so ciphertexts never repeat
	assert.NotEqual(t, blob1, blob2)
}

func TestDecryptRejectsWrongPassphrase(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), "right-passphrase")
	require.NoError(t, err)

	_, err = Decrypt(blob, "wrong-passphrase")
	assert.Error(t, err)
}

func TestDecryptRejectsTruncatedBlob(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), "passphrase")
	require.NoError(t, err)

	_, err = Decrypt(blob[:10], "passphrase")
	assert.Error(t, err)

	_, err = Decrypt(nil, "passphrase")
	assert.Error(t, err)
}

func TestGetUniqueId(t *testing.T) {
	id := GetUniqueId(ID_TYPE_WORKSPACE)
	require.Len(t, id, WORKSPACE_CODE_LEN+1)
	assert.Equal(t, byte('W'), id[0])

	uid := GetUniqueId(ID_TYPE_USER)
	assert.Equal(t, byte('U'), uid[0])

	generic := GetUniqueId(ID_TYPE_GENERIC)
	assert.Len(t, generic, WORKSPACE_CODE_LEN)
}
