package cryptox

import (
	"errors"
	"testing"

	"github.com/nexuscloud/drivesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, []byte(k1), KeySize)

	k2, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2, "keys must be independent")
}

func TestExportImportKey_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	imported, err := ImportKey(ExportKey(key))
	require.NoError(t, err)
	require.Equal(t, key, imported)

	// The imported key must produce identical decrypt output.
	ct, iv, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)
	pt, err := Decrypt(ct, imported, iv)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pt)
}

func TestImportKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "%%%"},
		{"wrong length", "c2hvcnQ="},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImportKey(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrCrypto))
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	tests := [][]byte{
		[]byte("hello"),
		{},
		make([]byte, 1<<16),
	}

	for _, plaintext := range tests {
		ct, iv, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		require.Len(t, iv, IVSize)
		assert.NotEqual(t, plaintext, ct)

		got, err := Decrypt(ct, key, iv)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_IVNeverRepeats(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		_, iv, err := Encrypt([]byte("same plaintext"), key)
		require.NoError(t, err)
		require.False(t, seen[string(iv)], "iv reused for the same key")
		seen[string(iv)] = true
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	ct, iv, err := Encrypt([]byte("sensitive bytes"), key)
	require.NoError(t, err)

	// Flipping any single bit of the ciphertext must fail closed.
	for i := range ct {
		mutated := append([]byte(nil), ct...)
		mutated[i] ^= 0x01
		_, err := Decrypt(mutated, key, iv)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrIntegrity))
	}

	// Same for the iv.
	for i := range iv {
		mutated := append([]byte(nil), iv...)
		mutated[i] ^= 0x01
		_, err := Decrypt(ct, key, mutated)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrIntegrity))
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	ct, iv, err := Encrypt([]byte("abc"), key)
	require.NoError(t, err)

	_, err = Decrypt(ct, other, iv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIntegrity))
}

func TestSealOpenKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := SealKey(key, []byte("correct horse"))
	require.NoError(t, err)

	got, err := OpenKey(sealed, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = OpenKey(sealed, []byte("wrong passphrase"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIntegrity))
}

func TestEncrypt_RejectsBadKeyLength(t *testing.T) {
	_, _, err := Encrypt([]byte("x"), ContentKey("short"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCrypto))
}
