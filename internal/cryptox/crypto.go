// Package cryptox implements the content-key manager for the drive client:
// per-file AES-256-GCM keys, transportable key export, and a passphrase
// escrow for keys kept at rest on the device.
//
// Every encryption call draws a fresh 96-bit iv. An iv must never be reused
// with the same key; GCM loses both confidentiality and integrity if that
// happens, so there is no code path that accepts a caller-provided iv.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/nexuscloud/drivesync/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the content-key length in bytes (AES-256).
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	saltSize = 16
)

// ContentKey is a symmetric key bound to exactly one file. It is never
// persisted by the local cache and never derived from file content or from
// another key, so a compromised key exposes one file only.
type ContentKey []byte

// GenerateKey produces a fresh 256-bit content key. The only failure mode is
// platform entropy unavailability, which is fatal for the operation and not
// retryable.
func GenerateKey() (ContentKey, error) {
	b, err := common.GenerateRandByteArray(KeySize)
	if err != nil {
		return nil, err
	}
	return ContentKey(b), nil
}

// ExportKey serializes a key to a transportable text form for local escrow or
// secure sharing. ImportKey is the inverse.
func ExportKey(key ContentKey) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey reconstructs a key previously produced by ExportKey.
func ImportKey(s string) (ContentKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key encoding: %v", common.ErrCrypto, err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrCrypto, KeySize, len(b))
	}
	return ContentKey(b), nil
}

// Encrypt seals plaintext under key with AES-256-GCM and a freshly generated
// 96-bit iv. Both the ciphertext and the iv are required for decryption.
func Encrypt(plaintext []byte, key ContentKey) (ciphertext, iv []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv, err = common.GenerateRandByteArray(aead.NonceSize())
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aead.Seal(nil, iv, plaintext, nil)
	return ciphertext, iv, nil
}

// Decrypt opens ciphertext produced by Encrypt. A failed authentication tag
// returns common.ErrIntegrity; corrupted plaintext is never returned.
func Decrypt(ciphertext []byte, key ContentKey, iv []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}
	return plaintext, nil
}

// SealedKey is a content key protected by a passphrase for storage at rest.
type SealedKey struct {
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealKey wraps a content key under a key derived from passphrase with
// argon2id. The derived key-encryption key is wiped before returning.
func SealKey(key ContentKey, passphrase []byte) (*SealedKey, error) {
	salt, err := common.GenerateRandByteArray(saltSize)
	if err != nil {
		return nil, err
	}

	kek := deriveKEK(passphrase, salt)
	defer common.WipeByteArray(kek)

	ciphertext, iv, err := Encrypt(key, ContentKey(kek))
	if err != nil {
		return nil, err
	}

	return &SealedKey{Salt: salt, IV: iv, Ciphertext: ciphertext}, nil
}

// OpenKey recovers a content key sealed by SealKey. A wrong passphrase
// surfaces as common.ErrIntegrity.
func OpenKey(sealed *SealedKey, passphrase []byte) (ContentKey, error) {
	kek := deriveKEK(passphrase, sealed.Salt)
	defer common.WipeByteArray(kek)

	key, err := Decrypt(sealed.Ciphertext, ContentKey(kek), sealed.IV)
	if err != nil {
		return nil, err
	}
	return ContentKey(key), nil
}

func deriveKEK(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

func newGCM(key ContentKey) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrCrypto, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return aead, nil
}
