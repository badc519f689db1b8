// Package common provides utility functions for working with random byte
// strings and secure memory wiping.
package common

import (
	"crypto/rand"
	"fmt"
)

// GenerateRandByteArray returns size cryptographically random bytes.
// It returns an error if the platform entropy source fails; callers must
// treat that as fatal for the operation, not retry it.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: entropy unavailable: %v", ErrCrypto, err)
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as content keys from memory
// after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
