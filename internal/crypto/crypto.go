// Package crypto defines the black-box AEAD boundary the core calls
// in-place seal/open through. The cipher is an external collaborator,
// not part of the core's own state machine.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecureAEAD performs authenticated encryption directly within a caller-
// owned buffer, matching the slab's zero-copy discipline: no allocation or
// copy beyond what the underlying cipher itself requires.
type SecureAEAD interface {
	// SealInPlace encrypts buffer in place under key/nonce/aad and
	// returns the authentication tag to append on the wire.
	SealInPlace(key *[32]byte, nonce *[12]byte, aad, buffer []byte) (tag []byte, err error)

	// OpenInPlace decrypts buffer in place under key/nonce/aad/tag.
	OpenInPlace(key *[32]byte, nonce *[12]byte, aad, buffer, tag []byte) error
}

// ChaCha20Poly1305AEAD is the default SecureAEAD, matching the cipher
// choice of the system this spec was distilled from.
type ChaCha20Poly1305AEAD struct{}

// NewDefault returns the default AEAD implementation.
func NewDefault() SecureAEAD {
	return ChaCha20Poly1305AEAD{}
}

func (ChaCha20Poly1305AEAD) SealInPlace(key *[32]byte, nonce *[12]byte, aad, buffer []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher init failed: %w", err)
	}
	// Seal appends ciphertext+tag to buffer[:0], reusing buffer's storage
	// (it reallocates when buffer has no spare capacity for the tag); the
	// ciphertext is then copied back into buffer and the tag split off.
	sealed := aead.Seal(buffer[:0], nonce[:], buffer, aad)
	tagStart := len(sealed) - aead.Overhead()
	copy(buffer, sealed[:tagStart])
	tag := make([]byte, aead.Overhead())
	copy(tag, sealed[tagStart:])
	return tag, nil
}

func (ChaCha20Poly1305AEAD) OpenInPlace(key *[32]byte, nonce *[12]byte, aad, buffer, tag []byte) error {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return fmt.Errorf("crypto: cipher init failed: %w", err)
	}
	sealed := make([]byte, 0, len(buffer)+len(tag))
	sealed = append(sealed, buffer...)
	sealed = append(sealed, tag...)
	opened, err := aead.Open(buffer[:0], nonce[:], sealed, aad)
	if err != nil {
		return fmt.Errorf("crypto: integrity check failed: %w", err)
	}
	copy(buffer, opened)
	return nil
}
