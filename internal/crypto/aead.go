package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Seal encrypts plaintext with AES-256-GCM under a fresh random nonce.
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	return suites[SchemaPBKDF2].Seal(key, plaintext)
}

// Open authenticates and decrypts an AES-256-GCM ciphertext.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	return suites[SchemaPBKDF2].Open(key, nonce, ciphertext)
}

// Seal encrypts plaintext under key with a nonce drawn from crypto/rand for
// this call only. The tag is appended to the returned ciphertext.
func (s Suite) Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open verifies and decrypts ciphertext. Every failure past key validation,
// including a wrong key, a bad nonce length or truncation, is reported as
// ErrAuthenticationFailed.
func (s Suite) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() || len(ciphertext) < aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

func (s Suite) newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidInput, KeyLength)
	}

	switch s.AEAD {
	case AEADAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: create cipher: %w", err)
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, s.NonceLength)
		if err != nil {
			return nil, fmt.Errorf("crypto: create gcm: %w", err)
		}
		return gcm, nil
	case AEADXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: create xchacha20-poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%w: aead %q", ErrUnsupportedSchema, s.AEAD)
	}
}
