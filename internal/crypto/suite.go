package crypto

import (
	"crypto/rand"
	"fmt"
)

// Schema versions understood by this package.
const (
	// SchemaLegacySHA256 is an unsalted SHA-256 over "first::second" with AES-256-GCM.
	SchemaLegacySHA256 = 1
	// SchemaPBKDF2 is PBKDF2-HMAC-SHA256 over "first|second" with AES-256-GCM.
	SchemaPBKDF2 = 2
	// SchemaArgon2XChaCha is Argon2id over length-prefixed secrets with XChaCha20-Poly1305.
	SchemaArgon2XChaCha = 3

	// CurrentSchema is used for new memories unless configured otherwise.
	CurrentSchema = SchemaPBKDF2
)

// KDFKind names a key derivation construction.
type KDFKind string

// AEADKind names an authenticated cipher.
type AEADKind string

const (
	KDFSHA256   KDFKind = "sha256"
	KDFPBKDF2   KDFKind = "pbkdf2-sha256"
	KDFArgon2id KDFKind = "argon2id"

	AEADAESGCM            AEADKind = "aes-256-gcm"
	AEADXChaCha20Poly1305 AEADKind = "xchacha20-poly1305"
)

// Suite binds the KDF and AEAD parameters recorded under one schema version.
type Suite struct {
	Version     int
	KDF         KDFKind
	AEAD        AEADKind
	SaltLength  int
	NonceLength int
	TagLength   int

	// PBKDF2 cost.
	Iterations int

	// Argon2id cost.
	ArgonTime    uint32
	ArgonMemory  uint32 // KiB
	ArgonThreads uint8
}

var suites = map[int]Suite{
	SchemaLegacySHA256: {
		Version:     SchemaLegacySHA256,
		KDF:         KDFSHA256,
		AEAD:        AEADAESGCM,
		NonceLength: 12,
		TagLength:   16,
	},
	SchemaPBKDF2: {
		Version:     SchemaPBKDF2,
		KDF:         KDFPBKDF2,
		AEAD:        AEADAESGCM,
		SaltLength:  16,
		NonceLength: 12,
		TagLength:   16,
		Iterations:  250_000,
	},
	SchemaArgon2XChaCha: {
		Version:      SchemaArgon2XChaCha,
		KDF:          KDFArgon2id,
		AEAD:         AEADXChaCha20Poly1305,
		SaltLength:   16,
		NonceLength:  24,
		TagLength:    16,
		ArgonTime:    3,
		ArgonMemory:  64 * 1024,
		ArgonThreads: 4,
	},
}

// SuiteFor returns the suite registered for a schema version.
func SuiteFor(version int) (Suite, error) {
	s, ok := suites[version]
	if !ok {
		return Suite{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}
	return s, nil
}

// Current returns the suite used for new memories.
func Current() Suite {
	return suites[CurrentSchema]
}

// Salted reports whether the suite's KDF consumes a salt.
func (s Suite) Salted() bool {
	return s.SaltLength > 0
}

// NewSalt draws a fresh random salt, or returns nil for unsalted suites.
func (s Suite) NewSalt() ([]byte, error) {
	if !s.Salted() {
		return nil, nil
	}
	salt := make([]byte, s.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}
