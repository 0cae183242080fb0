// Package crypto derives memory keys from a pair of token secrets and seals
// memory payloads with authenticated encryption.
//
// Every sealed memory records the schema version of the Suite that produced
// it, so records written by older suites remain readable:
//
//	suite, err := crypto.SuiteFor(record.SchemaVersion)
//	key, err := suite.DeriveKey(first, second, record.Salt)
//	defer crypto.Wipe(key)
//	plaintext, err := suite.Open(key, record.Nonce, ciphertext)
package crypto

import (
	"errors"
	"runtime"
)

// KeyLength is the length of every derived key in bytes (256 bits).
const KeyLength = 32

var (
	// ErrInvalidInput indicates an empty secret, a malformed salt or a key of the wrong size.
	ErrInvalidInput = errors.New("crypto: invalid input")

	// ErrAuthenticationFailed indicates the ciphertext could not be authenticated
	// under the given key and nonce. No plaintext is ever returned with it.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")

	// ErrUnsupportedSchema indicates a schema version with no registered suite.
	ErrUnsupportedSchema = errors.New("crypto: unsupported schema version")
)

// Wipe overwrites key material with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
