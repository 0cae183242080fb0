package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey derives a memory key with the current suite.
func DeriveKey(first, second, salt []byte) ([]byte, error) {
	return Current().DeriveKey(first, second, salt)
}

// DeriveKey turns two token secrets into a KeyLength-byte key.
//
// The order is positional: first must be the pair's first-scanned token. The
// pairing protocol fixes which token that is, so both physical scan orders
// reach the same key. The caller owns the returned key and should Wipe it.
func (s Suite) DeriveKey(first, second, salt []byte) ([]byte, error) {
	if len(first) == 0 || len(second) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	if len(salt) != s.SaltLength {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidInput, s.SaltLength, len(salt))
	}

	switch s.KDF {
	case KDFSHA256:
		material := joinSecrets(first, second, "::")
		defer Wipe(material)
		sum := sha256.Sum256(material)
		key := make([]byte, KeyLength)
		copy(key, sum[:])
		Wipe(sum[:])
		return key, nil
	case KDFPBKDF2:
		material := joinSecrets(first, second, "|")
		defer Wipe(material)
		return pbkdf2.Key(material, salt, s.Iterations, KeyLength, sha256.New), nil
	case KDFArgon2id:
		material := lengthPrefixed(first, second)
		defer Wipe(material)
		return argon2.IDKey(material, salt, s.ArgonTime, s.ArgonMemory, s.ArgonThreads, KeyLength), nil
	default:
		return nil, fmt.Errorf("%w: kdf %q", ErrUnsupportedSchema, s.KDF)
	}
}

func joinSecrets(first, second []byte, sep string) []byte {
	out := make([]byte, 0, len(first)+len(sep)+len(second))
	out = append(out, first...)
	out = append(out, sep...)
	return append(out, second...)
}

// lengthPrefixed encodes both secrets unambiguously, so ("a:", "b") and
// ("a", ":b") never collide.
func lengthPrefixed(first, second []byte) []byte {
	out := make([]byte, 0, 8+len(first)+len(second))
	out = binary.BigEndian.AppendUint32(out, uint32(len(first)))
	out = append(out, first...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(second)))
	return append(out, second...)
}
