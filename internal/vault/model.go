package vault

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotPaired indicates the pair still awaits its second token.
	ErrNotPaired = errors.New("pair not complete")
	// ErrNotFound indicates a complete pair has no memory yet.
	ErrNotFound = errors.New("memory not found")
	// ErrInvalidInput indicates contents or a sealed record that cannot be stored.
	ErrInvalidInput = errors.New("invalid memory input")
)

// Record is the persisted metadata of one sealed memory. The ciphertext lives
// in the blob store under BlobKey.
type Record struct {
	ID            string
	PairID        string
	BlobKey       string
	Nonce         []byte
	Salt          []byte
	SchemaVersion int
	CreatedAt     time.Time
}

// MemoryRef points at a stored memory without carrying any secret material.
type MemoryRef struct {
	RecordID      string
	PairID        string
	BlobKey       string
	SchemaVersion int
	CreatedAt     time.Time
}

// Sealed is a memory in transport form: metadata plus ciphertext.
type Sealed struct {
	Record     Record
	Ciphertext []byte
}

func (r Record) ref() MemoryRef {
	return MemoryRef{
		RecordID:      r.ID,
		PairID:        r.PairID,
		BlobKey:       r.BlobKey,
		SchemaVersion: r.SchemaVersion,
		CreatedAt:     r.CreatedAt,
	}
}

func blobKey(pairID, recordID string) string {
	return fmt.Sprintf("memories/%s/%s", pairID, recordID)
}
