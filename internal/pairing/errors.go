package pairing

import "errors"

var (
	// ErrNotFound indicates no pair matched the lookup.
	ErrNotFound = errors.New("pair not found")
	// ErrConflict indicates a conditional write lost a race. Callers re-resolve.
	ErrConflict = errors.New("pair conflict")
	// ErrInvalidToken indicates a blank or oversized token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotComplete indicates the pair still awaits its second token.
	ErrNotComplete = errors.New("pair not complete")
	// ErrTokenMismatch indicates the supplied tokens belong to different pairs.
	ErrTokenMismatch = errors.New("tokens do not form a pair")
)
