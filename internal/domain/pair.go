package domain

import (
	"bytes"

	"github.com/google/uuid"
)

// SortPair returns the two user IDs in canonical order. Every lookup keyed by a
// pair of participants goes through this so that either side of a conversation
// or call resolves to the same key.
func SortPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// PairID returns the canonical string identifier for an unordered user pair.
// Used as the partition key for 1:1 conversations.
func PairID(a, b uuid.UUID) string {
	lo, hi := SortPair(a, b)
	return lo.String() + ":" + hi.String()
}
