package imagehash

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrEmptyImage     = errors.New("image has no pixels")
	ErrMalformed      = errors.New("malformed fingerprint")
	ErrLengthMismatch = errors.New("fingerprint length mismatch")
)

// DefaultThreshold is the largest Hamming distance still treated as the same image.
const DefaultThreshold = 5

// Distance returns the number of differing bits between two hashes.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// HexDistance returns the Hamming distance between two hex-encoded fingerprints
// of equal length. Fingerprints of different lengths are never truncated.
func HexDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d characters", ErrLengthMismatch, len(a), len(b))
	}
	ab, err := hex.DecodeString(a)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	d := 0
	for i := range ab {
		d += bits.OnesCount8(ab[i] ^ bb[i])
	}
	return d, nil
}

// Matcher flags fingerprints within Threshold bits of each other.
type Matcher struct {
	Threshold int
}

// NewMatcher creates a Matcher with the given threshold.
func NewMatcher(threshold int) *Matcher {
	return &Matcher{Threshold: threshold}
}

// IsDuplicate reports whether a and b are within the threshold.
// A missing fingerprint on either side is never a duplicate.
func (m *Matcher) IsDuplicate(a, b *string) (bool, error) {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false, nil
	}
	d, err := HexDistance(*a, *b)
	if err != nil {
		return false, err
	}
	return d <= m.Threshold, nil
}
