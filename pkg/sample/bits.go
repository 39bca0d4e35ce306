// Package sample implements the SampleBits encoding: a string of 2·B binary
// digits that interleaves two B-bit coordinates.
//
// Characters at even indices (0, 2, 4, … counted from the leftmost
// character) form the coordinate n, characters at odd indices form m. The
// leftmost digit of each sub-sequence is its most significant bit, so with
// B = 2 the string "0101" decodes to n = 0b00 = 0 and m = 0b11 = 3.
//
// The first TopicWidth characters double as the routing topic: they are the
// most significant bits of n and m.
package sample

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strings"
)

const (
	// DefaultBits is the coordinate precision B used when none is configured.
	DefaultBits = 32

	// MaxBits is the largest supported precision; coordinates are uint64.
	MaxBits = 64

	// TopicWidth is the number of leading characters used for routing.
	TopicWidth = 2
)

var (
	// ErrEncodingMismatch is returned when a value is not exactly 2·B binary digits.
	ErrEncodingMismatch = errors.New("sample: encoding mismatch")

	// ErrInvalidBits is returned for a precision outside [1, MaxBits].
	ErrInvalidBits = errors.New("sample: precision out of range")

	// ErrCoordinateRange is returned when a coordinate does not fit in B bits.
	ErrCoordinateRange = errors.New("sample: coordinate out of range")
)

// Bits is one encoded sample.
type Bits string

// QuickTopics are the topics whose samples lie inside the circle without
// computation: both coordinates have a zero most significant bit.
var QuickTopics = []string{"00"}

// DistanceTopics are the topics that require a distance computation.
var DistanceTopics = []string{"01", "10", "11"}

// ValidateBits checks that b is a supported precision.
func ValidateBits(b int) error {
	if b < 1 || b > MaxBits {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidBits, b, MaxBits)
	}
	return nil
}

// Generate draws a sample uniformly over the 2^(2B) bit strings.
func Generate(r *rand.Rand, b int) (Bits, error) {
	if err := ValidateBits(b); err != nil {
		return "", err
	}
	return Encode(r.Uint64()&mask(b), r.Uint64()&mask(b), b)
}

// Encode interleaves n and m into a sample of precision b.
func Encode(n, m uint64, b int) (Bits, error) {
	if err := ValidateBits(b); err != nil {
		return "", err
	}
	if n&^mask(b) != 0 || m&^mask(b) != 0 {
		return "", fmt.Errorf("%w: (%d, %d) needs more than %d bits", ErrCoordinateRange, n, m, b)
	}

	var sb strings.Builder
	sb.Grow(2 * b)
	for i := b - 1; i >= 0; i-- {
		sb.WriteByte(digit(n >> uint(i) & 1))
		sb.WriteByte(digit(m >> uint(i) & 1))
	}
	return Bits(sb.String()), nil
}

// Decode splits a sample of precision b into its coordinates.
func Decode(s string, b int) (n, m uint64, err error) {
	if err := ValidateBits(b); err != nil {
		return 0, 0, err
	}
	if len(s) != 2*b {
		return 0, 0, fmt.Errorf("%w: got %d digits, want %d", ErrEncodingMismatch, len(s), 2*b)
	}

	for i := 0; i < len(s); i++ {
		var bit uint64
		switch s[i] {
		case '0':
		case '1':
			bit = 1
		default:
			return 0, 0, fmt.Errorf("%w: non-binary digit %q at index %d", ErrEncodingMismatch, s[i], i)
		}
		if i%2 == 0 {
			n = n<<1 | bit
		} else {
			m = m<<1 | bit
		}
	}
	return n, m, nil
}

// Decode splits the sample into its coordinates.
func (s Bits) Decode(b int) (n, m uint64, err error) {
	return Decode(string(s), b)
}

// Topic returns the routing topic of the sample.
func (s Bits) Topic() string {
	if len(s) < TopicWidth {
		return string(s)
	}
	return string(s[:TopicWidth])
}

// IsQuick reports whether a topic is routed to the quick classifier.
func IsQuick(topic string) bool {
	for _, t := range QuickTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Threshold returns 2^(2B), the squared radius of the circle in the integer
// coordinate space.
func Threshold(b int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(2*b))
}

// Inside reports whether a sum of squares lies strictly inside the circle.
func Inside(sumOfSquares *big.Int, b int) bool {
	return sumOfSquares.Cmp(Threshold(b)) < 0
}

func mask(b int) uint64 {
	if b >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(b) - 1
}

func digit(bit uint64) byte {
	if bit == 1 {
		return '1'
	}
	return '0'
}
