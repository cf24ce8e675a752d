// Package pedersen implements Pedersen commitments over the ristretto255 group:
// hiding, computationally binding commitments to a 64-bit value with additive and
// subtractive homomorphism.
package pedersen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/group"
)

// domainSeparator must match the Bulletproof transcript label byte-for-byte;
// reused here to derive the second Pedersen generator so both packages agree on
// a single source of curve material.
const domainSeparator = "exonum.private_cryptocurrency"

var (
	curve = group.Ristretto255

	// generatorG is the group's standard base point.
	generatorG = curve.Generator()

	// generatorH has no known discrete logarithm relative to generatorG: it is
	// derived by hashing a fixed, distinct domain tag into the group.
	generatorH = curve.HashToElement([]byte("pedersen-generator-h"), []byte(domainSeparator))
)

// ErrArithmeticOverflow is returned when an Opening addition would overflow u64.
var ErrArithmeticOverflow = errors.New("pedersen: arithmetic overflow")

// ErrArithmeticUnderflow is returned when an Opening subtraction would underflow u64.
var ErrArithmeticUnderflow = errors.New("pedersen: arithmetic underflow")

// ErrInvalidEncoding is returned when a Commitment or Opening cannot be decoded
// from its canonical byte form, including non-canonical point encodings.
var ErrInvalidEncoding = errors.New("pedersen: invalid encoding")

// Commitment is a group element: value*G + blinding*H, 32 bytes compressed.
type Commitment struct {
	point group.Element
}

// Opening reveals a Commitment: the committed value and its blinding scalar.
// Wire size is 40 bytes (8-byte value, 32-byte scalar).
type Opening struct {
	Value    uint64
	Blinding group.Scalar
}

// New creates a commitment to value under a freshly sampled random blinding
// factor, returning both the commitment and its opening.
func New(value uint64) (Commitment, Opening) {
	blinding := curve.RandomNonZeroScalar(rand.Reader)
	opening := Opening{Value: value, Blinding: blinding}
	return FromOpening(opening), opening
}

// WithNoBlinding builds an Opening whose blinding factor is the zero scalar.
// Used for the fixed minimum-transfer-amount reference value (§4.1).
func WithNoBlinding(value uint64) Opening {
	return Opening{Value: value, Blinding: curve.NewScalar()}
}

// FromOpening recomputes the Commitment implied by an Opening.
func FromOpening(o Opening) Commitment {
	valueScalar := curve.NewScalar()
	valueScalar.SetUint64(o.Value)

	term1 := curve.NewElement()
	term1.Mul(generatorG, valueScalar)

	term2 := curve.NewElement()
	term2.Mul(generatorH, o.Blinding)

	sum := curve.NewElement()
	sum.Add(term1, term2)
	return Commitment{point: sum}
}

// Verify reports whether o is a valid opening of c.
func (c Commitment) Verify(o Opening) bool {
	return c.point.IsEqual(FromOpening(o).point)
}

// Add returns the commitment to the sum of the two committed values, with the
// blinding factors also summed. Group-additive; matches Opening.Add.
func (c Commitment) Add(other Commitment) Commitment {
	sum := curve.NewElement()
	sum.Add(c.point, other.point)
	return Commitment{point: sum}
}

// Sub returns the commitment to the difference of the two committed values.
func (c Commitment) Sub(other Commitment) Commitment {
	diff := curve.NewElement()
	diff.Sub(c.point, other.point)
	return Commitment{point: diff}
}

// Bytes returns the 32-byte compressed encoding of the commitment.
func (c Commitment) Bytes() ([32]byte, error) {
	var out [32]byte
	raw, err := c.point.MarshalBinary()
	if err != nil {
		return out, fmt.Errorf("pedersen: marshal commitment: %w", err)
	}
	if len(raw) != 32 {
		return out, ErrInvalidEncoding
	}
	copy(out[:], raw)
	return out, nil
}

// MarshalJSON renders a Commitment as a hex string, for the HTTP API.
func (c Commitment) MarshalJSON() ([]byte, error) {
	raw, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	return json.Marshal(hex.EncodeToString(raw[:]))
}

// UnmarshalJSON parses a Commitment from the hex string MarshalJSON produces.
func (c *Commitment) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("pedersen: decode commitment: %w", err)
	}
	decoded, err := CommitmentFromBytes(raw)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// CommitmentFromBytes decodes a 32-byte compressed point, rejecting
// non-canonical encodings.
func CommitmentFromBytes(b []byte) (Commitment, error) {
	if len(b) != 32 {
		return Commitment{}, ErrInvalidEncoding
	}
	e := curve.NewElement()
	if err := e.UnmarshalBinary(b); err != nil {
		return Commitment{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return Commitment{point: e}, nil
}

// IsEqual reports whether two commitments encode the same group element.
func (c Commitment) IsEqual(other Commitment) bool {
	return c.point.IsEqual(other.point)
}

// Point exposes the underlying group element, for use by the range-proof
// package which needs to combine commitments with other curve material.
func (c Commitment) Point() group.Element {
	return c.point
}

// Add returns the sum of two openings, checked for u64 overflow.
func (o Opening) Add(other Opening) (Opening, error) {
	sum := o.Value + other.Value
	if sum < o.Value {
		return Opening{}, ErrArithmeticOverflow
	}
	blinding := curve.NewScalar()
	blinding.Add(o.Blinding, other.Blinding)
	return Opening{Value: sum, Blinding: blinding}, nil
}

// Sub returns the difference of two openings, checked for u64 underflow.
func (o Opening) Sub(other Opening) (Opening, error) {
	if other.Value > o.Value {
		return Opening{}, ErrArithmeticUnderflow
	}
	blinding := curve.NewScalar()
	blinding.Sub(o.Blinding, other.Blinding)
	return Opening{Value: o.Value - other.Value, Blinding: blinding}, nil
}

// Bytes returns the 40-byte canonical encoding: big-endian value, then the
// 32-byte scalar.
func (o Opening) Bytes() ([40]byte, error) {
	var out [40]byte
	binary.BigEndian.PutUint64(out[:8], o.Value)
	raw, err := o.Blinding.MarshalBinary()
	if err != nil {
		return out, fmt.Errorf("pedersen: marshal opening: %w", err)
	}
	if len(raw) != 32 {
		return out, ErrInvalidEncoding
	}
	copy(out[8:], raw)
	return out, nil
}

// OpeningFromBytes decodes the 40-byte canonical opening encoding.
func OpeningFromBytes(b []byte) (Opening, error) {
	if len(b) != 40 {
		return Opening{}, ErrInvalidEncoding
	}
	value := binary.BigEndian.Uint64(b[:8])
	s := curve.NewScalar()
	if err := s.UnmarshalBinary(b[8:]); err != nil {
		return Opening{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return Opening{Value: value, Blinding: s}, nil
}

// Generators returns the two fixed Pedersen base points, for use by packages
// (notably rangeproof) that must prove statements about the same commitments.
func Generators() (g, h group.Element) {
	return generatorG, generatorH
}

// Group returns the underlying group used throughout the cryptographic core.
func Group() group.Group {
	return curve
}
