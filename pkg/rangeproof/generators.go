package rangeproof

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/group"

	"github.com/certen/private-currency/pkg/pedersen"
)

var randReader io.Reader = rand.Reader

// BitLength is the width of the range proven: [0, 2^BitLength).
const BitLength = 64

// numRounds is log2(BitLength); the inner-product argument folds the vectors
// by half this many times.
const numRounds = 6

// domainSeparator is the fixed Fiat-Shamir transcript label. Implementations
// MUST use this byte-for-byte.
const domainSeparator = "exonum.private_cryptocurrency"

var curve = pedersen.Group()

var (
	genG, genH = pedersen.Generators()
	genU       = curve.HashToElement([]byte("bulletproof-ipa-u"), []byte(domainSeparator))
	vecG       = deriveVector("bulletproof-vec-g")
	vecH       = deriveVector("bulletproof-vec-h")
)

func deriveVector(tag string) [BitLength]group.Element {
	var out [BitLength]group.Element
	for i := 0; i < BitLength; i++ {
		out[i] = curve.HashToElement([]byte(fmt.Sprintf("%s/%d", tag, i)), []byte(domainSeparator))
	}
	return out
}

func newScalarUint64(v uint64) group.Scalar {
	s := curve.NewScalar()
	s.SetUint64(v)
	return s
}

func negOne() group.Scalar {
	one := newScalarUint64(1)
	s := curve.NewScalar()
	s.Neg(one)
	return s
}

func powers(x group.Scalar, n int) []group.Scalar {
	out := make([]group.Scalar, n)
	cur := newScalarUint64(1)
	for i := 0; i < n; i++ {
		out[i] = cur.Copy()
		next := curve.NewScalar()
		next.Mul(cur, x)
		cur = next
	}
	return out
}

func hadamard(a, b []group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(a))
	for i := range a {
		out[i] = curve.NewScalar()
		out[i].Mul(a[i], b[i])
	}
	return out
}

func vecAdd(a, b []group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(a))
	for i := range a {
		out[i] = curve.NewScalar()
		out[i].Add(a[i], b[i])
	}
	return out
}

func vecSub(a, b []group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(a))
	for i := range a {
		out[i] = curve.NewScalar()
		out[i].Sub(a[i], b[i])
	}
	return out
}

func vecScalarMul(s group.Scalar, v []group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(v))
	for i := range v {
		out[i] = curve.NewScalar()
		out[i].Mul(s, v[i])
	}
	return out
}

func vecAddConst(v []group.Scalar, c group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(v))
	for i := range v {
		out[i] = curve.NewScalar()
		out[i].Add(v[i], c)
	}
	return out
}

func innerProduct(a, b []group.Scalar) group.Scalar {
	sum := curve.NewScalar()
	for i := range a {
		term := curve.NewScalar()
		term.Mul(a[i], b[i])
		sum.Add(sum, term)
	}
	return sum
}

// multiScalarMul computes sum_i scalars[i]*points[i].
func multiScalarMul(points []group.Element, scalars []group.Scalar) group.Element {
	acc := curve.NewElement() // identity
	for i := range points {
		term := curve.NewElement()
		term.Mul(points[i], scalars[i])
		acc.Add(acc, term)
	}
	return acc
}

func elementVectorScale(points []group.Element, scalars []group.Scalar) []group.Element {
	out := make([]group.Element, len(points))
	for i := range points {
		out[i] = curve.NewElement()
		out[i].Mul(points[i], scalars[i])
	}
	return out
}

func invertScalar(s group.Scalar) group.Scalar {
	inv := curve.NewScalar()
	inv.Inv(s)
	return inv
}

func onesVector(n int) []group.Scalar {
	out := make([]group.Scalar, n)
	one := newScalarUint64(1)
	for i := range out {
		out[i] = one.Copy()
	}
	return out
}

func randomVector(n int) []group.Scalar {
	out := make([]group.Scalar, n)
	for i := range out {
		out[i] = curve.RandomNonZeroScalar(randReader)
	}
	return out
}
