package enc

import (
	"crypto/sha512"
	"math/big"

	"github.com/certen/private-currency/pkg/keys"
)

// fieldPrime is 2^255 - 19, the prime underlying Curve25519 and ristretto255.
var fieldPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 255)
	return p.Sub(p, big.NewInt(19))
}()

// edwardsYFromCompressed extracts the Edwards y-coordinate from a compressed
// Ed25519 public key: the low 255 bits, little-endian, ignoring the sign bit
// that the birational map to the Montgomery u-coordinate does not need.
func edwardsYFromCompressed(pk keys.PublicKey) *big.Int {
	buf := make([]byte, 32)
	copy(buf, pk[:])
	buf[31] &= 0x7f // clear the sign bit

	// big.Int.SetBytes expects big-endian; the wire encoding is little-endian.
	be := make([]byte, 32)
	for i := 0; i < 32; i++ {
		be[i] = buf[31-i]
	}
	return new(big.Int).SetBytes(be)
}

func encodeFieldElement(v *big.Int) [32]byte {
	var out [32]byte
	be := v.Bytes()
	for i := 0; i < len(be) && i < 32; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// publicKeyFromEd25519 applies the standard birational map from an Ed25519
// (Edwards) public key to its corresponding X25519 (Montgomery) public key:
// u = (1+y) / (1-y) mod p.
func publicKeyFromEd25519(pk keys.PublicKey) [32]byte {
	y := edwardsYFromCompressed(pk)

	one := big.NewInt(1)
	numerator := new(big.Int).Add(one, y)
	numerator.Mod(numerator, fieldPrime)

	denominator := new(big.Int).Sub(one, y)
	denominator.Mod(denominator, fieldPrime)
	denominator.ModInverse(denominator, fieldPrime)

	u := new(big.Int).Mul(numerator, denominator)
	u.Mod(u, fieldPrime)

	return encodeFieldElement(u)
}

// secretKeyFromEd25519 derives the X25519 secret scalar from an Ed25519
// signing key: the same clamped SHA-512(seed) prefix the signing scheme
// itself uses as its secret scalar, reused directly as a Curve25519 scalar.
func secretKeyFromEd25519(sk keys.PrivateKey) [32]byte {
	seed := sk[:32] // circl/ed25519 private keys store the seed in the first 32 bytes
	h := sha512.Sum512(seed)

	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}
