// Package rangeproof implements a single-value Bulletproof range proof over
// the ristretto255 group, proving that a Pedersen-committed 64-bit value lies
// in [0, 2^64) without revealing the value. Fiat-Shamir non-interactivity uses
// the fixed transcript label "exonum.private_cryptocurrency".
package rangeproof

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/group"

	"github.com/certen/private-currency/pkg/pedersen"
)

// ElementsSize is the number of 32-byte group-sized elements a serialized
// proof occupies: 9 fixed elements plus two per inner-product-argument round.
const ElementsSize = 9 + 2*numRounds

// elementByteLen is the encoded width of both ristretto255 points and scalars.
const elementByteLen = 32

// ErrInvalidEncoding is returned when a proof cannot be parsed from its
// canonical byte form.
var ErrInvalidEncoding = errors.New("rangeproof: invalid encoding")

// Proof is a non-interactive Bulletproof that a commitment opens to a value
// in [0, 2^64).
type Proof struct {
	A, S, T1, T2   group.Element
	TauX, Mu, THat group.Scalar
	L, R           []group.Element
	AFinal, BFinal group.Scalar
}

// Prove produces a range proof for the given opening, or an error if the
// committed value does not fit in the proven range (it always does for a
// valid uint64, but the signature mirrors the fallible original protocol).
func Prove(opening pedersen.Opening) (*Proof, error) {
	n := BitLength
	v := opening.Value
	gamma := opening.Blinding

	aL := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		aL[i] = newScalarUint64((v >> uint(i)) & 1)
	}
	aR := vecAddConst(aL, negOne())

	alpha := curve.RandomNonZeroScalar(randReader)
	A := multiScalarMul(concatElements(vecG[:], vecH[:]), concatScalars(aL, aR))
	aTerm := curve.NewElement()
	aTerm.Mul(genH, alpha)
	A.Add(A, aTerm)

	sL := randomVector(n)
	sR := randomVector(n)
	rho := curve.RandomNonZeroScalar(randReader)
	S := multiScalarMul(concatElements(vecG[:], vecH[:]), concatScalars(sL, sR))
	sTerm := curve.NewElement()
	sTerm.Mul(genH, rho)
	S.Add(S, sTerm)

	commitment := pedersen.FromOpening(opening)

	tr := newTranscript()
	if err := tr.appendElement("V", commitment.Point()); err != nil {
		return nil, fmt.Errorf("rangeproof: append V: %w", err)
	}
	if err := tr.appendElement("A", A); err != nil {
		return nil, err
	}
	if err := tr.appendElement("S", S); err != nil {
		return nil, err
	}
	y := tr.challengeScalar("y")
	z := tr.challengeScalar("z")

	yPowers := powers(y, n)
	twoPowers := powers(newScalarUint64(2), n)
	zSq := curve.NewScalar()
	zSq.Mul(z, z)
	ones := onesVector(n)

	l0 := vecSub(aL, vecScalarMul(z, ones))
	l1 := sL
	r0 := vecAdd(hadamard(yPowers, vecAdd(aR, vecScalarMul(z, ones))), vecScalarMul(zSq, twoPowers))
	r1 := hadamard(yPowers, sR)

	t0 := innerProduct(l0, r0)
	_ = t0 // not transmitted; folded implicitly into the verifier's commitment check
	t1a := innerProduct(l0, r1)
	t1b := innerProduct(l1, r0)
	t1 := curve.NewScalar()
	t1.Add(t1a, t1b)
	t2 := innerProduct(l1, r1)

	tau1 := curve.RandomNonZeroScalar(randReader)
	tau2 := curve.RandomNonZeroScalar(randReader)

	T1 := curve.NewElement()
	T1.Mul(genG, t1)
	t1hTerm := curve.NewElement()
	t1hTerm.Mul(genH, tau1)
	T1.Add(T1, t1hTerm)

	T2 := curve.NewElement()
	T2.Mul(genG, t2)
	t2hTerm := curve.NewElement()
	t2hTerm.Mul(genH, tau2)
	T2.Add(T2, t2hTerm)

	if err := tr.appendElement("T1", T1); err != nil {
		return nil, err
	}
	if err := tr.appendElement("T2", T2); err != nil {
		return nil, err
	}
	x := tr.challengeScalar("x")
	xSq := curve.NewScalar()
	xSq.Mul(x, x)

	l := vecAdd(l0, vecScalarMul(x, l1))
	r := vecAdd(r0, vecScalarMul(x, r1))
	tHat := innerProduct(l, r)

	tauX := curve.NewScalar()
	tauX.Mul(tau2, xSq)
	tmp := curve.NewScalar()
	tmp.Mul(tau1, x)
	tauX.Add(tauX, tmp)
	gammaTerm := curve.NewScalar()
	gammaTerm.Mul(zSq, gamma)
	tauX.Add(tauX, gammaTerm)

	mu := curve.NewScalar()
	mu.Mul(rho, x)
	mu.Add(mu, alpha)

	tr.appendBytes("tHat", mustScalarBytes(tHat))
	tr.appendBytes("tauX", mustScalarBytes(tauX))
	tr.appendBytes("mu", mustScalarBytes(mu))
	w := tr.challengeScalar("w")

	uPrime := curve.NewElement()
	uPrime.Mul(genU, w)

	yInv := invertScalar(y)
	yInvPowers := powers(yInv, n)
	hPrime := elementVectorScale(vecH[:], yInvPowers)

	ls, rs, aFinal, bFinal := ipaProve(tr, vecG[:], hPrime, uPrime, l, r)

	return &Proof{
		A: A, S: S, T1: T1, T2: T2,
		TauX: tauX, Mu: mu, THat: tHat,
		L: ls, R: rs,
		AFinal: aFinal, BFinal: bFinal,
	}, nil
}

// Verify reports whether p proves that commitment opens to a value in
// [0, 2^64).
func (p *Proof) Verify(commitment pedersen.Commitment) bool {
	n := BitLength
	if len(p.L) != numRounds || len(p.R) != numRounds {
		return false
	}

	tr := newTranscript()
	if err := tr.appendElement("V", commitment.Point()); err != nil {
		return false
	}
	if err := tr.appendElement("A", p.A); err != nil {
		return false
	}
	if err := tr.appendElement("S", p.S); err != nil {
		return false
	}
	y := tr.challengeScalar("y")
	z := tr.challengeScalar("z")

	if err := tr.appendElement("T1", p.T1); err != nil {
		return false
	}
	if err := tr.appendElement("T2", p.T2); err != nil {
		return false
	}
	x := tr.challengeScalar("x")
	xSq := curve.NewScalar()
	xSq.Mul(x, x)

	// Polynomial commitment check: tHat*G + tauX*H == z^2*V + delta(y,z)*G + x*T1 + x^2*T2.
	n64 := n
	yPowers := powers(y, n64)
	twoPowers := powers(newScalarUint64(2), n64)
	ones := onesVector(n64)
	sumY := innerProduct(yPowers, ones)
	sumTwo := innerProduct(twoPowers, ones)

	zSq := curve.NewScalar()
	zSq.Mul(z, z)
	zCube := curve.NewScalar()
	zCube.Mul(zSq, z)

	zMinusZSq := curve.NewScalar()
	zMinusZSq.Sub(z, zSq)
	delta := curve.NewScalar()
	delta.Mul(zMinusZSq, sumY)
	zCubeSumTwo := curve.NewScalar()
	zCubeSumTwo.Mul(zCube, sumTwo)
	delta.Sub(delta, zCubeSumTwo)

	lhs := curve.NewElement()
	lhs.Mul(genG, p.THat)
	lhsH := curve.NewElement()
	lhsH.Mul(genH, p.TauX)
	lhs.Add(lhs, lhsH)

	rhs := curve.NewElement()
	rhs.Mul(commitment.Point(), zSq)
	deltaTerm := curve.NewElement()
	deltaTerm.Mul(genG, delta)
	rhs.Add(rhs, deltaTerm)
	xT1 := curve.NewElement()
	xT1.Mul(p.T1, x)
	rhs.Add(rhs, xT1)
	xSqT2 := curve.NewElement()
	xSqT2.Mul(p.T2, xSq)
	rhs.Add(rhs, xSqT2)

	if !lhs.IsEqual(rhs) {
		return false
	}

	tr.appendBytes("tHat", mustScalarBytes(p.THat))
	tr.appendBytes("tauX", mustScalarBytes(p.TauX))
	tr.appendBytes("mu", mustScalarBytes(p.Mu))
	w := tr.challengeScalar("w")
	uPrime := curve.NewElement()
	uPrime.Mul(genU, w)

	yInv := invertScalar(y)
	yInvPowers := powers(yInv, n64)
	hPrime := elementVectorScale(vecH[:], yInvPowers)

	// Reconstruct the IPA round challenges, exactly as the prover derived them.
	challenges := make([]group.Scalar, numRounds)
	for i := 0; i < numRounds; i++ {
		if err := tr.appendElement("ipa/L", p.L[i]); err != nil {
			return false
		}
		if err := tr.appendElement("ipa/R", p.R[i]); err != nil {
			return false
		}
		challenges[i] = tr.challengeScalar("ipa/x")
	}

	gFinal, hFinal := ipaFoldGenerators(vecG[:], hPrime, challenges)

	// Public commitment point the folded (aFinal, bFinal) must open:
	// P = A + x*S - z*sum(G) + z*<y^n,H'> + z^2*<2^n,H'> - mu*H.
	target := p.A.Copy()
	xS := curve.NewElement()
	xS.Mul(p.S, x)
	target.Add(target, xS)

	negZ := curve.NewScalar()
	negZ.Neg(z)
	sumG := multiScalarMul(vecG[:], vecScalarMul(negZ, ones))
	target.Add(target, sumG)

	zHPrime := multiScalarMul(hPrime, vecScalarMul(z, yPowers))
	target.Add(target, zHPrime)

	zSqHPrime := multiScalarMul(hPrime, vecScalarMul(zSq, twoPowers))
	target.Add(target, zSqHPrime)

	muH := curve.NewElement()
	muH.Mul(genH, p.Mu)
	target.Sub(target, muH)

	// Fold the target point through the same per-round (L,R) combination the
	// prover's folding implies, then compare against the final opening.
	folded := target.Copy()
	for i := 0; i < numRounds; i++ {
		xi := challenges[i]
		xiSq := curve.NewScalar()
		xiSq.Mul(xi, xi)
		xiInv := invertScalar(xi)
		xiInvSq := curve.NewScalar()
		xiInvSq.Mul(xiInv, xiInv)

		lTerm := curve.NewElement()
		lTerm.Mul(p.L[i], xiSq)
		rTerm := curve.NewElement()
		rTerm.Mul(p.R[i], xiInvSq)
		folded.Add(folded, lTerm)
		folded.Add(folded, rTerm)
	}

	tHatCheck := curve.NewScalar()
	tHatCheck.Mul(p.AFinal, p.BFinal)
	if !tHatCheck.IsEqual(p.THat) {
		return false
	}

	expected := curve.NewElement()
	expected.Mul(gFinal, p.AFinal)
	hTerm := curve.NewElement()
	hTerm.Mul(hFinal, p.BFinal)
	expected.Add(expected, hTerm)
	uTerm := curve.NewElement()
	uTerm.Mul(uPrime, p.THat)
	expected.Add(expected, uTerm)

	return folded.IsEqual(expected)
}

func mustScalarBytes(s group.Scalar) []byte {
	b, err := s.MarshalBinary()
	if err != nil {
		panic("rangeproof: scalar failed to marshal: " + err.Error())
	}
	return b
}

// MarshalBinary serializes the proof as ElementsSize sequential 32-byte
// elements: A, S, T1, T2, tHat, tauX, mu, then (L_i, R_i) per round, then
// aFinal, bFinal.
func (p *Proof) MarshalBinary() ([]byte, error) {
	if len(p.L) != numRounds || len(p.R) != numRounds {
		return nil, ErrInvalidEncoding
	}
	out := make([]byte, 0, ElementsSize*elementByteLen)
	appendElem := func(e group.Element) error {
		raw, err := e.MarshalBinary()
		if err != nil || len(raw) != elementByteLen {
			return ErrInvalidEncoding
		}
		out = append(out, raw...)
		return nil
	}
	appendScalar := func(s group.Scalar) error {
		raw, err := s.MarshalBinary()
		if err != nil || len(raw) != elementByteLen {
			return ErrInvalidEncoding
		}
		out = append(out, raw...)
		return nil
	}

	for _, e := range []group.Element{p.A, p.S, p.T1, p.T2} {
		if err := appendElem(e); err != nil {
			return nil, err
		}
	}
	for _, s := range []group.Scalar{p.THat, p.TauX, p.Mu} {
		if err := appendScalar(s); err != nil {
			return nil, err
		}
	}
	for i := 0; i < numRounds; i++ {
		if err := appendElem(p.L[i]); err != nil {
			return nil, err
		}
		if err := appendElem(p.R[i]); err != nil {
			return nil, err
		}
	}
	if err := appendScalar(p.AFinal); err != nil {
		return nil, err
	}
	if err := appendScalar(p.BFinal); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmarshalBinary parses a proof from ElementsSize*32 bytes.
func (p *Proof) UnmarshalBinary(b []byte) error {
	if len(b) != ElementsSize*elementByteLen {
		return ErrInvalidEncoding
	}
	offset := 0
	nextElem := func() (group.Element, error) {
		e := curve.NewElement()
		if err := e.UnmarshalBinary(b[offset : offset+elementByteLen]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		offset += elementByteLen
		return e, nil
	}
	nextScalar := func() (group.Scalar, error) {
		s := curve.NewScalar()
		if err := s.UnmarshalBinary(b[offset : offset+elementByteLen]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		offset += elementByteLen
		return s, nil
	}

	var err error
	if p.A, err = nextElem(); err != nil {
		return err
	}
	if p.S, err = nextElem(); err != nil {
		return err
	}
	if p.T1, err = nextElem(); err != nil {
		return err
	}
	if p.T2, err = nextElem(); err != nil {
		return err
	}
	if p.THat, err = nextScalar(); err != nil {
		return err
	}
	if p.TauX, err = nextScalar(); err != nil {
		return err
	}
	if p.Mu, err = nextScalar(); err != nil {
		return err
	}
	p.L = make([]group.Element, numRounds)
	p.R = make([]group.Element, numRounds)
	for i := 0; i < numRounds; i++ {
		if p.L[i], err = nextElem(); err != nil {
			return err
		}
		if p.R[i], err = nextElem(); err != nil {
			return err
		}
	}
	if p.AFinal, err = nextScalar(); err != nil {
		return err
	}
	if p.BFinal, err = nextScalar(); err != nil {
		return err
	}
	return nil
}
