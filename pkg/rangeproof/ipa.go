package rangeproof

import "github.com/cloudflare/circl/group"

// ipaProve recursively folds the committed vectors a, b (with a ∘ b the
// witness for the public inner product) in half each round, emitting one
// (L,R) pair per round, until a single scalar pair remains.
func ipaProve(t *transcript, g, h []group.Element, u group.Element, a, b []group.Scalar) (ls, rs []group.Element, aFinal, bFinal group.Scalar) {
	for len(a) > 1 {
		n := len(a) / 2
		aL, aR := a[:n], a[n:]
		bL, bR := b[:n], b[n:]
		gL, gR := g[:n], g[n:]
		hL, hR := h[:n], h[n:]

		cL := innerProduct(aL, bR)
		cR := innerProduct(aR, bL)

		lPoint := multiScalarMul(concatElements(gR, hL), concatScalars(aL, bR))
		lTerm := curve.NewElement()
		lTerm.Mul(u, cL)
		lPoint.Add(lPoint, lTerm)

		rPoint := multiScalarMul(concatElements(gL, hR), concatScalars(aR, bL))
		rTerm := curve.NewElement()
		rTerm.Mul(u, cR)
		rPoint.Add(rPoint, rTerm)

		t.appendElement("ipa/L", lPoint)
		t.appendElement("ipa/R", rPoint)
		x := t.challengeScalar("ipa/x")
		xInv := invertScalar(x)

		a = foldScalars(aL, aR, x, xInv)
		b = foldScalars(bL, bR, xInv, x)
		g = foldElements(gL, gR, xInv, x)
		h = foldElements(hL, hR, x, xInv)

		ls = append(ls, lPoint)
		rs = append(rs, rPoint)
	}
	return ls, rs, a[0], b[0]
}

// ipaFoldGenerators recomputes the folded single generator pair a verifier
// needs, given only the per-round challenges (it never sees a, b).
func ipaFoldGenerators(g, h []group.Element, challenges []group.Scalar) (group.Element, group.Element) {
	for _, x := range challenges {
		n := len(g) / 2
		xInv := invertScalar(x)
		g = foldElements(g[:n], g[n:], xInv, x)
		h = foldElements(h[:n], h[n:], x, xInv)
	}
	return g[0], h[0]
}

func foldScalars(left, right []group.Scalar, leftCoeff, rightCoeff group.Scalar) []group.Scalar {
	out := make([]group.Scalar, len(left))
	for i := range left {
		lt := curve.NewScalar()
		lt.Mul(left[i], leftCoeff)
		rt := curve.NewScalar()
		rt.Mul(right[i], rightCoeff)
		out[i] = curve.NewScalar()
		out[i].Add(lt, rt)
	}
	return out
}

func foldElements(left, right []group.Element, leftCoeff, rightCoeff group.Scalar) []group.Element {
	out := make([]group.Element, len(left))
	for i := range left {
		lt := curve.NewElement()
		lt.Mul(left[i], leftCoeff)
		rt := curve.NewElement()
		rt.Mul(right[i], rightCoeff)
		out[i] = curve.NewElement()
		out[i].Add(lt, rt)
	}
	return out
}

func concatElements(a, b []group.Element) []group.Element {
	out := make([]group.Element, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatScalars(a, b []group.Scalar) []group.Scalar {
	out := make([]group.Scalar, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
