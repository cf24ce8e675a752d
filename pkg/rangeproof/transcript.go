package rangeproof

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/cloudflare/circl/group"
)

// transcript accumulates proof elements and derives Fiat-Shamir challenges
// from them, using the fixed domainSeparator as the root label. Each derived
// challenge folds back into the running state so later challenges depend on
// earlier ones.
type transcript struct {
	state [32]byte
}

func newTranscript() *transcript {
	return &transcript{state: sha256.Sum256([]byte(domainSeparator))}
}

func (t *transcript) appendBytes(label string, b []byte) {
	h := sha256.New()
	h.Write(t.state[:])
	h.Write([]byte(label))
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
	copy(t.state[:], h.Sum(nil))
}

func (t *transcript) appendElement(label string, e group.Element) error {
	raw, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	t.appendBytes(label, raw)
	return nil
}

func (t *transcript) appendUint64(label string, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	t.appendBytes(label, b[:])
}

// challengeScalar derives the next non-zero scalar from the transcript state
// and advances the state so subsequent challenges differ.
func (t *transcript) challengeScalar(label string) group.Scalar {
	h := sha256.New()
	h.Write(t.state[:])
	h.Write([]byte(label))
	digest := h.Sum(nil)
	copy(t.state[:], digest)
	return curve.HashToScalar(digest, []byte(domainSeparator+"/challenge/"+label))
}
