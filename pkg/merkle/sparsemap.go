package merkle

import (
	"github.com/certen/private-currency/pkg/kvstore"
)

// emptyHash[d] is the root hash of an empty subtree rooted at depth d, for
// d from 256 (a single absent leaf) down to 0 (an entirely empty map).
// These sentinels let Map prove both inclusion and absence without storing
// anything for keys that were never set.
var emptyHash [257]Hash

func init() {
	for d := 255; d >= 0; d-- {
		emptyHash[d] = hashPair(emptyHash[d+1], emptyHash[d+1])
	}
}

// Map is a sparse Merkle trie over the full 256-bit key space, persisted
// under a keyed prefix in a kvstore.Fork. Every key has a well-defined leaf
// hash: emptyHash[256] (the zero hash) when unset, HashLeaf(value) when set.
// This makes absence provable the same way presence is: by authentication
// path to the fixed root.
type Map struct {
	fork   kvstore.Fork
	prefix []byte
}

// NewMap opens the sparse map stored under prefix.
func NewMap(fork kvstore.Fork, prefix []byte) *Map {
	return &Map{fork: fork, prefix: append([]byte(nil), prefix...)}
}

func bitAt(key [32]byte, depth int) bool {
	return key[depth/8]&(0x80>>uint(depth%8)) != 0
}

func flipBit(key [32]byte, depth int) [32]byte {
	out := key
	out[depth/8] ^= 0x80 >> uint(depth%8)
	return out
}

// pathBytes returns the first depth bits of key, packed into
// ceil(depth/8) bytes with any trailing bits in the final byte cleared.
func pathBytes(key [32]byte, depth int) []byte {
	n := (depth + 7) / 8
	out := make([]byte, n)
	copy(out, key[:n])
	if depth%8 != 0 {
		mask := byte(0xff) << uint(8-depth%8)
		out[n-1] &= mask
	}
	return out
}

func (m *Map) nodeStoreKey(depth int, key [32]byte) []byte {
	k := append([]byte(nil), m.prefix...)
	k = append(k, 'n', byte(depth>>8), byte(depth))
	return append(k, pathBytes(key, depth)...)
}

func (m *Map) leafStoreKey(key [32]byte) []byte {
	k := append([]byte(nil), m.prefix...)
	k = append(k, 'l')
	return append(k, key[:]...)
}

// hashAt returns the hash of the subtree rooted at (depth, the first depth
// bits of key), falling back to the empty-subtree sentinel when nothing has
// been stored there.
func (m *Map) hashAt(depth int, key [32]byte) Hash {
	if depth == 256 {
		v, ok := m.fork.Get(m.leafStoreKey(key))
		if !ok {
			return emptyHash[256]
		}
		return HashLeaf(v)
	}
	if depth == 0 {
		v, ok := m.fork.Get(m.nodeStoreKey(0, key))
		if !ok {
			return emptyHash[0]
		}
		var h Hash
		copy(h[:], v)
		return h
	}
	v, ok := m.fork.Get(m.nodeStoreKey(depth, key))
	if !ok {
		return emptyHash[depth]
	}
	var h Hash
	copy(h[:], v)
	return h
}

// Root returns the current root hash of the whole map.
func (m *Map) Root() Hash {
	return m.hashAt(0, [32]byte{})
}

// Get returns the raw value stored at key, or ok=false if unset.
func (m *Map) Get(key [32]byte) ([]byte, bool) {
	return m.fork.Get(m.leafStoreKey(key))
}

// Set stores value at key and recomputes every ancestor hash up to the root.
func (m *Map) Set(key [32]byte, value []byte) {
	m.fork.Put(m.leafStoreKey(key), value)
	m.recompute(key)
}

// Delete clears key (its leaf folds back to the empty sentinel) and
// recomputes every ancestor hash up to the root.
func (m *Map) Delete(key [32]byte) {
	m.fork.Delete(m.leafStoreKey(key))
	m.recompute(key)
}

func (m *Map) recompute(key [32]byte) {
	cur := m.hashAt(256, key)
	for d := 255; d >= 0; d-- {
		sibling := m.hashAt(d+1, flipBit(key, d))
		var combined Hash
		if bitAt(key, d) {
			combined = hashPair(sibling, cur)
		} else {
			combined = hashPair(cur, sibling)
		}
		m.fork.Put(m.nodeStoreKey(d, key), combined[:])
		cur = combined
	}
}

// Proof is an authentication path for a single key, valid for proving
// either inclusion (Leaf == HashLeaf(value)) or absence (Leaf ==
// emptyHash[256]) against a Map's Root.
type Proof struct {
	Key  [32]byte
	Leaf Hash
	Path []Step
}

// ProveKey builds a Proof for key against the map's current contents.
func (m *Map) ProveKey(key [32]byte) Proof {
	p := Proof{Key: key, Leaf: m.hashAt(256, key)}
	for d := 255; d >= 0; d-- {
		sibling := m.hashAt(d+1, flipBit(key, d))
		p.Path = append(p.Path, Step{Sibling: sibling, Right: !bitAt(key, d)})
	}
	return p
}

// VerifyInclusion checks that proof attests value is stored at proof.Key
// under root.
func VerifyInclusion(proof Proof, value []byte, root Hash) bool {
	if proof.Leaf != HashLeaf(value) {
		return false
	}
	return VerifyPath(proof.Leaf, proof.Path, root)
}

// VerifyAbsence checks that proof attests no value is stored at proof.Key
// under root.
func VerifyAbsence(proof Proof, root Hash) bool {
	if proof.Leaf != emptyHash[256] {
		return false
	}
	return VerifyPath(proof.Leaf, proof.Path, root)
}

// Each calls fn for every key currently set in the map, in the underlying
// store's iteration order. Used by read-only sweeps (invariant checking,
// wallet enumeration) that need every entry rather than a single lookup.
func (m *Map) Each(fn func(key [32]byte, value []byte) bool) {
	leafPrefix := append(append([]byte(nil), m.prefix...), 'l')
	m.fork.Iterate(leafPrefix, func(k, v []byte) bool {
		var key [32]byte
		copy(key[:], k[len(leafPrefix):])
		return fn(key, v)
	})
}
