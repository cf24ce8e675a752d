package merkle

import (
	"encoding/binary"
	"errors"

	"github.com/certen/private-currency/pkg/kvstore"
)

// ErrIndexOutOfRange is returned when a proof is requested for an index
// beyond the current leaf count.
var ErrIndexOutOfRange = errors.New("merkle: index out of range")

// ComputeRoot folds leaves pairwise, duplicating the trailing leaf when the
// level has an odd count, until a single root remains. The empty list's root
// is the zero hash.
func ComputeRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := append([]Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// GenerateProof builds the authentication path from leaves[index] to the
// root implied by leaves.
func GenerateProof(leaves []Hash, index int) ([]Step, error) {
	if index < 0 || index >= len(leaves) {
		return nil, ErrIndexOutOfRange
	}
	var path []Step
	level := append([]Hash(nil), leaves...)
	idx := index
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var left, right Hash
			left = level[i]
			if i+1 < len(level) {
				right = level[i+1]
			} else {
				right = level[i]
			}
			if i == idx || i+1 == idx {
				if idx == i {
					path = append(path, Step{Sibling: right, Right: true})
				} else {
					path = append(path, Step{Sibling: left, Right: false})
				}
			}
			next = append(next, hashPair(left, right))
		}
		idx /= 2
		level = next
	}
	return path, nil
}

// RangeProof bundles the concrete leaf hashes and per-leaf authentication
// paths for a contiguous index range [start, start+len(Leaves)).
type RangeProof struct {
	Start  uint64
	Leaves []Hash
	Paths  [][]Step
}

// BuildRangeProof produces a RangeProof for indices [start, end) against the
// tree implied by the full leaves slice.
func BuildRangeProof(leaves []Hash, start, end uint64) (RangeProof, error) {
	if end > uint64(len(leaves)) || start > end {
		return RangeProof{}, ErrIndexOutOfRange
	}
	rp := RangeProof{Start: start}
	for i := start; i < end; i++ {
		path, err := GenerateProof(leaves, int(i))
		if err != nil {
			return RangeProof{}, err
		}
		rp.Leaves = append(rp.Leaves, leaves[i])
		rp.Paths = append(rp.Paths, path)
	}
	return rp, nil
}

// VerifyRangeProof checks every revealed leaf against root independently.
func VerifyRangeProof(rp RangeProof, root Hash) bool {
	if len(rp.Leaves) != len(rp.Paths) {
		return false
	}
	for i, leaf := range rp.Leaves {
		if !VerifyPath(leaf, rp.Paths[i], root) {
			return false
		}
	}
	return true
}

// List is an append-only Merkle list persisted under a keyed prefix in a
// kvstore.Fork, used for per-wallet transaction history.
type List struct {
	fork   kvstore.Fork
	prefix []byte
}

// NewList opens the list stored under prefix.
func NewList(fork kvstore.Fork, prefix []byte) *List {
	return &List{fork: fork, prefix: append([]byte(nil), prefix...)}
}

func (l *List) lenKey() []byte {
	return append(append([]byte(nil), l.prefix...), []byte(":len")...)
}

func (l *List) itemKey(index uint64) []byte {
	k := append([]byte(nil), l.prefix...)
	k = append(k, ':', 'i')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return append(k, buf[:]...)
}

// Len returns the number of appended entries.
func (l *List) Len() uint64 {
	v, ok := l.fork.Get(l.lenKey())
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// Append stores data as the next leaf and returns its index.
func (l *List) Append(data []byte) uint64 {
	idx := l.Len()
	l.fork.Put(l.itemKey(idx), data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], idx+1)
	l.fork.Put(l.lenKey(), buf[:])
	return idx
}

// Get returns the raw leaf content at index.
func (l *List) Get(index uint64) ([]byte, bool) {
	return l.fork.Get(l.itemKey(index))
}

func (l *List) leaves() []Hash {
	n := l.Len()
	out := make([]Hash, n)
	for i := uint64(0); i < n; i++ {
		v, _ := l.fork.Get(l.itemKey(i))
		out[i] = HashLeaf(v)
	}
	return out
}

// Root returns the current Merkle root over all appended leaves.
func (l *List) Root() Hash {
	return ComputeRoot(l.leaves())
}

// RangeProof builds a RangeProof over [start, end) against the list's
// current leaves.
func (l *List) RangeProof(start, end uint64) (RangeProof, error) {
	return BuildRangeProof(l.leaves(), start, end)
}
