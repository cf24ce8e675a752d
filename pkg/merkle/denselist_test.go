package merkle

import (
	"testing"

	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/stretchr/testify/require"
)

func TestListAppendAndGet(t *testing.T) {
	l := NewList(kvstore.NewMemory(), []byte("history:pk1:"))
	require.Equal(t, uint64(0), l.Len())

	idx := l.Append([]byte("event-0"))
	require.Equal(t, uint64(0), idx)
	idx = l.Append([]byte("event-1"))
	require.Equal(t, uint64(1), idx)
	require.Equal(t, uint64(2), l.Len())

	v, ok := l.Get(0)
	require.True(t, ok)
	require.Equal(t, []byte("event-0"), v)
}

func TestListRootMatchesStandaloneCompute(t *testing.T) {
	l := NewList(kvstore.NewMemory(), []byte("history:pk1:"))
	var leaves []Hash
	for i := 0; i < 5; i++ {
		data := []byte{byte(i)}
		l.Append(data)
		leaves = append(leaves, HashLeaf(data))
	}
	require.Equal(t, ComputeRoot(leaves), l.Root())
}

func TestListRangeProofVerifies(t *testing.T) {
	l := NewList(kvstore.NewMemory(), []byte("history:pk1:"))
	for i := 0; i < 7; i++ {
		l.Append([]byte{byte(i)})
	}

	root := l.Root()
	rp, err := l.RangeProof(2, 5)
	require.NoError(t, err)
	require.Len(t, rp.Leaves, 3)
	require.True(t, VerifyRangeProof(rp, root))
}

func TestListRangeProofOutOfRangeFails(t *testing.T) {
	l := NewList(kvstore.NewMemory(), []byte("history:pk1:"))
	l.Append([]byte{1})
	_, err := l.RangeProof(0, 5)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestComputeRootEmptyIsZero(t *testing.T) {
	require.Equal(t, Hash{}, ComputeRoot(nil))
}

func TestComputeRootOddLeavesDuplicatesLast(t *testing.T) {
	leaves := []Hash{HashLeaf([]byte("a")), HashLeaf([]byte("b")), HashLeaf([]byte("c"))}
	got := ComputeRoot(leaves)
	want := hashPair(hashPair(leaves[0], leaves[1]), hashPair(leaves[2], leaves[2]))
	require.Equal(t, want, got)
}
