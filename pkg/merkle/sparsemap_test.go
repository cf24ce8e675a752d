package merkle

import (
	"testing"

	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	k[31] = b
	return k
}

func TestMapSetAndGet(t *testing.T) {
	m := NewMap(kvstore.NewMemory(), []byte("wallets:"))
	k := testKey(1)
	_, ok := m.Get(k)
	require.False(t, ok)

	m.Set(k, []byte("hello"))
	v, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)
}

func TestMapInclusionProof(t *testing.T) {
	fork := kvstore.NewMemory()
	m := NewMap(fork, []byte("wallets:"))

	keys := [][32]byte{testKey(1), testKey(2), testKey(3)}
	for i, k := range keys {
		m.Set(k, []byte{byte(i)})
	}

	root := m.Root()
	for i, k := range keys {
		proof := m.ProveKey(k)
		require.True(t, VerifyInclusion(proof, []byte{byte(i)}, root))
		require.False(t, VerifyInclusion(proof, []byte{byte(i + 1)}, root))
	}
}

func TestMapAbsenceProof(t *testing.T) {
	fork := kvstore.NewMemory()
	m := NewMap(fork, []byte("wallets:"))
	m.Set(testKey(1), []byte("present"))

	root := m.Root()
	proof := m.ProveKey(testKey(9))
	require.True(t, VerifyAbsence(proof, root))
	require.False(t, VerifyInclusion(proof, []byte("present"), root))
}

func TestMapDeleteRestoresAbsence(t *testing.T) {
	fork := kvstore.NewMemory()
	m := NewMap(fork, []byte("wallets:"))
	k := testKey(5)
	m.Set(k, []byte("v"))
	root1 := m.Root()
	require.NotEqual(t, emptyHash[0], root1)

	m.Delete(k)
	root2 := m.Root()
	require.Equal(t, emptyHash[0], root2)

	proof := m.ProveKey(k)
	require.True(t, VerifyAbsence(proof, root2))
}

func TestMapUpdateChangesRoot(t *testing.T) {
	fork := kvstore.NewMemory()
	m := NewMap(fork, []byte("wallets:"))
	k := testKey(7)

	m.Set(k, []byte("v1"))
	root1 := m.Root()
	m.Set(k, []byte("v2"))
	root2 := m.Root()
	require.NotEqual(t, root1, root2)

	proof := m.ProveKey(k)
	require.True(t, VerifyInclusion(proof, []byte("v2"), root2))
}
