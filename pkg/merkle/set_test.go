package merkle

import (
	"testing"

	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/stretchr/testify/require"
)

func TestSetPutGetDelete(t *testing.T) {
	s := NewSet(kvstore.NewMemory(), []byte("past_balances:pk1:"))
	_, ok := s.Get([]byte("h100"))
	require.False(t, ok)

	s.Put([]byte("h100"), []byte("balance-snapshot"))
	v, ok := s.Get([]byte("h100"))
	require.True(t, ok)
	require.Equal(t, []byte("balance-snapshot"), v)

	s.Delete([]byte("h100"))
	_, ok = s.Get([]byte("h100"))
	require.False(t, ok)
}

func TestSetEachIteratesMembers(t *testing.T) {
	fork := kvstore.NewMemory()
	s := NewSet(fork, []byte("rollback_by_height:100:"))
	s.Put([]byte("txa"), []byte{1})
	s.Put([]byte("txb"), []byte{2})

	seen := map[string][]byte{}
	s.Each(func(member, value []byte) bool {
		cp := append([]byte(nil), value...)
		seen[string(member)] = cp
		return true
	})
	require.Len(t, seen, 2)
	require.Equal(t, []byte{1}, seen["txa"])
	require.Equal(t, []byte{2}, seen["txb"])
}

func TestSetClearRemovesOnlyItsPrefix(t *testing.T) {
	fork := kvstore.NewMemory()
	s := NewSet(fork, []byte("rollback_by_height:100:"))
	other := NewSet(fork, []byte("rollback_by_height:200:"))
	s.Put([]byte("txa"), []byte{1})
	other.Put([]byte("txc"), []byte{3})

	s.Clear()
	_, ok := s.Get([]byte("txa"))
	require.False(t, ok)

	v, ok := other.Get([]byte("txc"))
	require.True(t, ok)
	require.Equal(t, []byte{3}, v)
}
