package merkle

import "github.com/certen/private-currency/pkg/kvstore"

// Set is a plain, non-Merkelized key/value index scoped to a prefix. It
// backs internal bookkeeping structures that are never exposed through a
// client-verified proof, such as the past-balance cache and the
// rollback-by-height schedule.
type Set struct {
	fork   kvstore.Fork
	prefix []byte
}

// NewSet opens the set stored under prefix.
func NewSet(fork kvstore.Fork, prefix []byte) *Set {
	return &Set{fork: fork, prefix: append([]byte(nil), prefix...)}
}

func (s *Set) key(member []byte) []byte {
	return append(append([]byte(nil), s.prefix...), member...)
}

// Put stores value under member.
func (s *Set) Put(member, value []byte) {
	s.fork.Put(s.key(member), value)
}

// Get returns the value stored under member, or ok=false if unset.
func (s *Set) Get(member []byte) ([]byte, bool) {
	return s.fork.Get(s.key(member))
}

// Delete removes member.
func (s *Set) Delete(member []byte) {
	s.fork.Delete(s.key(member))
}

// Clear removes every member currently stored.
func (s *Set) Clear() {
	var keys [][]byte
	s.fork.Iterate(s.prefix, func(k, _ []byte) bool {
		cp := append([]byte(nil), k...)
		keys = append(keys, cp)
		return true
	})
	for _, k := range keys {
		s.fork.Delete(k)
	}
}

// Each calls fn for every (member, value) pair currently stored, in
// ascending key order.
func (s *Set) Each(fn func(member, value []byte) bool) {
	plen := len(s.prefix)
	s.fork.Iterate(s.prefix, func(k, v []byte) bool {
		return fn(k[plen:], v)
	})
}
