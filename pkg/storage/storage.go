// Package storage implements the Merkelized schema: the wallet map,
// per-wallet history list, per-wallet unaccepted-transfer set, the
// rollback-by-height schedule, and the past-balance cache, plus the
// mutating transitions the transaction layer drives them through.
package storage

import (
	"encoding/binary"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
)

// InitialBalance is the commitment value every new wallet is seeded with.
const InitialBalance uint64 = 1_000_000

// EventTag discriminates the kind of state transition a history Event
// records.
type EventTag uint8

const (
	EventCreateWallet EventTag = 0
	EventTransfer     EventTag = 1
	EventRollback     EventTag = 2
)

// Wallet is the storage form of a wallet: its public key, current balance
// commitment, and the roots of its per-wallet indexes.
type Wallet struct {
	PublicKey               keys.PublicKey
	Balance                 pedersen.Commitment
	HistoryLen              uint64
	LastSendIndex           uint64
	HistoryHash             merkle.Hash
	UnacceptedTransfersHash merkle.Hash
}

// MarshalBinary encodes a Wallet for storage in the wallets map.
func (w Wallet) MarshalBinary() ([]byte, error) {
	balanceBytes, err := w.Balance.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 32+32+8+8+32+32)
	out = append(out, w.PublicKey[:]...)
	out = append(out, balanceBytes[:]...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w.HistoryLen)
	out = append(out, buf[:]...)
	binary.BigEndian.PutUint64(buf[:], w.LastSendIndex)
	out = append(out, buf[:]...)
	out = append(out, w.HistoryHash[:]...)
	out = append(out, w.UnacceptedTransfersHash[:]...)
	return out, nil
}

// UnmarshalBinary decodes a Wallet previously written by MarshalBinary.
func (w *Wallet) UnmarshalBinary(b []byte) error {
	const want = 32 + 32 + 8 + 8 + 32 + 32
	if len(b) != want {
		return ErrCorruptWallet
	}
	copy(w.PublicKey[:], b[0:32])
	commitment, err := pedersen.CommitmentFromBytes(b[32:64])
	if err != nil {
		return err
	}
	w.Balance = commitment
	w.HistoryLen = binary.BigEndian.Uint64(b[64:72])
	w.LastSendIndex = binary.BigEndian.Uint64(b[72:80])
	copy(w.HistoryHash[:], b[80:112])
	copy(w.UnacceptedTransfersHash[:], b[112:144])
	return nil
}

// Event is a single per-wallet history record.
type Event struct {
	Tag             EventTag
	TransactionHash merkle.Hash
}

// MarshalBinary encodes an Event as tag || hash (33 bytes).
func (e Event) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 33)
	out = append(out, byte(e.Tag))
	out = append(out, e.TransactionHash[:]...)
	return out, nil
}

// UnmarshalBinary decodes an Event previously written by MarshalBinary.
func (e *Event) UnmarshalBinary(b []byte) error {
	if len(b) != 33 {
		return ErrCorruptEvent
	}
	e.Tag = EventTag(b[0])
	copy(e.TransactionHash[:], b[1:])
	return nil
}

func mustMarshal(v interface{ MarshalBinary() ([]byte, error) }) []byte {
	b, err := v.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// Schema wraps a kvstore view with the indexes the private-currency service
// maintains. A read-only Schema is built over a Snapshot; mutations require
// a Fork and are only ever driven by transaction execution or the
// before-commit rollback hook.
type Schema struct {
	view kvstore.Snapshot
}

// New returns a Schema backed by view. Pass a kvstore.Fork to obtain a
// schema that also supports the mutating methods.
func New(view kvstore.Snapshot) Schema {
	return Schema{view: view}
}

func (s Schema) fork() kvstore.Fork {
	f, ok := s.view.(kvstore.Fork)
	if !ok {
		panic("storage: mutation requested against a read-only snapshot")
	}
	return f
}

// Wallets returns the sparse Merkle map backing the wallet table.
func (s Schema) Wallets() *merkle.Map {
	return merkle.NewMap(s.fork(), []byte("w:"))
}

func (s Schema) walletsRO() *merkle.Map {
	f, ok := s.view.(kvstore.Fork)
	if ok {
		return merkle.NewMap(f, []byte("w:"))
	}
	return merkle.NewMap(readOnlyFork{s.view}, []byte("w:"))
}

// Wallet returns the wallet stored at pk, if any.
func (s Schema) Wallet(pk keys.PublicKey) (Wallet, bool) {
	raw, ok := s.walletsRO().Get(pk)
	if !ok {
		return Wallet{}, false
	}
	var w Wallet
	if err := w.UnmarshalBinary(raw); err != nil {
		return Wallet{}, false
	}
	return w, true
}

// WalletsSnapshot calls fn once for every wallet currently registered, in
// the underlying store's iteration order. Used by read-only sweeps
// (invariant checking, wallet listing) that need every wallet rather than a
// single lookup by key.
func (s Schema) WalletsSnapshot(fn func(Wallet)) {
	s.walletsRO().Each(func(_ [32]byte, raw []byte) bool {
		var w Wallet
		if err := w.UnmarshalBinary(raw); err == nil {
			fn(w)
		}
		return true
	})
}

// History returns the per-wallet Merkle history list.
func (s Schema) History(pk keys.PublicKey) *merkle.List {
	return merkle.NewList(s.forkOrReadOnly(), historyPrefix(pk))
}

// UnacceptedTransfers returns the per-wallet sparse Merkle set of unaccepted
// transfer hashes.
func (s Schema) UnacceptedTransfers(pk keys.PublicKey) *merkle.Map {
	return merkle.NewMap(s.forkOrReadOnly(), unacceptedPrefix(pk))
}

// PastBalances returns the per-wallet plain KV cache of historical balance
// commitments, keyed by history index.
func (s Schema) PastBalances(pk keys.PublicKey) *merkle.Set {
	return merkle.NewSet(s.forkOrReadOnly(), pastBalancePrefix(pk))
}

// RollbackSchedule returns the plain KV set of transfer hashes scheduled to
// expire at height.
func (s Schema) RollbackSchedule(height uint64) *merkle.Set {
	return merkle.NewSet(s.forkOrReadOnly(), rollbackPrefix(height))
}

func (s Schema) forkOrReadOnly() kvstore.Fork {
	if f, ok := s.view.(kvstore.Fork); ok {
		return f
	}
	return readOnlyFork{s.view}
}

func historyPrefix(pk keys.PublicKey) []byte {
	return append([]byte("h:"), pk[:]...)
}

func unacceptedPrefix(pk keys.PublicKey) []byte {
	return append([]byte("u:"), pk[:]...)
}

func pastBalancePrefix(pk keys.PublicKey) []byte {
	return append([]byte("pb:"), pk[:]...)
}

func rollbackPrefix(height uint64) []byte {
	k := []byte("rb:")
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return append(k, buf[:]...)
}

func indexKey(index uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return buf[:]
}

// readOnlyFork adapts a Snapshot to the Fork interface for code paths that
// only ever read through it; Put/Delete panic if ever invoked, signalling a
// programming error rather than silently discarding a write.
type readOnlyFork struct {
	kvstore.Snapshot
}

func (readOnlyFork) Put(key, value []byte) {
	panic("storage: write attempted against a read-only view")
}

func (readOnlyFork) Delete(key []byte) {
	panic("storage: delete attempted against a read-only view")
}
