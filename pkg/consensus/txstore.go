package consensus

import (
	"sync"

	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/certen/private-currency/pkg/txn"
)

// TransferStore indexes committed Transfer transactions by hash so Accept
// transactions can resolve the transfer they reference, and so the
// before-commit rollback-expiry hook can resolve a scheduled hash back to
// its sender, receiver, and amount. It implements txn.TransferLookup.
type TransferStore struct {
	mu        sync.RWMutex
	transfers map[merkle.Hash]*txn.Transfer
}

// NewTransferStore creates an empty store.
func NewTransferStore() *TransferStore {
	return &TransferStore{transfers: make(map[merkle.Hash]*txn.Transfer)}
}

// GetTransfer implements txn.TransferLookup.
func (s *TransferStore) GetTransfer(hash merkle.Hash) (*txn.Transfer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[hash]
	return t, ok
}

// Put records a transfer that has just committed at height, so later
// Accept/rollback-expiry lookups can resolve it by hash.
func (s *TransferStore) Put(height uint64, t *txn.Transfer) {
	t.SetCommittedHeight(height)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.Hash()] = t
}

// Forget drops a transfer once it can no longer be referenced: after
// acceptance or after its automatic rollback has run.
func (s *TransferStore) Forget(hash merkle.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transfers, hash)
}

// Resolve implements the resolve callback storage.Schema.ExpireRollbacks
// expects: given a hash pulled from a height's rollback bucket, it looks up
// the committed Transfer and reports what RollbackSingle needs.
func (s *TransferStore) Resolve(hash merkle.Hash) (storage.PendingExpiry, bool) {
	t, ok := s.GetTransfer(hash)
	if !ok {
		return storage.PendingExpiry{}, false
	}
	return storage.PendingExpiry{
		TransferHash: hash,
		Sender:       t.From,
		Receiver:     t.To,
		Amount:       t.Amount,
	}, true
}

var _ txn.TransferLookup = (*TransferStore)(nil)
