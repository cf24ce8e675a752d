package storage

import (
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
)

// CreateWallet registers a brand-new wallet for pk, seeded with
// InitialBalance. txHash is the hash of the committing CreateWallet
// transaction, recorded as the wallet's first history event.
func (s Schema) CreateWallet(pk keys.PublicKey, txHash merkle.Hash) error {
	wallets := s.Wallets()
	if _, ok := wallets.Get(pk); ok {
		return ErrWalletExists
	}

	history := s.History(pk)
	history.Append(mustMarshal(Event{Tag: EventCreateWallet, TransactionHash: txHash}))

	balance := pedersen.FromOpening(pedersen.WithNoBlinding(InitialBalance))
	s.PastBalances(pk).Put(indexKey(0), mustMarshal(commitmentWrapper{balance}))

	w := Wallet{
		PublicKey:               pk,
		Balance:                 balance,
		HistoryLen:              1,
		LastSendIndex:           0,
		HistoryHash:             history.Root(),
		UnacceptedTransfersHash: merkle.Hash{},
	}
	wallets.Set(pk, mustMarshal(w))
	return nil
}

// UpdateSender debits amount from sender, appends a Transfer event to its
// history, and resets the past-balance cache to hold exactly the new
// current balance, per the §4.3 cache policy.
func (s Schema) UpdateSender(sender Wallet, amount pedersen.Commitment, txHash merkle.Hash) error {
	sender.Balance = sender.Balance.Sub(amount)

	history := s.History(sender.PublicKey)
	history.Append(mustMarshal(Event{Tag: EventTransfer, TransactionHash: txHash}))
	sender.HistoryLen = history.Len()
	sender.LastSendIndex = sender.HistoryLen - 1
	sender.HistoryHash = history.Root()

	pastBalances := s.PastBalances(sender.PublicKey)
	pastBalances.Clear()
	pastBalances.Put(indexKey(sender.LastSendIndex), mustMarshal(commitmentWrapper{sender.Balance}))

	s.Wallets().Set(sender.PublicKey, mustMarshal(sender))
	return nil
}

// AddUnacceptedPayment records transferHash as pending on the receiver's
// unaccepted set and schedules it for expiry at expiryHeight.
func (s Schema) AddUnacceptedPayment(receiver keys.PublicKey, transferHash merkle.Hash, expiryHeight uint64) error {
	w, ok := s.Wallet(receiver)
	if !ok {
		return ErrUnregisteredReceiver
	}

	unaccepted := s.UnacceptedTransfers(receiver)
	unaccepted.Set(transferHash, []byte{1})
	w.UnacceptedTransfersHash = unaccepted.Root()
	s.Wallets().Set(receiver, mustMarshal(w))

	s.RollbackSchedule(expiryHeight).Put(transferHash[:], []byte{1})
	return nil
}

// AcceptPayment credits amount to receiver, appends a Transfer event to its
// history, removes transferHash from the receiver's unaccepted set, and
// drops it from the rollback schedule at rollbackHeight.
func (s Schema) AcceptPayment(receiver keys.PublicKey, amount pedersen.Commitment, transferHash merkle.Hash, rollbackHeight uint64) error {
	w, ok := s.Wallet(receiver)
	if !ok {
		return ErrUnregisteredReceiver
	}

	unaccepted := s.UnacceptedTransfers(receiver)
	if _, ok := unaccepted.Get(transferHash); !ok {
		return ErrUnknownTransfer
	}

	w.Balance = w.Balance.Add(amount)
	history := s.History(receiver)
	history.Append(mustMarshal(Event{Tag: EventTransfer, TransactionHash: transferHash}))
	w.HistoryLen = history.Len()
	w.HistoryHash = history.Root()

	s.PastBalances(receiver).Put(indexKey(w.HistoryLen-1), mustMarshal(commitmentWrapper{w.Balance}))

	unaccepted.Delete(transferHash)
	w.UnacceptedTransfersHash = unaccepted.Root()
	s.Wallets().Set(receiver, mustMarshal(w))

	s.RollbackSchedule(rollbackHeight).Delete(transferHash[:])
	return nil
}

// RollbackSingle refunds amount to sender and removes transferHash from
// receiver's unaccepted set, as part of expiring one overdue transfer.
func (s Schema) RollbackSingle(sender keys.PublicKey, receiver keys.PublicKey, amount pedersen.Commitment, transferHash merkle.Hash) error {
	sw, ok := s.Wallet(sender)
	if !ok {
		return ErrUnregisteredReceiver
	}
	sw.Balance = sw.Balance.Add(amount)
	history := s.History(sender)
	history.Append(mustMarshal(Event{Tag: EventRollback, TransactionHash: transferHash}))
	sw.HistoryLen = history.Len()
	sw.HistoryHash = history.Root()
	s.PastBalances(sender).Put(indexKey(sw.HistoryLen-1), mustMarshal(commitmentWrapper{sw.Balance}))
	s.Wallets().Set(sender, mustMarshal(sw))

	rw, ok := s.Wallet(receiver)
	if ok {
		unaccepted := s.UnacceptedTransfers(receiver)
		unaccepted.Delete(transferHash)
		rw.UnacceptedTransfersHash = unaccepted.Root()
		s.Wallets().Set(receiver, mustMarshal(rw))
	}
	return nil
}

// PendingExpiry describes one transfer resolved from the rollback schedule,
// supplied by the caller (in the node, the consensus package's transfer
// store, which keeps committed Transfer transactions) since the schema
// itself does not retain transaction payloads.
type PendingExpiry struct {
	TransferHash merkle.Hash
	Sender       keys.PublicKey
	Receiver     keys.PublicKey
	Amount       pedersen.Commitment
}

// ExpireRollbacks rolls back every transfer resolve reports as scheduled for
// height, then clears the height's rollback bucket. It is the sole caller of
// RollbackSingle and is meant to run once per block from the before-commit
// hook.
func (s Schema) ExpireRollbacks(height uint64, resolve func(transferHash merkle.Hash) (PendingExpiry, bool)) error {
	bucket := s.RollbackSchedule(height)

	var hashes []merkle.Hash
	bucket.Each(func(member, _ []byte) bool {
		var h merkle.Hash
		copy(h[:], member)
		hashes = append(hashes, h)
		return true
	})

	for _, h := range hashes {
		expiry, ok := resolve(h)
		if !ok {
			continue
		}
		if err := s.RollbackSingle(expiry.Sender, expiry.Receiver, expiry.Amount, expiry.TransferHash); err != nil {
			return err
		}
	}

	bucket.Clear()
	return nil
}

// commitmentWrapper adapts pedersen.Commitment's fixed-size Bytes() to the
// MarshalBinary shape mustMarshal expects.
type commitmentWrapper struct {
	c pedersen.Commitment
}

func (w commitmentWrapper) MarshalBinary() ([]byte, error) {
	b, err := w.c.Bytes()
	if err != nil {
		return nil, err
	}
	return b[:], nil
}
