package storage

import (
	"testing"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/stretchr/testify/require"
)

func newTestSchema() Schema {
	return New(kvstore.NewMemory())
}

func testPK(b byte) keys.PublicKey {
	var pk keys.PublicKey
	pk[0] = b
	pk[31] = b
	return pk
}

func testHash(b byte) merkle.Hash {
	var h merkle.Hash
	h[0] = b
	return h
}

func TestCreateWalletSeedsInitialBalance(t *testing.T) {
	s := newTestSchema()
	pk := testPK(1)

	require.NoError(t, s.CreateWallet(pk, testHash(0xA)))

	w, ok := s.Wallet(pk)
	require.True(t, ok)
	require.Equal(t, uint64(1), w.HistoryLen)
	require.Equal(t, uint64(0), w.LastSendIndex)
	require.True(t, w.Balance.Verify(pedersen.WithNoBlinding(InitialBalance)))

	raw, ok := s.PastBalances(pk).Get(indexKey(0))
	require.True(t, ok)
	stored, err := pedersen.CommitmentFromBytes(raw)
	require.NoError(t, err)
	require.True(t, stored.IsEqual(w.Balance))
}

func TestCreateWalletRejectsDuplicate(t *testing.T) {
	s := newTestSchema()
	pk := testPK(2)
	require.NoError(t, s.CreateWallet(pk, testHash(1)))
	require.ErrorIs(t, s.CreateWallet(pk, testHash(2)), ErrWalletExists)
}

func TestUpdateSenderResetsPastBalanceWindow(t *testing.T) {
	s := newTestSchema()
	pk := testPK(3)
	require.NoError(t, s.CreateWallet(pk, testHash(1)))
	w, _ := s.Wallet(pk)

	_, amountOpening := pedersen.New(100)
	amount := pedersen.FromOpening(amountOpening)

	require.NoError(t, s.UpdateSender(w, amount, testHash(2)))

	updated, ok := s.Wallet(pk)
	require.True(t, ok)
	require.Equal(t, uint64(2), updated.HistoryLen)
	require.Equal(t, uint64(1), updated.LastSendIndex)

	_, ok = s.PastBalances(pk).Get(indexKey(0))
	require.False(t, ok, "earlier entries must be purged on send")

	raw, ok := s.PastBalances(pk).Get(indexKey(1))
	require.True(t, ok)
	stored, err := pedersen.CommitmentFromBytes(raw)
	require.NoError(t, err)
	require.True(t, stored.IsEqual(updated.Balance))
}

func TestAcceptPaymentFullRoundTrip(t *testing.T) {
	s := newTestSchema()
	sender := testPK(4)
	receiver := testPK(5)
	require.NoError(t, s.CreateWallet(sender, testHash(1)))
	require.NoError(t, s.CreateWallet(receiver, testHash(2)))

	senderWallet, _ := s.Wallet(sender)
	_, amountOpening := pedersen.New(50)
	amount := pedersen.FromOpening(amountOpening)

	transferHash := testHash(3)
	require.NoError(t, s.UpdateSender(senderWallet, amount, transferHash))
	require.NoError(t, s.AddUnacceptedPayment(receiver, transferHash, 10))

	rw, _ := s.Wallet(receiver)
	_, pending := s.UnacceptedTransfers(receiver).Get(transferHash)
	require.True(t, pending)
	_ = rw

	require.NoError(t, s.AcceptPayment(receiver, amount, transferHash, 10))

	updatedReceiver, _ := s.Wallet(receiver)
	expected, err := pedersen.WithNoBlinding(InitialBalance).Add(amountOpening)
	require.NoError(t, err)
	require.Equal(t, InitialBalance+50, expected.Value)
	require.True(t, updatedReceiver.Balance.Verify(expected))
	_, stillPending := s.UnacceptedTransfers(receiver).Get(transferHash)
	require.False(t, stillPending)
	_, scheduled := s.RollbackSchedule(10).Get(transferHash[:])
	require.False(t, scheduled)
}

func TestAcceptPaymentRejectsUnknownTransfer(t *testing.T) {
	s := newTestSchema()
	receiver := testPK(6)
	require.NoError(t, s.CreateWallet(receiver, testHash(1)))
	_, amountOpening := pedersen.New(1)
	amount := pedersen.FromOpening(amountOpening)
	err := s.AcceptPayment(receiver, amount, testHash(9), 5)
	require.ErrorIs(t, err, ErrUnknownTransfer)
}

func TestExpireRollbacksRefundsAndClearsBucket(t *testing.T) {
	s := newTestSchema()
	sender := testPK(7)
	receiver := testPK(8)
	require.NoError(t, s.CreateWallet(sender, testHash(1)))
	require.NoError(t, s.CreateWallet(receiver, testHash(2)))

	senderWallet, _ := s.Wallet(sender)
	_, amountOpening := pedersen.New(20)
	amount := pedersen.FromOpening(amountOpening)
	transferHash := testHash(3)
	require.NoError(t, s.UpdateSender(senderWallet, amount, transferHash))
	require.NoError(t, s.AddUnacceptedPayment(receiver, transferHash, 100))

	resolve := func(h merkle.Hash) (PendingExpiry, bool) {
		if h != transferHash {
			return PendingExpiry{}, false
		}
		return PendingExpiry{TransferHash: h, Sender: sender, Receiver: receiver, Amount: amount}, true
	}
	require.NoError(t, s.ExpireRollbacks(100, resolve))

	refunded, _ := s.Wallet(sender)
	require.True(t, refunded.Balance.Verify(pedersen.WithNoBlinding(InitialBalance)))

	_, stillScheduled := s.RollbackSchedule(100).Get(transferHash[:])
	require.False(t, stillScheduled)
	_, stillPending := s.UnacceptedTransfers(receiver).Get(transferHash)
	require.False(t, stillPending)
}
