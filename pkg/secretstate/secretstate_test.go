package secretstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTransferAndVerifyRoundTrip(t *testing.T) {
	sender, err := New()
	require.NoError(t, err)
	sender.Initialize(1_000_000)

	receiver, err := New()
	require.NoError(t, err)
	receiver.Initialize(1_000_000)

	transfer, err := sender.CreateTransfer(42, receiver.PublicKey(), 10)
	require.NoError(t, err)
	require.NoError(t, transfer.Verify())

	verified, ok := receiver.VerifyTransfer(transfer)
	require.True(t, ok)
	require.Equal(t, uint64(42), verified.Value())
	require.NoError(t, verified.Accept.Verify())

	require.NoError(t, sender.Transfer(transfer))
	require.Equal(t, uint64(1_000_000-42), sender.Balance())
}

func TestCreateTransferRejectsAmountBelowMinimum(t *testing.T) {
	sender, err := New()
	require.NoError(t, err)
	sender.Initialize(100)
	receiver, err := New()
	require.NoError(t, err)

	_, err = sender.CreateTransfer(0, receiver.PublicKey(), 10)
	require.ErrorIs(t, err, ErrAmountTooSmall)
}

func TestCreateTransferRejectsSelfTransfer(t *testing.T) {
	sender, err := New()
	require.NoError(t, err)
	sender.Initialize(100)

	_, err = sender.CreateTransfer(10, sender.PublicKey(), 10)
	require.ErrorIs(t, err, ErrSelfTransfer)
}

func TestCreateTransferRejectsInsufficientBalance(t *testing.T) {
	sender, err := New()
	require.NoError(t, err)
	sender.Initialize(10)
	receiver, err := New()
	require.NoError(t, err)

	_, err = sender.CreateTransfer(100, receiver.PublicKey(), 10)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCorrespondsToMatchesPublicBalance(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	s.Initialize(500)

	require.True(t, s.CorrespondsTo(s.ToPublic()))
}
