package txn

import (
	"testing"

	"github.com/certen/private-currency/pkg/enc"
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/certen/private-currency/pkg/rangeproof"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/stretchr/testify/require"
)

type memoryTransferStore struct {
	transfers map[merkle.Hash]*Transfer
}

func newMemoryTransferStore() *memoryTransferStore {
	return &memoryTransferStore{transfers: make(map[merkle.Hash]*Transfer)}
}

func (s *memoryTransferStore) GetTransfer(hash merkle.Hash) (*Transfer, bool) {
	t, ok := s.transfers[hash]
	return t, ok
}

func (s *memoryTransferStore) put(tx *Transfer) {
	s.transfers[tx.Hash()] = tx
}

func makeWallet(t *testing.T, schema storage.Schema) (keys.PublicKey, keys.PrivateKey) {
	t.Helper()
	pk, sk, err := keys.Generate()
	require.NoError(t, err)
	cw := &CreateWallet{Key: pk}
	cw.Sign(sk)
	require.NoError(t, cw.Verify())
	require.NoError(t, cw.Execute(schema))
	testSecretKeys[pk] = sk
	return pk, sk
}

// buildTransfer constructs a signed Transfer from fromPK to toPK. It assumes
// the sender's past-balance reference at historyLen-1 is still
// InitialBalance with zero blinding, which holds for a freshly created
// wallet's first send — the only case these tests exercise.
func buildTransfer(t *testing.T, schema storage.Schema, fromPK keys.PublicKey, fromSK keys.PrivateKey, toPK keys.PublicKey, amount uint64, historyLen uint64, delay uint32) *Transfer {
	t.Helper()
	_, ok := schema.Wallet(fromPK)
	require.True(t, ok)

	amountCommitment, amountOpening := pedersen.New(amount)
	amountProof, err := rangeproof.Prove(mustSub(t, amountOpening, pedersen.WithNoBlinding(MinTransferAmount)))
	require.NoError(t, err)

	balanceOpening := pedersen.WithNoBlinding(storage.InitialBalance)
	diffOpening := mustSub(t, balanceOpening, amountOpening)
	sufficientProof, err := rangeproof.Prove(diffOpening)
	require.NoError(t, err)

	_, senderEncSK := enc.KeypairFromEd25519(fromPK, fromSK)
	receiverEncPK := enc.PublicKeyFromEd25519(toPK)
	sealed, err := enc.Seal([]byte("opening-placeholder"), receiverEncPK, senderEncSK)
	require.NoError(t, err)

	tx := &Transfer{
		From:                   fromPK,
		To:                     toPK,
		RollbackDelay:          delay,
		HistoryLen:             historyLen,
		Amount:                 amountCommitment,
		AmountProof:            amountProof,
		SufficientBalanceProof: sufficientProof,
		EncryptedData:          sealed,
	}
	tx.Sign(fromSK)
	return tx
}

func mustSub(t *testing.T, a, b pedersen.Opening) pedersen.Opening {
	t.Helper()
	out, err := a.Sub(b)
	require.NoError(t, err)
	return out
}

func TestTransferAndAcceptFullFlow(t *testing.T) {
	schema := storage.New(kvstore.NewMemory())
	alicePK, aliceSK := makeWallet(t, schema)
	bobPK, _ := makeWallet(t, schema)

	transfer := buildTransfer(t, schema, alicePK, aliceSK, bobPK, 1000, 1, 5)
	require.NoError(t, transfer.Verify())
	require.NoError(t, transfer.Execute(schema, 100))
	transfer.SetCommittedHeight(100)

	aliceWallet, _ := schema.Wallet(alicePK)
	require.Equal(t, uint64(2), aliceWallet.HistoryLen)
	require.Equal(t, uint64(1), aliceWallet.LastSendIndex)

	store := newMemoryTransferStore()
	store.put(transfer)

	accept := &Accept{Receiver: bobPK, TransferID: transfer.Hash()}
	accept.Sign(testSecretKeys[bobPK])
	require.NoError(t, accept.Verify())
	require.NoError(t, accept.Execute(schema, store))

	bobWallet, _ := schema.Wallet(bobPK)
	expected := pedersen.FromOpening(pedersen.WithNoBlinding(storage.InitialBalance)).Add(transfer.Amount)
	require.True(t, bobWallet.Balance.IsEqual(expected))

	_, stillPending := schema.UnacceptedTransfers(bobPK).Get(transfer.Hash())
	require.False(t, stillPending)
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	schema := storage.New(kvstore.NewMemory())
	alicePK, aliceSK := makeWallet(t, schema)

	transfer := buildTransfer(t, schema, alicePK, aliceSK, alicePK, 10, 1, 5)
	require.ErrorIs(t, transfer.Verify(), ErrSelfTransfer)
}

func TestTransferRejectsBadRollbackDelay(t *testing.T) {
	schema := storage.New(kvstore.NewMemory())
	alicePK, aliceSK := makeWallet(t, schema)
	bobPK, _ := makeWallet(t, schema)

	transfer := buildTransfer(t, schema, alicePK, aliceSK, bobPK, 10, 1, 1000)
	require.ErrorIs(t, transfer.Verify(), ErrInvalidRollbackDelay)
}

func TestTransferRejectsOutdatedHistory(t *testing.T) {
	schema := storage.New(kvstore.NewMemory())
	alicePK, aliceSK := makeWallet(t, schema)
	bobPK, _ := makeWallet(t, schema)

	first := buildTransfer(t, schema, alicePK, aliceSK, bobPK, 10, 1, 5)
	require.NoError(t, first.Execute(schema, 100))

	stale := buildTransfer(t, schema, alicePK, aliceSK, bobPK, 10, 1, 5)
	require.ErrorIs(t, stale.Execute(schema, 101), ErrOutdatedHistory)
}

// testSecretKeys lets later test steps recover a signing key for a public
// key created earlier by makeWallet, since a wallet's storage.Wallet record
// does not carry it.
var testSecretKeys = map[keys.PublicKey]keys.PrivateKey{}
