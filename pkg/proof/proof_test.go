package proof

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/certen/private-currency/pkg/storage"
)

// buildAnchor returns a TrustAnchor over n validators and their private
// keys; sign builds the precommits for a BlockProof from those keys.
func buildAnchor(t *testing.T, n int) (TrustAnchor, []keys.PrivateKey) {
	t.Helper()
	anchor := TrustAnchor{Validators: make([]keys.PublicKey, n)}
	sks := make([]keys.PrivateKey, n)
	for i := 0; i < n; i++ {
		pk, sk, err := keys.Generate()
		require.NoError(t, err)
		anchor.Validators[i] = pk
		sks[i] = sk
	}
	return anchor, sks
}

func sign(t *testing.T, sks []keys.PrivateKey, height uint64, appHash []byte, signerCount int) []Precommit {
	t.Helper()
	msg := precommitMessage(height, appHash)
	precommits := make([]Precommit, signerCount)
	for i := 0; i < signerCount; i++ {
		precommits[i] = Precommit{ValidatorID: i, Signature: keys.Sign(sks[i], msg)}
	}
	return precommits
}

func TestVerifyBlockQuorum(t *testing.T) {
	anchor, sks := buildAnchor(t, 4)
	appHash := []byte("app hash bytes placeholder here")
	height := uint64(10)

	t.Run("quorate", func(t *testing.T) {
		block := BlockProof{Height: height, AppHash: appHash, Precommits: sign(t, sks, height, appHash, 3)}
		require.NoError(t, verifyBlockQuorum(anchor, block))
	})

	t.Run("short of quorum", func(t *testing.T) {
		block := BlockProof{Height: height, AppHash: appHash, Precommits: sign(t, sks, height, appHash, 2)}
		require.ErrorIs(t, verifyBlockQuorum(anchor, block), ErrNoQuorum)
	})

	t.Run("duplicate validator", func(t *testing.T) {
		pcs := sign(t, sks, height, appHash, 3)
		pcs = append(pcs, pcs[0])
		block := BlockProof{Height: height, AppHash: appHash, Precommits: pcs}
		require.ErrorIs(t, verifyBlockQuorum(anchor, block), ErrDuplicateValidators)
	})

	t.Run("unknown validator id", func(t *testing.T) {
		pcs := sign(t, sks, height, appHash, 3)
		pcs[0].ValidatorID = len(anchor.Validators)
		block := BlockProof{Height: height, AppHash: appHash, Precommits: pcs}
		require.ErrorIs(t, verifyBlockQuorum(anchor, block), ErrInvalidValidatorID)
	})

	t.Run("forged signature", func(t *testing.T) {
		pcs := sign(t, sks, height, appHash, 3)
		pcs[0].Signature[0] ^= 0xff
		block := BlockProof{Height: height, AppHash: appHash, Precommits: pcs}
		require.ErrorIs(t, verifyBlockQuorum(anchor, block), ErrInvalidSignature)
	})
}

func TestBuildAndVerifyWalletProofPresent(t *testing.T) {
	fork := kvstore.NewMemory()
	schema := storage.New(fork)

	pk, _, err := keys.Generate()
	require.NoError(t, err)

	wallet := storage.Wallet{PublicKey: pk, Balance: pedersen.FromOpening(pedersen.WithNoBlinding(0))}
	walletBytes, err := wallet.MarshalBinary()
	require.NoError(t, err)
	schema.Wallets().Set(pk, walletBytes)

	root := schema.Wallets().Root()
	anchor, sks := buildAnchor(t, 4)
	block := BlockProof{Height: 1, AppHash: root[:], Precommits: sign(t, sks, 1, root[:], 3)}

	wp, err := BuildWalletProof(schema, block, Query{Key: pk})
	require.NoError(t, err)
	require.NotNil(t, wp.Wallet)

	got, hops, err := VerifyWalletProof(anchor, wp, Query{Key: pk})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, pk, got.PublicKey)
	for _, h := range hops {
		require.True(t, h.OK, "hop %s failed: %s", h.Name, h.Err)
	}
}

func TestBuildAndVerifyWalletProofAbsent(t *testing.T) {
	fork := kvstore.NewMemory()
	schema := storage.New(fork)

	pk, _, err := keys.Generate()
	require.NoError(t, err)

	root := schema.Wallets().Root()
	anchor, sks := buildAnchor(t, 4)
	block := BlockProof{Height: 1, AppHash: root[:], Precommits: sign(t, sks, 1, root[:], 3)}

	wp, err := BuildWalletProof(schema, block, Query{Key: pk})
	require.NoError(t, err)
	require.Nil(t, wp.Wallet)

	got, _, err := VerifyWalletProof(anchor, wp, Query{Key: pk})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestBuildAndVerifyWalletProofWithHistory(t *testing.T) {
	fork := kvstore.NewMemory()
	schema := storage.New(fork)

	pk, _, err := keys.Generate()
	require.NoError(t, err)
	require.NoError(t, schema.CreateWallet(pk, merkle.HashLeaf([]byte("create"))))

	root := schema.Wallets().Root()
	anchor, sks := buildAnchor(t, 4)
	block := BlockProof{Height: 1, AppHash: root[:], Precommits: sign(t, sks, 1, root[:], 3)}

	wp, err := BuildWalletProof(schema, block, Query{Key: pk, StartHistoryAt: 0})
	require.NoError(t, err)
	require.NotNil(t, wp.HistoryProof)
	require.Len(t, wp.History, 1)
	require.Equal(t, storage.EventCreateWallet, wp.History[0].Tag)

	got, hops, err := VerifyWalletProof(anchor, wp, Query{Key: pk, StartHistoryAt: 0})
	require.NoError(t, err)
	require.NotNil(t, got)
	for _, h := range hops {
		require.True(t, h.OK, "hop %s failed: %s", h.Name, h.Err)
	}
}

func TestVerifyWalletProofRejectsTamperedWallet(t *testing.T) {
	fork := kvstore.NewMemory()
	schema := storage.New(fork)

	pk, _, err := keys.Generate()
	require.NoError(t, err)

	wallet := storage.Wallet{PublicKey: pk, Balance: pedersen.FromOpening(pedersen.WithNoBlinding(0))}
	walletBytes, err := wallet.MarshalBinary()
	require.NoError(t, err)
	schema.Wallets().Set(pk, walletBytes)

	root := schema.Wallets().Root()
	anchor, sks := buildAnchor(t, 4)
	block := BlockProof{Height: 1, AppHash: root[:], Precommits: sign(t, sks, 1, root[:], 3)}

	wp, err := BuildWalletProof(schema, block, Query{Key: pk})
	require.NoError(t, err)

	wp.Wallet.HistoryLen = 99

	_, _, err = VerifyWalletProof(anchor, wp, Query{Key: pk})
	require.ErrorIs(t, err, ErrWalletProofInvalid)
}
