package consensus

import (
	"context"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/secretstate"
	"github.com/certen/private-currency/pkg/storage"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	db := kvstore.NewDBStore(dbm.NewMemDB())
	return NewApplication(db)
}

func finalize(t *testing.T, app *Application, height int64, txs [][]byte) []*abcitypes.ExecTxResult {
	t.Helper()
	resp, err := app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{Height: height, Txs: txs})
	require.NoError(t, err)
	_, err = app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(t, err)
	return resp.TxResults
}

func TestFullLifecycleCreateTransferAccept(t *testing.T) {
	app := newTestApp(t)

	alice, err := secretstate.New()
	require.NoError(t, err)
	bob, err := secretstate.New()
	require.NoError(t, err)

	aliceWalletTx := alice.CreateWallet()
	bobWalletTx := bob.CreateWallet()
	aliceBytes, err := EncodeCreateWallet(aliceWalletTx)
	require.NoError(t, err)
	bobBytes, err := EncodeCreateWallet(bobWalletTx)
	require.NoError(t, err)

	results := finalize(t, app, 1, [][]byte{aliceBytes, bobBytes})
	require.Equal(t, CodeOK, results[0].Code)
	require.Equal(t, CodeOK, results[1].Code)

	alice.Initialize(storage.InitialBalance)
	bob.Initialize(storage.InitialBalance)

	transferTx, err := alice.CreateTransfer(500, bob.PublicKey(), 10)
	require.NoError(t, err)
	transferBytes, err := EncodeTransfer(transferTx)
	require.NoError(t, err)

	results = finalize(t, app, 2, [][]byte{transferBytes})
	require.Equal(t, CodeOK, results[0].Code)

	verified, ok := bob.VerifyTransfer(transferTx)
	require.True(t, ok)
	require.Equal(t, uint64(500), verified.Value())

	acceptBytes, err := EncodeAccept(verified.Accept)
	require.NoError(t, err)

	results = finalize(t, app, 3, [][]byte{acceptBytes})
	require.Equal(t, CodeOK, results[0].Code)

	require.NoError(t, alice.Transfer(transferTx))
	require.NoError(t, bob.Transfer(transferTx))

	schema := app.Schema()
	bobWallet, ok := schema.Wallet(bob.PublicKey())
	require.True(t, ok)
	require.True(t, bob.CorrespondsTo(secretstate.WalletInfo{PublicKey: bobWallet.PublicKey, Balance: bobWallet.Balance}))
	require.Equal(t, storage.InitialBalance+500, bob.Balance())

	aliceWallet, ok := schema.Wallet(alice.PublicKey())
	require.True(t, ok)
	require.True(t, alice.CorrespondsTo(secretstate.WalletInfo{PublicKey: aliceWallet.PublicKey, Balance: aliceWallet.Balance}))
	require.Equal(t, storage.InitialBalance-500, alice.Balance())
}
