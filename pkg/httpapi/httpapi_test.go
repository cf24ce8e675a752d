package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/consensus"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/secretstate"
	"github.com/certen/private-currency/pkg/storage"
)

func newTestHandlers(t *testing.T) (*Handlers, *consensus.Application) {
	t.Helper()
	db := kvstore.NewDBStore(dbm.NewMemDB())
	app := consensus.NewApplication(db)
	h := NewHandlers(app, func(tx []byte) error {
		resp, err := app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: tx})
		if err != nil {
			return err
		}
		if resp.Code != consensus.CodeOK {
			return errors.New(resp.Log)
		}
		return nil
	})
	return h, app
}


func finalizeOne(t *testing.T, app *consensus.Application, height int64, tx []byte) {
	t.Helper()
	resp, err := app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{Height: height, Txs: [][]byte{tx}})
	require.NoError(t, err)
	require.Equal(t, consensus.CodeOK, resp.TxResults[0].Code)
	_, err = app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(t, err)
}

func TestHandleWalletMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	rr := httptest.NewRecorder()
	h.handleWallet(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleWalletNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	s, err := secretstate.New()
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/x?key="+s.PublicKey().String(), nil)
	rr := httptest.NewRecorder()
	h.handleWallet(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleWalletReturnsCommittedWallet(t *testing.T) {
	h, app := newTestHandlers(t)
	s, err := secretstate.New()
	require.NoError(t, err)

	tx := s.CreateWallet()
	envelope, err := consensus.EncodeCreateWallet(tx)
	require.NoError(t, err)
	finalizeOne(t, app, 1, envelope)

	req := httptest.NewRequest(http.MethodGet, "/x?key="+s.PublicKey().String(), nil)
	rr := httptest.NewRecorder()
	h.handleWallet(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out WalletResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Equal(t, s.PublicKey(), out.Wallet.PublicKey)
	require.Len(t, out.History, 1)
	require.Equal(t, storage.EventCreateWallet, out.History[0].Tag)
}

func TestHandleWalletStartHistoryAt(t *testing.T) {
	h, app := newTestHandlers(t)
	s, err := secretstate.New()
	require.NoError(t, err)

	tx := s.CreateWallet()
	envelope, err := consensus.EncodeCreateWallet(tx)
	require.NoError(t, err)
	finalizeOne(t, app, 1, envelope)

	req := httptest.NewRequest(http.MethodGet, "/x?key="+s.PublicKey().String()+"&start_history_at=1", nil)
	rr := httptest.NewRecorder()
	h.handleWallet(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out WalletResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Empty(t, out.History)
}

func TestHandleTransactionRejectsBadHex(t *testing.T) {
	h, _ := newTestHandlers(t)
	body := `{"envelope":"not-hex"}`
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.handleTransaction(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleTransferNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/x?hash="+hex.EncodeToString(make([]byte, 32)), nil)
	rr := httptest.NewRecorder()
	h.handleTransfer(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
