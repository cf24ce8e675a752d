// Package consensus implements the ABCI application that replicates wallet
// state across validators: it validates and executes transactions against
// the storage schema, and runs the automatic rollback-expiry sweep once per
// block before commit.
package consensus

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/certen/private-currency/pkg/debugtap"
	"github.com/certen/private-currency/pkg/kvstore"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/certen/private-currency/pkg/txn"
)

// ABCI response codes.
const (
	CodeOK uint32 = iota
	CodeInvalidEnvelope
	CodeInvalidSignature
	CodeExecutionFailed
)

// Application implements abcitypes.Application for the ledger.
type Application struct {
	logger *log.Logger
	mu     sync.Mutex

	store kvstore.DBStore

	height  int64
	appHash []byte

	transfers *TransferStore
	debug     *debugtap.Probe
}

// NewApplication builds an Application backed by db, which must already
// implement kvstore.Fork (true of every concrete store in pkg/kvstore).
func NewApplication(db *kvstore.DBStore) *Application {
	return &Application{
		logger:    log.New(os.Stdout, "[consensus] ", log.LstdFlags),
		store:     *db,
		transfers: NewTransferStore(),
	}
}

// AttachDebugger wires a debugtap probe so RolledBack events are reported
// after every commit. Call at most once, before the application starts
// processing blocks.
func (app *Application) AttachDebugger(probe *debugtap.Probe) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.debug = probe
}

func (app *Application) schema() storage.Schema {
	return storage.New(&app.store)
}

// Info reports the last committed height and app hash so CometBFT can
// resume consensus after a restart.
func (app *Application) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return &abcitypes.ResponseInfo{
		Data:             "private-currency",
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  app.height,
		LastBlockAppHash: app.appHash,
	}, nil
}

// InitChain has nothing to seed; wallets are created by CreateWallet
// transactions, not genesis state.
func (app *Application) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	return &abcitypes.ResponseInitChain{}, nil
}

// CheckTx runs a transaction's stateless Verify, the cheap check the mempool
// can run on every node before gossiping further.
func (app *Application) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	decoded, err := decodeTx(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInvalidEnvelope, Log: err.Error()}, nil
	}

	var verifyErr error
	switch decoded.kind {
	case kindCreateWallet:
		verifyErr = decoded.createWallet.Verify()
	case kindTransfer:
		verifyErr = decoded.transfer.Verify()
	case kindAccept:
		verifyErr = decoded.accept.Verify()
	}
	if verifyErr != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInvalidSignature, Log: verifyErr.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: CodeOK, GasWanted: 1, GasUsed: 1}, nil
}

// PrepareProposal passes transactions through unchanged; ordering within a
// block does not affect correctness here since each wallet's history is
// sequenced by its own HistoryLen, not by position in the block.
func (app *Application) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal accepts any block whose transactions decode; full
// execution happens in FinalizeBlock.
func (app *Application) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, tx := range req.Txs {
		if _, err := decodeTx(tx); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock executes every transaction in order, then runs the
// automatic rollback-expiry sweep for this height.
func (app *Application) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	height := uint64(req.Height)
	schema := app.schema()
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))

	for i, raw := range req.Txs {
		results[i] = app.executeOne(schema, height, raw)
	}

	var rolledBack []merkle.Hash
	schema.RollbackSchedule(height).Each(func(member, _ []byte) bool {
		var h merkle.Hash
		copy(h[:], member)
		rolledBack = append(rolledBack, h)
		return true
	})

	if err := schema.ExpireRollbacks(height, app.transfers.Resolve); err != nil {
		app.logger.Printf("rollback expiry at height %d failed: %v", height, err)
	}

	if app.debug != nil && len(rolledBack) > 0 {
		app.debug.OnAfterCommit(height, rolledBack, func(h merkle.Hash) (*txn.Transfer, bool) {
			return app.transfers.GetTransfer(h)
		})
	}
	for _, h := range rolledBack {
		app.transfers.Forget(h)
	}

	root := schema.Wallets().Root()
	return &abcitypes.ResponseFinalizeBlock{TxResults: results, AppHash: root[:]}, nil
}

func (app *Application) executeOne(schema storage.Schema, height uint64, raw []byte) *abcitypes.ExecTxResult {
	decoded, err := decodeTx(raw)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: CodeInvalidEnvelope, Log: err.Error()}
	}

	switch decoded.kind {
	case kindCreateWallet:
		tx := decoded.createWallet
		if err := tx.Verify(); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeInvalidSignature, Log: err.Error()}
		}
		if err := tx.Execute(schema); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeExecutionFailed, Log: err.Error()}
		}
		return &abcitypes.ExecTxResult{
			Code: CodeOK,
			Events: []abcitypes.Event{{
				Type: "create_wallet",
				Attributes: []abcitypes.EventAttribute{
					{Key: "public_key", Value: tx.Key.String()},
				},
			}},
		}

	case kindTransfer:
		tx := decoded.transfer
		if err := tx.Verify(); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeInvalidSignature, Log: err.Error()}
		}
		if err := tx.Execute(schema, height); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeExecutionFailed, Log: err.Error()}
		}
		app.transfers.Put(height, tx)
		return &abcitypes.ExecTxResult{
			Code: CodeOK,
			Events: []abcitypes.Event{{
				Type: "transfer",
				Attributes: []abcitypes.EventAttribute{
					{Key: "from", Value: tx.From.String()},
					{Key: "to", Value: tx.To.String()},
					{Key: "hash", Value: fmt.Sprintf("%x", tx.Hash())},
				},
			}},
		}

	case kindAccept:
		tx := decoded.accept
		if err := tx.Verify(); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeInvalidSignature, Log: err.Error()}
		}
		if err := tx.Execute(schema, app.transfers); err != nil {
			return &abcitypes.ExecTxResult{Code: CodeExecutionFailed, Log: err.Error()}
		}
		app.transfers.Forget(tx.TransferID)
		return &abcitypes.ExecTxResult{
			Code: CodeOK,
			Events: []abcitypes.Event{{
				Type: "accept",
				Attributes: []abcitypes.EventAttribute{
					{Key: "receiver", Value: tx.Receiver.String()},
					{Key: "transfer_id", Value: fmt.Sprintf("%x", tx.TransferID)},
				},
			}},
		}
	}

	return &abcitypes.ExecTxResult{Code: CodeInvalidEnvelope, Log: "unreachable: unknown tx kind"}
}

// Commit advances the committed height; the app hash is derived from the
// wallet table's Merkle root, so light clients can verify wallet state
// against it directly (§4.5).
func (app *Application) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.height++
	root := app.schema().Wallets().Root()
	app.appHash = root[:]

	return &abcitypes.ResponseCommit{}, nil
}

// Query serves read-only wallet lookups directly from committed state.
func (app *Application) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch req.Path {
	case "/height":
		return &abcitypes.ResponseQuery{Code: CodeOK, Value: []byte(fmt.Sprintf("%d", app.height))}, nil
	default:
		return &abcitypes.ResponseQuery{Code: 1, Log: "unknown query path: " + req.Path}, nil
	}
}

// Schema exposes a read-only snapshot of committed state, for the HTTP API
// and lite-client proof builder.
func (app *Application) Schema() storage.Schema {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.schema()
}

// Transfers exposes the committed-transfer index for the Accept transaction
// lookup and the before-commit rollback sweep.
func (app *Application) Transfers() *TransferStore {
	return app.transfers
}

func (app *Application) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *Application) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *Application) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *Application) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (app *Application) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *Application) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

var _ abcitypes.Application = (*Application)(nil)
