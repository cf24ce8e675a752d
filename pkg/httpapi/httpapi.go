// Package httpapi implements the node's public HTTP surface: wallet lookup,
// unaccepted-transfer listing, and transaction submission.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/private-currency/pkg/consensus"
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
)

// Base is the path prefix every endpoint is served under.
const Base = "/api/services/private_currency/v1"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "private_currency_http_requests_total",
		Help: "Total HTTP requests served by the node API, by path and status.",
	}, []string{"path", "status"})
)

// Handlers serves the node's HTTP API against a consensus Application.
type Handlers struct {
	app    *consensus.Application
	submit func(tx []byte) error
	logger *log.Logger
}

// NewHandlers builds API handlers. submit is called with the encoded
// envelope of a transaction accepted by the HTTP API; in a running node it
// hands off to CometBFT's broadcast_tx_sync RPC.
func NewHandlers(app *consensus.Application, submit func(tx []byte) error) *Handlers {
	return &Handlers{
		app:    app,
		submit: submit,
		logger: log.New(os.Stdout, "[httpapi] ", log.LstdFlags),
	}
}

// Mount registers every endpoint on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.Handle(Base+"/wallet", requestID(h.handleWallet))
	mux.Handle(Base+"/unaccepted-transfers", requestID(h.handleUnacceptedTransfers))
	mux.Handle(Base+"/transfer", requestID(h.handleTransfer))
	mux.Handle(Base+"/transaction", requestID(h.handleTransaction))
}

// MetricsHandler exposes the Prometheus scrape endpoint, meant to be mounted
// on a separate listener from the API endpoints above.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// requestID assigns a request id (echoed in the X-Request-Id response
// header; it is not logged) to every request, the way the attestation API's handlers log a
// validator-supplied id.
func requestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, path string, status int, v interface{}) {
	requestsTotal.WithLabelValues(path, fmt.Sprintf("%d", status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, path, message string, status int) {
	writeJSON(w, path, status, map[string]string{"error": message})
}

// WalletResponse is the body of GET .../wallet.
type WalletResponse struct {
	Wallet  storage.Wallet  `json:"wallet"`
	History []storage.Event `json:"history"`
}

// handleWallet serves GET {Base}/wallet?key=<hex public key>&start_history_at=<u64>.
// start_history_at defaults to 0 (the wallet's full history); callers that
// already hold an earlier prefix can pass their last seen index + 1 to avoid
// re-fetching events they've already verified.
func (h *Handlers) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "wallet", "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pk, err := keys.PublicKeyFromHex(r.URL.Query().Get("key"))
	if err != nil {
		writeJSONError(w, "wallet", "invalid key: "+err.Error(), http.StatusBadRequest)
		return
	}
	startAt, err := parseStartHistoryAt(r.URL.Query().Get("start_history_at"))
	if err != nil {
		writeJSONError(w, "wallet", err.Error(), http.StatusBadRequest)
		return
	}

	schema := h.app.Schema()
	wallet, ok := schema.Wallet(pk)
	if !ok {
		writeJSONError(w, "wallet", "wallet not found", http.StatusNotFound)
		return
	}

	history := schema.History(pk)
	events := make([]storage.Event, 0)
	for i := startAt; i < history.Len(); i++ {
		raw, ok := history.Get(i)
		if !ok {
			continue
		}
		var ev storage.Event
		if err := ev.UnmarshalBinary(raw); err == nil {
			events = append(events, ev)
		}
	}

	writeJSON(w, "wallet", http.StatusOK, WalletResponse{Wallet: wallet, History: events})
}

func parseStartHistoryAt(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid start_history_at: %w", err)
	}
	return v, nil
}

// UnacceptedTransfersResponse is the body of GET .../unaccepted-transfers.
type UnacceptedTransfersResponse struct {
	TransferHashes []merkle.Hash `json:"transfer_hashes"`
}

// handleUnacceptedTransfers serves GET {Base}/unaccepted-transfers?key=<hex
// public key>.
func (h *Handlers) handleUnacceptedTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "unaccepted-transfers", "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pk, err := keys.PublicKeyFromHex(r.URL.Query().Get("key"))
	if err != nil {
		writeJSONError(w, "unaccepted-transfers", "invalid key: "+err.Error(), http.StatusBadRequest)
		return
	}

	schema := h.app.Schema()
	if _, ok := schema.Wallet(pk); !ok {
		writeJSONError(w, "unaccepted-transfers", "wallet not found", http.StatusNotFound)
		return
	}

	var hashes []merkle.Hash
	schema.UnacceptedTransfers(pk).Each(func(key [32]byte, _ []byte) bool {
		hashes = append(hashes, merkle.Hash(key))
		return true
	})

	writeJSON(w, "unaccepted-transfers", http.StatusOK, UnacceptedTransfersResponse{TransferHashes: hashes})
}

// TransferResponse is the body of GET .../transfer: the hex-encoded envelope
// of a still-pending Transfer, for a receiver to decrypt and accept.
type TransferResponse struct {
	Envelope string `json:"envelope"`
}

// handleTransfer serves GET {Base}/transfer?hash=<hex transfer hash>,
// returning the pending transfer's envelope so a receiver can decrypt and
// accept it without having observed it first-hand.
func (h *Handlers) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "transfer", "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := hex.DecodeString(r.URL.Query().Get("hash"))
	if err != nil || len(raw) != 32 {
		writeJSONError(w, "transfer", "invalid transfer hash", http.StatusBadRequest)
		return
	}
	var hash merkle.Hash
	copy(hash[:], raw)

	tx, ok := h.app.Transfers().GetTransfer(hash)
	if !ok {
		writeJSONError(w, "transfer", "transfer not found or already resolved", http.StatusNotFound)
		return
	}
	envelope, err := consensus.EncodeTransfer(tx)
	if err != nil {
		writeJSONError(w, "transfer", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, "transfer", http.StatusOK, TransferResponse{Envelope: hex.EncodeToString(envelope)})
}

// TransactionRequest is the body of POST {Base}/transaction: Envelope must
// be a non-empty hex string.
type TransactionRequest struct {
	// Envelope is the hex-encoded, kind-tagged transaction produced by
	// consensus.EncodeCreateWallet/EncodeTransfer/EncodeAccept.
	Envelope string `json:"envelope"`
}

// TransactionResponse reports only that the submit hook accepted the
// envelope; it carries no transaction hash, and it does not imply the
// transaction has committed.
type TransactionResponse struct {
	Accepted bool `json:"accepted"`
}

// handleTransaction serves POST {Base}/transaction.
func (h *Handlers) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "transaction", "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "transaction", "invalid request body", http.StatusBadRequest)
		return
	}

	raw, err := decodeHexEnvelope(req.Envelope)
	if err != nil {
		writeJSONError(w, "transaction", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.submit(raw); err != nil {
		writeJSONError(w, "transaction", err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, "transaction", http.StatusOK, TransactionResponse{Accepted: true})
}

func decodeHexEnvelope(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("envelope must not be empty")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex envelope: %w", err)
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("envelope too short")
	}
	return raw, nil
}
