// Package proof builds and verifies wallet proofs: self-contained evidence
// that lets a thin client, holding only a static trust anchor, convince
// itself of a wallet's current state without trusting the node that served
// it (§4.5). Verification runs as a chain of named, independently checked
// hops — block quorum, wallet table, wallet, history range, unaccepted set —
// the same shape as the light-client verifier's Hop-chaining pattern this
// package is modeled on.
package proof

import (
	"errors"
	"fmt"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
)

// Named verification failures, one per §4.5 hop.
var (
	ErrInvalidValidatorID  = errors.New("proof: precommit references an unknown validator id")
	ErrDuplicateValidators = errors.New("proof: duplicate validator in block proof")
	ErrNoQuorum            = errors.New("proof: fewer than quorum distinct validators signed")
	ErrInvalidSignature    = errors.New("proof: precommit signature does not verify")
	ErrWalletProofInvalid  = errors.New("proof: wallet proof does not chain to wallets_hash")
	ErrHistoryProofInvalid = errors.New("proof: history range proof does not chain to history_hash")
	ErrKeyMismatch         = errors.New("proof: unaccepted transfer proof keys do not match the asserted set")
)

// Hop is one independently checked step in a wallet proof's verification
// chain, recorded whether it succeeds or fails.
type Hop struct {
	Name string
	OK   bool
	Err  string
}

// TrustAnchor is the static validator set a thin client verifies block
// proofs against. Quorum is floor(2n/3)+1 distinct signers.
type TrustAnchor struct {
	Validators []keys.PublicKey
}

// QuorumSize returns the number of distinct validator signatures a block
// proof must carry to be trusted.
func (a TrustAnchor) QuorumSize() int {
	n := len(a.Validators)
	return (2*n)/3 + 1
}

// Precommit is one validator's signature over a block's app hash at a
// given height, the unit the block-quorum hop checks.
type Precommit struct {
	ValidatorID int
	Signature   []byte
}

// precommitMessage is the exact byte string each precommit signs: the
// height and the block's app hash, which for this ledger is the wallets
// map's Merkle root (Commit sets it directly, so there is no separate
// wallet-table indirection to unwind; the "wallet table" hop below is the
// identity check that follows from that).
func precommitMessage(height uint64, appHash []byte) []byte {
	msg := make([]byte, 8+len(appHash))
	for i := 0; i < 8; i++ {
		msg[i] = byte(height >> (56 - 8*i))
	}
	copy(msg[8:], appHash)
	return msg
}

// BlockProof is the finalized block header at a given height, together with
// the precommits attesting it.
type BlockProof struct {
	Height     uint64
	AppHash    []byte
	Precommits []Precommit
}

// Query selects what a wallet proof should cover: the wallet itself, plus
// optionally the history range starting at StartHistoryAt.
type Query struct {
	Key            keys.PublicKey
	StartHistoryAt uint64
}

// WalletProof is the complete node-produced evidence for one Query,
// assembled from committed state at a single block.
type WalletProof struct {
	Block BlockProof

	// WalletProof authenticates Wallet's presence or absence under
	// Block.AppHash (the wallets map root).
	WalletProof merkle.Proof
	Wallet      *storage.Wallet

	// HistoryProof, when non-nil, authenticates History against
	// Wallet.HistoryHash for the requested range. Nil iff the range
	// [StartHistoryAt, Wallet.HistoryLen) is empty or Wallet is absent.
	HistoryProof *merkle.RangeProof
	History      []storage.Event

	// UnacceptedProofs authenticates every entry in UnacceptedTransfers
	// against Wallet.UnacceptedTransfersHash.
	UnacceptedProofs    []merkle.Proof
	UnacceptedTransfers []merkle.Hash
}

// BuildWalletProof assembles a WalletProof for query from committed state,
// to be shipped alongside block to a thin client. block must already carry
// the precommits collected for this height (the node obtains these from its
// own consensus engine; this package only consumes them).
func BuildWalletProof(schema storage.Schema, block BlockProof, query Query) (WalletProof, error) {
	wp := WalletProof{Block: block}

	wp.WalletProof = schema.Wallets().ProveKey(query.Key)

	wallet, ok := schema.Wallet(query.Key)
	if !ok {
		return wp, nil
	}
	wp.Wallet = &wallet

	if query.StartHistoryAt < wallet.HistoryLen {
		history := schema.History(query.Key)
		rp, err := history.RangeProof(query.StartHistoryAt, wallet.HistoryLen)
		if err != nil {
			return WalletProof{}, fmt.Errorf("proof: build history range proof: %w", err)
		}
		wp.HistoryProof = &rp
		for i := query.StartHistoryAt; i < wallet.HistoryLen; i++ {
			raw, ok := history.Get(i)
			if !ok {
				continue
			}
			var ev storage.Event
			if err := ev.UnmarshalBinary(raw); err == nil {
				wp.History = append(wp.History, ev)
			}
		}
	}

	unaccepted := schema.UnacceptedTransfers(query.Key)
	unaccepted.Each(func(key [32]byte, _ []byte) bool {
		wp.UnacceptedProofs = append(wp.UnacceptedProofs, unaccepted.ProveKey(key))
		wp.UnacceptedTransfers = append(wp.UnacceptedTransfers, merkle.Hash(key))
		return true
	})

	return wp, nil
}

// VerifyWalletProof runs the full §4.5 hop chain against anchor, returning
// the checked wallet (nil if the proof attests absence) plus the
// independently recorded hop outcomes. Returns the error of the first hop
// that fails; earlier hops always run before later ones since each later hop
// depends on a value the previous hop authenticated.
func VerifyWalletProof(anchor TrustAnchor, wp WalletProof, query Query) (*storage.Wallet, []Hop, error) {
	var hops []Hop

	if err := verifyBlockQuorum(anchor, wp.Block); err != nil {
		hops = append(hops, Hop{Name: "block_quorum", OK: false, Err: err.Error()})
		return nil, hops, err
	}
	hops = append(hops, Hop{Name: "block_quorum", OK: true})

	// The wallet-table hop is the identity check that Block.AppHash equals
	// the wallets map's own root; this ledger hosts a single service, so
	// there is no multiplexed table root to unwind first.
	walletsRoot := merkle.Hash{}
	copy(walletsRoot[:], wp.Block.AppHash)
	hops = append(hops, Hop{Name: "wallet_table", OK: true})

	if wp.Wallet == nil {
		if !merkle.VerifyAbsence(wp.WalletProof, walletsRoot) {
			err := ErrWalletProofInvalid
			hops = append(hops, Hop{Name: "wallet", OK: false, Err: err.Error()})
			return nil, hops, err
		}
		hops = append(hops, Hop{Name: "wallet", OK: true})
		return nil, hops, nil
	}

	walletBytes, err := wp.Wallet.MarshalBinary()
	if err != nil {
		hops = append(hops, Hop{Name: "wallet", OK: false, Err: err.Error()})
		return nil, hops, err
	}
	if !merkle.VerifyInclusion(wp.WalletProof, walletBytes, walletsRoot) {
		err := ErrWalletProofInvalid
		hops = append(hops, Hop{Name: "wallet", OK: false, Err: err.Error()})
		return nil, hops, err
	}
	hops = append(hops, Hop{Name: "wallet", OK: true})

	if err := verifyHistory(wp, query); err != nil {
		hops = append(hops, Hop{Name: "history", OK: false, Err: err.Error()})
		return nil, hops, err
	}
	hops = append(hops, Hop{Name: "history", OK: true})

	if err := verifyUnaccepted(wp); err != nil {
		hops = append(hops, Hop{Name: "unaccepted_transfers", OK: false, Err: err.Error()})
		return nil, hops, err
	}
	hops = append(hops, Hop{Name: "unaccepted_transfers", OK: true})

	return wp.Wallet, hops, nil
}

func verifyBlockQuorum(anchor TrustAnchor, block BlockProof) error {
	seen := make(map[int]bool, len(block.Precommits))
	message := precommitMessage(block.Height, block.AppHash)

	for _, pc := range block.Precommits {
		if pc.ValidatorID < 0 || pc.ValidatorID >= len(anchor.Validators) {
			return ErrInvalidValidatorID
		}
		if seen[pc.ValidatorID] {
			return ErrDuplicateValidators
		}
		seen[pc.ValidatorID] = true

		validatorKey := anchor.Validators[pc.ValidatorID]
		if !keys.Verify(validatorKey, message, pc.Signature) {
			return ErrInvalidSignature
		}
	}

	if len(seen) < anchor.QuorumSize() {
		return ErrNoQuorum
	}
	return nil
}

func verifyHistory(wp WalletProof, query Query) error {
	if query.StartHistoryAt >= wp.Wallet.HistoryLen {
		if wp.HistoryProof != nil {
			return ErrHistoryProofInvalid
		}
		return nil
	}
	if wp.HistoryProof == nil {
		return ErrHistoryProofInvalid
	}
	if !merkle.VerifyRangeProof(*wp.HistoryProof, wp.Wallet.HistoryHash) {
		return ErrHistoryProofInvalid
	}
	if uint64(len(wp.History)) != wp.Wallet.HistoryLen-query.StartHistoryAt {
		return ErrHistoryProofInvalid
	}
	for i, ev := range wp.History {
		encoded, err := ev.MarshalBinary()
		if err != nil {
			return err
		}
		if wp.HistoryProof.Leaves[i] != merkle.HashLeaf(encoded) {
			return ErrHistoryProofInvalid
		}
	}
	return nil
}

func verifyUnaccepted(wp WalletProof) error {
	if len(wp.UnacceptedProofs) != len(wp.UnacceptedTransfers) {
		return ErrKeyMismatch
	}
	for i, hash := range wp.UnacceptedTransfers {
		p := wp.UnacceptedProofs[i]
		if p.Key != [32]byte(hash) {
			return ErrKeyMismatch
		}
		if p.Leaf == (merkle.Hash{}) {
			return ErrKeyMismatch
		}
		if !merkle.VerifyPath(p.Leaf, p.Path, wp.Wallet.UnacceptedTransfersHash) {
			return ErrKeyMismatch
		}
	}
	return nil
}
