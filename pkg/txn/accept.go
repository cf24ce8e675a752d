package txn

import (
	"bytes"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
)

// TransferLookup resolves a previously committed Transfer by its hash, the
// way the consensus engine's transaction store does for the core.
type TransferLookup interface {
	GetTransfer(hash merkle.Hash) (*Transfer, bool)
}

// Accept credits a pending transfer to Receiver, identified by TransferID.
type Accept struct {
	Receiver   keys.PublicKey
	TransferID merkle.Hash
	Signature  []byte
}

func (tx *Accept) signingPayload() []byte {
	out := append([]byte("accept"), tx.Receiver[:]...)
	return append(out, tx.TransferID[:]...)
}

// Hash identifies this transaction.
func (tx *Accept) Hash() merkle.Hash {
	return merkle.HashLeaf(append(tx.signingPayload(), tx.Signature...))
}

// Sign signs the transaction with sk, which must correspond to Receiver.
func (tx *Accept) Sign(sk keys.PrivateKey) {
	tx.Signature = keys.Sign(sk, tx.signingPayload())
}

// Verify checks the signature (stateless).
func (tx *Accept) Verify() error {
	if !keys.Verify(tx.Receiver, tx.signingPayload(), tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Execute credits the transfer amount to Receiver, removes the pending
// entry, and cancels its scheduled expiry.
func (tx *Accept) Execute(schema storage.Schema, lookup TransferLookup) error {
	transfer, ok := lookup.GetTransfer(tx.TransferID)
	if !ok {
		return ErrUnknownTransfer
	}
	if transfer.To != tx.Receiver {
		return ErrUnauthorizedAccept
	}

	if _, pending := schema.UnacceptedTransfers(tx.Receiver).Get(tx.TransferID); !pending {
		return ErrUnknownTransfer
	}

	rollbackHeight := transferRollbackHeight(transfer)
	err := schema.AcceptPayment(tx.Receiver, transfer.Amount, tx.TransferID, rollbackHeight)
	if err == storage.ErrUnregisteredReceiver {
		return ErrUnregisteredReceiver
	}
	if err == storage.ErrUnknownTransfer {
		return ErrUnknownTransfer
	}
	return err
}

// transferRollbackHeightFn computes the height a transfer was scheduled to
// expire at from the block in which it committed, which the consensus layer
// records via SetCommittedHeight.
var transferRollbackHeightFn = func(height uint64, delay uint32) uint64 {
	return height + 1 + uint64(delay)
}

func transferRollbackHeight(transfer *Transfer) uint64 {
	return transferRollbackHeightFn(transfer.committedAt, transfer.RollbackDelay)
}

// MarshalBinary encodes the transaction for ABCI tx bytes and block storage.
func (tx *Accept) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tx.Receiver[:])
	buf.Write(tx.TransferID[:])
	putBytes(&buf, tx.Signature)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the form MarshalBinary produces.
func (tx *Accept) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)
	receiver, err := readFixed(r, len(tx.Receiver))
	if err != nil {
		return err
	}
	transferID, err := readFixed(r, len(tx.TransferID))
	if err != nil {
		return err
	}
	sig, err := readBytes(r)
	if err != nil {
		return err
	}
	copy(tx.Receiver[:], receiver)
	copy(tx.TransferID[:], transferID)
	tx.Signature = sig
	return nil
}
