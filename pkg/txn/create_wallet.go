// Package txn implements the three transaction kinds the ledger accepts —
// CreateWallet, Transfer, Accept — each with a stateless Verify and a
// stateful Execute against the storage schema.
package txn

import (
	"bytes"
	"encoding/binary"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
)

// CreateWallet registers a new wallet for Key.
type CreateWallet struct {
	Key       keys.PublicKey
	Signature []byte
}

func (tx *CreateWallet) signingPayload() []byte {
	return append([]byte("create_wallet"), tx.Key[:]...)
}

// Hash identifies this transaction on the ledger; it is the value recorded
// in history events and, transitively, referenced by Transfer/Accept.
func (tx *CreateWallet) Hash() merkle.Hash {
	return merkle.HashLeaf(append(tx.signingPayload(), tx.Signature...))
}

// Sign signs the transaction with sk, which must correspond to Key.
func (tx *CreateWallet) Sign(sk keys.PrivateKey) {
	tx.Signature = keys.Sign(sk, tx.signingPayload())
}

// Verify checks the transaction's signature (stateless).
func (tx *CreateWallet) Verify() error {
	if !keys.Verify(tx.Key, tx.signingPayload(), tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Execute registers the wallet in schema, failing with ErrWalletExists if
// already present.
func (tx *CreateWallet) Execute(schema storage.Schema) error {
	err := schema.CreateWallet(tx.Key, tx.Hash())
	if err == storage.ErrWalletExists {
		return ErrWalletExists
	}
	return err
}

// MarshalBinary encodes the transaction for ABCI tx bytes and block storage.
func (tx *CreateWallet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tx.Key[:])
	putBytes(&buf, tx.Signature)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the form MarshalBinary produces.
func (tx *CreateWallet) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)
	key, err := readFixed(r, len(tx.Key))
	if err != nil {
		return err
	}
	sig, err := readBytes(r)
	if err != nil {
		return err
	}
	copy(tx.Key[:], key)
	tx.Signature = sig
	return nil
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func uint32Bytes(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}
