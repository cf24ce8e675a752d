package consensus

import (
	"errors"

	"github.com/certen/private-currency/pkg/txn"
)

// txKind tags which of the three transaction kinds an ABCI tx envelope
// carries, the same one-byte-discriminant convention storage.EventTag uses.
type txKind uint8

const (
	kindCreateWallet txKind = 0
	kindTransfer     txKind = 1
	kindAccept       txKind = 2
)

// ErrUnknownTxKind is returned when an ABCI tx's leading byte does not match
// any known transaction kind.
var ErrUnknownTxKind = errors.New("consensus: unknown transaction kind")

// decodedTx holds exactly one of the three transaction kinds, set by
// decodeTx.
type decodedTx struct {
	kind         txKind
	createWallet *txn.CreateWallet
	transfer     *txn.Transfer
	accept       *txn.Accept
}

// encodeTx wraps a signed transaction for transport as ABCI tx bytes.
func encodeTx(kind txKind, body interface{ MarshalBinary() ([]byte, error) }) ([]byte, error) {
	payload, err := body.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(kind))
	out = append(out, payload...)
	return out, nil
}

// EncodeCreateWallet wraps a signed CreateWallet transaction.
func EncodeCreateWallet(tx *txn.CreateWallet) ([]byte, error) {
	return encodeTx(kindCreateWallet, tx)
}

// EncodeTransfer wraps a signed Transfer transaction.
func EncodeTransfer(tx *txn.Transfer) ([]byte, error) {
	return encodeTx(kindTransfer, tx)
}

// EncodeAccept wraps a signed Accept transaction.
func EncodeAccept(tx *txn.Accept) ([]byte, error) {
	return encodeTx(kindAccept, tx)
}

// DecodeTransfer unwraps an ABCI tx envelope known to carry a Transfer, for
// callers (the HTTP API, wallet clients) that already know the kind from
// context such as a pending-transfer index.
func DecodeTransfer(raw []byte) (*txn.Transfer, error) {
	decoded, err := decodeTx(raw)
	if err != nil {
		return nil, err
	}
	if decoded.kind != kindTransfer {
		return nil, ErrUnknownTxKind
	}
	return decoded.transfer, nil
}

// decodeTx unwraps an ABCI tx's bytes into exactly one transaction kind.
func decodeTx(raw []byte) (decodedTx, error) {
	if len(raw) < 1 {
		return decodedTx{}, ErrUnknownTxKind
	}
	kind, body := txKind(raw[0]), raw[1:]

	switch kind {
	case kindCreateWallet:
		tx := &txn.CreateWallet{}
		if err := tx.UnmarshalBinary(body); err != nil {
			return decodedTx{}, err
		}
		return decodedTx{kind: kind, createWallet: tx}, nil
	case kindTransfer:
		tx := &txn.Transfer{}
		if err := tx.UnmarshalBinary(body); err != nil {
			return decodedTx{}, err
		}
		return decodedTx{kind: kind, transfer: tx}, nil
	case kindAccept:
		tx := &txn.Accept{}
		if err := tx.UnmarshalBinary(body); err != nil {
			return decodedTx{}, err
		}
		return decodedTx{kind: kind, accept: tx}, nil
	default:
		return decodedTx{}, ErrUnknownTxKind
	}
}
