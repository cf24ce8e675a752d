package txn

import (
	"bytes"

	"github.com/certen/private-currency/pkg/enc"
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/certen/private-currency/pkg/rangeproof"
	"github.com/certen/private-currency/pkg/storage"
)

// MinTransferAmount is the smallest permitted transfer value; the amount
// proof demonstrates amount - MinTransferAmount >= 0.
const MinTransferAmount uint64 = 1

// RollbackDelayMin and RollbackDelayMax bound the half-open range
// [RollbackDelayMin, RollbackDelayMax) a Transfer's rollback_delay must fall
// within.
const (
	RollbackDelayMin uint32 = 5
	RollbackDelayMax uint32 = 1000
)

// Transfer moves Amount from From to To, with the sender proving in
// zero-knowledge that the amount meets the minimum and that its historical
// balance covers it.
type Transfer struct {
	From                   keys.PublicKey
	To                     keys.PublicKey
	RollbackDelay          uint32
	HistoryLen             uint64
	Amount                 pedersen.Commitment
	AmountProof            *rangeproof.Proof
	SufficientBalanceProof *rangeproof.Proof
	EncryptedData          enc.EncryptedData
	Signature              []byte

	// committedAt is the height at which this transfer's Execute ran; it is
	// set by the transaction store when indexing a committed transaction,
	// and used to recover the height at which the transfer's automatic
	// rollback was scheduled.
	committedAt uint64
}

// SetCommittedHeight records the height at which this transfer committed.
// Called by the transaction store immediately after Execute succeeds.
func (tx *Transfer) SetCommittedHeight(height uint64) {
	tx.committedAt = height
}

// CommittedHeight returns the height SetCommittedHeight last recorded.
func (tx *Transfer) CommittedHeight() uint64 {
	return tx.committedAt
}

func (tx *Transfer) signingPayload() []byte {
	amountBytes, _ := tx.Amount.Bytes()
	amountProofBytes, _ := tx.AmountProof.MarshalBinary()
	balanceProofBytes, _ := tx.SufficientBalanceProof.MarshalBinary()

	out := append([]byte("transfer"), tx.From[:]...)
	out = append(out, tx.To[:]...)
	out = append(out, uint32Bytes(tx.RollbackDelay)...)
	out = append(out, uint64Bytes(tx.HistoryLen)...)
	out = append(out, amountBytes[:]...)
	out = append(out, amountProofBytes...)
	out = append(out, balanceProofBytes...)
	out = append(out, tx.EncryptedData.Bytes()...)
	return out
}

// Hash identifies this transaction; Accept transactions reference transfers
// by this value.
func (tx *Transfer) Hash() merkle.Hash {
	return merkle.HashLeaf(append(tx.signingPayload(), tx.Signature...))
}

// Sign signs the transaction with sk, which must correspond to From.
func (tx *Transfer) Sign(sk keys.PrivateKey) {
	tx.Signature = keys.Sign(sk, tx.signingPayload())
}

// Verify checks everything that does not require ledger state: the
// signature, the from != to rule, history_len, rollback_delay bounds, and
// the amount proof.
func (tx *Transfer) Verify() error {
	if !keys.Verify(tx.From, tx.signingPayload(), tx.Signature) {
		return ErrInvalidSignature
	}
	if tx.From == tx.To {
		return ErrSelfTransfer
	}
	if tx.HistoryLen == 0 {
		return ErrZeroHistoryLen
	}
	if tx.RollbackDelay < RollbackDelayMin || tx.RollbackDelay >= RollbackDelayMax {
		return ErrInvalidRollbackDelay
	}

	minCommitment := pedersen.FromOpening(pedersen.WithNoBlinding(MinTransferAmount))
	target := tx.Amount.Sub(minCommitment)
	if tx.AmountProof == nil || !tx.AmountProof.Verify(target) {
		return ErrInvalidAmountProof
	}
	return nil
}

// Execute applies the transfer: debiting the sender against its historical
// balance reference and crediting the receiver's unaccepted set, scheduling
// automatic expiry at height+1+RollbackDelay.
func (tx *Transfer) Execute(schema storage.Schema, height uint64) error {
	sender, ok := schema.Wallet(tx.From)
	if !ok {
		return ErrUnregisteredSender
	}
	if _, ok := schema.Wallet(tx.To); !ok {
		return ErrUnregisteredReceiver
	}

	if sender.LastSendIndex+1 > tx.HistoryLen {
		return ErrOutdatedHistory
	}

	rawBalance, ok := schema.PastBalances(tx.From).Get(indexKeyOf(tx.HistoryLen - 1))
	if !ok {
		return ErrInvalidHistoryRef
	}
	pastBalance, err := pedersen.CommitmentFromBytes(rawBalance)
	if err != nil {
		return ErrInvalidHistoryRef
	}

	target := pastBalance.Sub(tx.Amount)
	if tx.SufficientBalanceProof == nil || !tx.SufficientBalanceProof.Verify(target) {
		return ErrIncorrectProof
	}

	txHash := tx.Hash()
	if err := schema.UpdateSender(sender, tx.Amount, txHash); err != nil {
		return err
	}

	expiryHeight := height + 1 + uint64(tx.RollbackDelay)
	if err := schema.AddUnacceptedPayment(tx.To, txHash, expiryHeight); err != nil {
		return err
	}
	return nil
}

func indexKeyOf(index uint64) []byte {
	return uint64Bytes(index)
}

// MarshalBinary encodes the transaction for ABCI tx bytes and block storage.
func (tx *Transfer) MarshalBinary() ([]byte, error) {
	amountBytes, err := tx.Amount.Bytes()
	if err != nil {
		return nil, err
	}
	amountProofBytes, err := tx.AmountProof.MarshalBinary()
	if err != nil {
		return nil, err
	}
	balanceProofBytes, err := tx.SufficientBalanceProof.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(tx.From[:])
	buf.Write(tx.To[:])
	buf.Write(uint32Bytes(tx.RollbackDelay))
	buf.Write(uint64Bytes(tx.HistoryLen))
	buf.Write(amountBytes[:])
	putBytes(&buf, amountProofBytes)
	putBytes(&buf, balanceProofBytes)
	putBytes(&buf, tx.EncryptedData.Bytes())
	putBytes(&buf, tx.Signature)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the form MarshalBinary produces.
func (tx *Transfer) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)

	from, err := readFixed(r, len(tx.From))
	if err != nil {
		return err
	}
	to, err := readFixed(r, len(tx.To))
	if err != nil {
		return err
	}
	delayBytes, err := readFixed(r, 4)
	if err != nil {
		return err
	}
	historyBytes, err := readFixed(r, 8)
	if err != nil {
		return err
	}
	amountBytes, err := readFixed(r, 32)
	if err != nil {
		return err
	}
	amountProofBytes, err := readBytes(r)
	if err != nil {
		return err
	}
	balanceProofBytes, err := readBytes(r)
	if err != nil {
		return err
	}
	encBytes, err := readBytes(r)
	if err != nil {
		return err
	}
	sig, err := readBytes(r)
	if err != nil {
		return err
	}

	amount, err := pedersen.CommitmentFromBytes(amountBytes)
	if err != nil {
		return err
	}
	amountProof := &rangeproof.Proof{}
	if err := amountProof.UnmarshalBinary(amountProofBytes); err != nil {
		return err
	}
	balanceProof := &rangeproof.Proof{}
	if err := balanceProof.UnmarshalBinary(balanceProofBytes); err != nil {
		return err
	}
	encData, _, err := enc.EncryptedDataFromBytes(encBytes)
	if err != nil {
		return err
	}

	copy(tx.From[:], from)
	copy(tx.To[:], to)
	tx.RollbackDelay = beUint32(delayBytes)
	tx.HistoryLen = beUint64(historyBytes)
	tx.Amount = amount
	tx.AmountProof = amountProof
	tx.SufficientBalanceProof = balanceProof
	tx.EncryptedData = encData
	tx.Signature = sig
	return nil
}
