// Package secretstate implements the client-side object an account owner
// holds locally: signing and encryption keys, the perceived current balance
// opening, and history length. It produces signed transactions and updates
// itself from ledger events without ever exposing its balance on the wire.
package secretstate

import (
	"errors"

	"github.com/certen/private-currency/pkg/enc"
	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/certen/private-currency/pkg/rangeproof"
	"github.com/certen/private-currency/pkg/txn"
)

// Client-side precondition errors for CreateTransfer.
var (
	ErrAmountTooSmall     = errors.New("secretstate: amount below minimum transfer amount")
	ErrSelfTransfer       = errors.New("secretstate: cannot transfer to self")
	ErrInvalidDelay       = errors.New("secretstate: rollback_delay out of bounds")
	ErrInsufficientBalance = errors.New("secretstate: balance_opening does not cover amount")
)

// ErrUnrelatedTransfer is returned by Rollback when this state's public key
// is not the transfer's sender; Transfer panics with it when this state's
// key is neither the sender nor the receiver.
var ErrUnrelatedTransfer = errors.New("secretstate: transfer does not involve this account")

// WalletInfo is the public information a client can compare its local
// SecretState against, without learning anything the commitment hides.
type WalletInfo struct {
	PublicKey keys.PublicKey
	Balance   pedersen.Commitment
}

// SecretState is the mutable client-side object for one account.
type SecretState struct {
	signingKey    keys.PrivateKey
	verifyingKey  keys.PublicKey
	encryptionSK  enc.SecretKey
	balanceOpening pedersen.Opening
	historyLen    uint64
}

// New generates a fresh random keypair and returns an uninitialized state.
func New() (*SecretState, error) {
	pk, sk, err := keys.Generate()
	if err != nil {
		return nil, err
	}
	return FromKeypair(pk, sk), nil
}

// FromKeypair builds an uninitialized state around an existing keypair.
func FromKeypair(pk keys.PublicKey, sk keys.PrivateKey) *SecretState {
	_, encSK := enc.KeypairFromEd25519(pk, sk)
	return &SecretState{
		signingKey:     sk,
		verifyingKey:   pk,
		encryptionSK:   encSK,
		balanceOpening: pedersen.WithNoBlinding(0),
	}
}

// PublicKey returns the account's signing/verification key.
func (s *SecretState) PublicKey() keys.PublicKey {
	return s.verifyingKey
}

// Balance returns the perceived current balance.
func (s *SecretState) Balance() uint64 {
	return s.balanceOpening.Value
}

// HistoryLen returns the perceived current history length.
func (s *SecretState) HistoryLen() uint64 {
	return s.historyLen
}

// Initialize sets the balance opening to InitialBalance with zero blinding
// and history_len to 1. It must be called exactly once, after this
// account's CreateWallet transaction has committed.
func (s *SecretState) Initialize(initialBalance uint64) {
	s.balanceOpening = pedersen.WithNoBlinding(initialBalance)
	s.historyLen = 1
}

// CreateWallet builds a signed CreateWallet transaction for this account.
func (s *SecretState) CreateWallet() *txn.CreateWallet {
	tx := &txn.CreateWallet{Key: s.verifyingKey}
	tx.Sign(s.signingKey)
	return tx
}

// CreateTransfer builds a signed Transfer moving amount to receiver, using
// the current balance_opening and history_len. It enforces the client-side
// preconditions before spending a range proof on an invalid request.
func (s *SecretState) CreateTransfer(amount uint64, receiver keys.PublicKey, rollbackDelay uint32) (*txn.Transfer, error) {
	if amount < txn.MinTransferAmount {
		return nil, ErrAmountTooSmall
	}
	if s.verifyingKey == receiver {
		return nil, ErrSelfTransfer
	}
	if rollbackDelay < txn.RollbackDelayMin || rollbackDelay >= txn.RollbackDelayMax {
		return nil, ErrInvalidDelay
	}
	if s.balanceOpening.Value < amount {
		return nil, ErrInsufficientBalance
	}

	committedAmount, opening := pedersen.New(amount)

	amountDiff, err := opening.Sub(pedersen.WithNoBlinding(txn.MinTransferAmount))
	if err != nil {
		return nil, err
	}
	amountProof, err := rangeproof.Prove(amountDiff)
	if err != nil {
		return nil, err
	}

	remainingBalance, err := s.balanceOpening.Sub(opening)
	if err != nil {
		return nil, err
	}
	sufficientProof, err := rangeproof.Prove(remainingBalance)
	if err != nil {
		return nil, err
	}

	openingBytes, err := opening.Bytes()
	if err != nil {
		return nil, err
	}
	receiverEncPK := enc.PublicKeyFromEd25519(receiver)
	sealed, err := enc.Seal(openingBytes[:], receiverEncPK, s.encryptionSK)
	if err != nil {
		return nil, err
	}

	tx := &txn.Transfer{
		From:                   s.verifyingKey,
		To:                     receiver,
		RollbackDelay:          rollbackDelay,
		HistoryLen:             s.historyLen,
		Amount:                 committedAmount,
		AmountProof:            amountProof,
		SufficientBalanceProof: sufficientProof,
		EncryptedData:          sealed,
	}
	tx.Sign(s.signingKey)
	return tx, nil
}

// VerifiedTransfer is the result of successfully decrypting an incoming
// transfer addressed to this account.
type VerifiedTransfer struct {
	Opening pedersen.Opening
	Accept  *txn.Accept
}

// Value returns the decrypted transfer amount.
func (v VerifiedTransfer) Value() uint64 {
	return v.Opening.Value
}

// VerifyTransfer decrypts an incoming transfer addressed to this account and
// produces the Accept transaction crediting it, or false if t is not
// addressed here or cannot be decrypted.
func (s *SecretState) VerifyTransfer(t *txn.Transfer) (VerifiedTransfer, bool) {
	if t.To != s.verifyingKey {
		return VerifiedTransfer{}, false
	}
	senderEncPK := enc.PublicKeyFromEd25519(t.From)
	raw, err := t.EncryptedData.Open(senderEncPK, s.encryptionSK)
	if err != nil {
		return VerifiedTransfer{}, false
	}
	opening, err := pedersen.OpeningFromBytes(raw)
	if err != nil {
		return VerifiedTransfer{}, false
	}
	accept := &txn.Accept{Receiver: s.verifyingKey, TransferID: t.Hash()}
	accept.Sign(s.signingKey)
	return VerifiedTransfer{Opening: opening, Accept: accept}, true
}

// Transfer applies a committed transfer to this account's local state: if
// self is the sender, decrypts its own ciphertext and subtracts; if self is
// the receiver, decrypts and adds. Either way history_len is incremented.
// Panics with ErrUnrelatedTransfer if t does not involve this account,
// which indicates a caller bug.
func (s *SecretState) Transfer(t *txn.Transfer) error {
	switch s.verifyingKey {
	case t.From:
		receiverEncPK := enc.PublicKeyFromEd25519(t.To)
		raw, err := t.EncryptedData.OpenAsSender(receiverEncPK, s.encryptionSK)
		if err != nil {
			return err
		}
		opening, err := pedersen.OpeningFromBytes(raw)
		if err != nil {
			return err
		}
		s.balanceOpening, err = s.balanceOpening.Sub(opening)
		if err != nil {
			return err
		}
	case t.To:
		senderEncPK := enc.PublicKeyFromEd25519(t.From)
		raw, err := t.EncryptedData.Open(senderEncPK, s.encryptionSK)
		if err != nil {
			return err
		}
		opening, err := pedersen.OpeningFromBytes(raw)
		if err != nil {
			return err
		}
		s.balanceOpening, err = s.balanceOpening.Add(opening)
		if err != nil {
			return err
		}
	default:
		panic(ErrUnrelatedTransfer)
	}
	s.historyLen++
	return nil
}

// Rollback applies a refund for a transfer this account sent but which was
// rolled back before acceptance.
func (s *SecretState) Rollback(t *txn.Transfer) error {
	if s.verifyingKey != t.From {
		return ErrUnrelatedTransfer
	}
	receiverEncPK := enc.PublicKeyFromEd25519(t.To)
	raw, err := t.EncryptedData.OpenAsSender(receiverEncPK, s.encryptionSK)
	if err != nil {
		return err
	}
	opening, err := pedersen.OpeningFromBytes(raw)
	if err != nil {
		return err
	}
	s.balanceOpening, err = s.balanceOpening.Add(opening)
	if err != nil {
		return err
	}
	s.historyLen++
	return nil
}

// CorrespondsTo reports whether info's public key and balance commitment
// match this account's local state.
func (s *SecretState) CorrespondsTo(info WalletInfo) bool {
	return info.PublicKey == s.verifyingKey && info.Balance.Verify(s.balanceOpening)
}

// ToPublic produces the public WalletInfo for this account's current state.
func (s *SecretState) ToPublic() WalletInfo {
	return WalletInfo{
		PublicKey: s.verifyingKey,
		Balance:   pedersen.FromOpening(s.balanceOpening),
	}
}

// MarshalBinary encodes the full local state (signing key, balance opening,
// history length) so a client can persist it between CLI invocations. The
// encryption key is not stored since it is always rederived from the
// signing keypair.
func (s *SecretState) MarshalBinary() ([]byte, error) {
	openingBytes, err := s.balanceOpening.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(s.signingKey)+8+len(openingBytes))
	out = append(out, s.signingKey[:]...)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(s.historyLen >> (56 - 8*i))
	}
	out = append(out, buf[:]...)
	out = append(out, openingBytes[:]...)
	return out, nil
}

// UnmarshalBinary decodes a SecretState previously written by MarshalBinary,
// rederiving the verifying key and encryption key from the signing key.
func (s *SecretState) UnmarshalBinary(b []byte) error {
	const skLen = len(keys.PrivateKey{})
	const want = skLen + 8 + 40
	if len(b) != want {
		return errors.New("secretstate: corrupt wallet file")
	}
	var sk keys.PrivateKey
	copy(sk[:], b[:skLen])
	pub := sk.Public()

	var historyLen uint64
	for i := 0; i < 8; i++ {
		historyLen = historyLen<<8 | uint64(b[skLen+i])
	}
	opening, err := pedersen.OpeningFromBytes(b[skLen+8:])
	if err != nil {
		return err
	}

	*s = *FromKeypair(pub, sk)
	s.historyLen = historyLen
	s.balanceOpening = opening
	return nil
}
