package txn

import "errors"

// Stateless verification errors.
var (
	ErrInvalidSignature     = errors.New("txn: invalid signature")
	ErrSelfTransfer         = errors.New("txn: sender and receiver are the same key")
	ErrZeroHistoryLen       = errors.New("txn: history_len must be positive")
	ErrInvalidRollbackDelay = errors.New("txn: rollback_delay out of bounds")
	ErrInvalidAmountProof   = errors.New("txn: amount proof does not verify")
)

// Stateful execution errors, named to match the ledger's typed error
// surface (§4.2, §7).
var (
	ErrWalletExists         = errors.New("txn: wallet already exists")
	ErrUnregisteredSender   = errors.New("txn: sender has no wallet")
	ErrUnregisteredReceiver = errors.New("txn: receiver has no wallet")
	ErrIncorrectProof       = errors.New("txn: sufficient-balance proof does not verify")
	ErrOutdatedHistory      = errors.New("txn: sender unaware of a prior outgoing transfer")
	ErrInvalidHistoryRef    = errors.New("txn: referenced history index has no past balance")
	ErrUnknownTransfer      = errors.New("txn: transfer is not known or not pending")
	ErrUnauthorizedAccept   = errors.New("txn: accept receiver does not match transfer")
)
