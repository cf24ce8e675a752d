package storage

import "errors"

var (
	// ErrWalletExists is returned by CreateWallet when the key is already
	// registered.
	ErrWalletExists = errors.New("storage: wallet already exists")
	// ErrUnregisteredReceiver is returned when crediting a transfer to a
	// public key with no wallet.
	ErrUnregisteredReceiver = errors.New("storage: receiver has no wallet")
	// ErrUnknownTransfer is returned when accepting a transfer hash absent
	// from the receiver's unaccepted set.
	ErrUnknownTransfer = errors.New("storage: transfer is not pending acceptance")
	// ErrCorruptWallet is returned when a stored wallet value cannot be
	// decoded.
	ErrCorruptWallet = errors.New("storage: corrupt wallet record")
	// ErrCorruptEvent is returned when a stored history event cannot be
	// decoded.
	ErrCorruptEvent = errors.New("storage: corrupt history event")
)
