package wallet

import "errors"

var (
	// ErrInvalidInput is returned when a required field is missing.
	ErrInvalidInput = errors.New("wallet: invalid input")
	// ErrNotFound names a missing wallet document. Manager's methods do not
	// return it: a user with no active wallet is ErrNoActiveWallet, and
	// store reads report a missing document as store.ErrNotFound.
	ErrNotFound = errors.New("wallet: not found")
	// ErrNoActiveWallet is returned when a user has no wallet with status active.
	ErrNoActiveWallet = errors.New("wallet: no active wallet")
)
