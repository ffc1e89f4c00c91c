package quota

import (
	"errors"
	"fmt"

	"github.com/mkucukkoc/aiorealbackend/quser"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/usage"
	"github.com/mkucukkoc/aiorealbackend/wallet"
	"github.com/mkucukkoc/aiorealbackend/webhook"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("quota: not found")
	ErrAlreadyExists = errors.New("quota: already exists")
	ErrInvalidInput  = errors.New("quota: invalid input")

	// Plan errors
	ErrPlanNotFound = errors.New("quota: plan not found")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("quota: subscription not found")

	// Wallet errors
	ErrWalletNotFound = errors.New("quota: wallet not found")
	ErrNoActiveWallet = errors.New("quota: no active wallet")
	ErrWalletClosed   = errors.New("quota: wallet is closed")
	ErrMultipleActive = errors.New("quota: more than one active wallet for user")

	// Usage Ledger errors
	ErrQuotaExceeded       = errors.New("quota: quota exceeded")
	ErrInvalidAmount       = errors.New("quota: usage amount must be >= 1")
	ErrReservationNotFound = errors.New("quota: reservation not found")
	ErrAlreadyCommitted    = errors.New("quota: reservation already committed")
	ErrAlreadyRolledBack   = errors.New("quota: reservation already rolled back")
	ErrDuplicateRequest    = errors.New("quota: duplicate request id")

	// Webhook errors
	ErrDuplicateEvent    = errors.New("quota: duplicate webhook event")
	ErrUnknownEventType  = errors.New("quota: unrecognized billing event type")
	ErrWebhookValidation = errors.New("quota: webhook payload failed validation")

	// Store errors
	ErrStoreNotReady     = errors.New("quota: store not ready")
	ErrTransactionFailed = errors.New("quota: transaction failed")

	// Cache errors
	ErrCacheMiss = errors.New("quota: cache miss")
)

// ValidationError represents a validation failure with details, surfaced at
// the inbound boundary (billing event payloads, reserve requests).
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("quota: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors collected during a single
// validation pass.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "quota: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("quota: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error, or nil if there are none.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if err is any of this package's not-found errors,
// or one of the subpackage sentinels that signal the same thing. Root
// errors.go is the only place that can check across subpackages: quser,
// subscription, wallet, and usage each define their own sentinels to avoid
// importing this package back (see DESIGN.md).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, subscription.ErrNotFound) ||
		errors.Is(err, wallet.ErrNotFound)
}

// IsQuotaError returns true if err represents quota exhaustion or a missing
// wallet, which are normal outcomes callers should handle, not exceptional
// failures.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrNoActiveWallet) ||
		errors.Is(err, wallet.ErrNoActiveWallet)
}

// IsRetryable returns true if err is transient and the caller may retry the
// whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, store.ErrConflict)
}

// IsInvalidInput returns true if err signals invalid caller input (an empty
// required field), across this package and the subpackages that validate
// their own inputs.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, quser.ErrInvalidInput) ||
		errors.Is(err, subscription.ErrInvalidInput) ||
		errors.Is(err, wallet.ErrInvalidInput) ||
		errors.Is(err, usage.ErrInvalidInput) ||
		errors.Is(err, webhook.ErrInvalidInput)
}
