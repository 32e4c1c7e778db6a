package domain

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when no account exists for the given id.
var ErrAccountNotFound = errors.New("account not found")

// ErrTransactionNotFound is returned when no transaction exists for the
// given external payment id.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrProductNotFound is returned for a missing or inactive product.
var ErrProductNotFound = errors.New("product not found")

// ErrCredentialNotFound is returned when releasing an unknown credential.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrDuplicateExternalID is returned when a transaction already exists for
// the gateway payment id.
var ErrDuplicateExternalID = errors.New("duplicate external payment id")

// ErrOutOfStock is returned when a product has no unclaimed credentials
// left. An expected business outcome, never retried automatically.
var ErrOutOfStock = errors.New("product out of stock")

// ErrInsufficientFunds is returned when the balance cannot cover the price.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvalidAmount is returned for zero, negative or malformed amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrExternalService wraps failures talking to the payment gateway. The
// read-only status check is safe to retry; charge creation is not without
// its idempotency key.
var ErrExternalService = errors.New("payment gateway error")

// ConsistencyViolationError reports an approved transaction whose credit
// failed afterwards. The approval is already durable, so this is never
// auto-corrected; it carries the full transaction identity for manual
// reconciliation.
type ConsistencyViolationError struct {
	ExternalID  string
	AccountID   string
	AmountCents int64
	Err         error
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation: transaction %s approved but credit of %d cents to account %s failed: %v",
		e.ExternalID, e.AmountCents, e.AccountID, e.Err)
}

func (e *ConsistencyViolationError) Unwrap() error { return e.Err }
