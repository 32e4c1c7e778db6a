package domain

import (
	"context"
	"time"
)

// ApprovalStatus says what TryApprove did for this particular call.
type ApprovalStatus int

const (
	// ApprovalApproved means this call performed the pending -> approved
	// transition.
	ApprovalApproved ApprovalStatus = iota
	// ApprovalAlreadyApproved means some earlier call already transitioned
	// the transaction.
	ApprovalAlreadyApproved
	// ApprovalNotFound means no transaction exists for the external id.
	ApprovalNotFound
)

// ApprovalOutcome is the result of the atomic approval primitive.
// Transaction is populated only when Status is ApprovalApproved.
type ApprovalOutcome struct {
	Status      ApprovalStatus
	Transaction *PaymentTransaction
}

// LedgerStore holds per-account balances. Both adjustments are single
// atomic statements against the store; callers never read-modify-write a
// balance themselves.
type LedgerStore interface {
	// Adjust applies an unconditional relative adjustment and returns the
	// new balance. It never validates sufficiency; that policy belongs to
	// the caller. Fails with ErrAccountNotFound for unknown accounts.
	Adjust(ctx context.Context, accountID string, deltaCents int64) (int64, error)

	// AdjustIfSufficient applies the adjustment only if the resulting
	// balance would stay non-negative, reporting whether it applied.
	AdjustIfSufficient(ctx context.Context, accountID string, deltaCents int64) (newBalance int64, applied bool, err error)

	// Balance reads the current balance.
	Balance(ctx context.Context, accountID string) (int64, error)
}

// TransactionRegistry records every gateway payment attempt, keyed by the
// gateway's external payment id.
type TransactionRegistry interface {
	// Create inserts a pending transaction. The external id is unique;
	// a duplicate fails with ErrDuplicateExternalID.
	Create(ctx context.Context, accountID, externalID string, amountCents int64, description string, payload []byte) (*PaymentTransaction, error)

	// TryApprove atomically flips pending -> approved and stamps the
	// approval time, reporting whether this call did the flip. Two callers
	// racing on the same external id see exactly one ApprovalApproved.
	TryApprove(ctx context.Context, externalID string) (ApprovalOutcome, error)

	// Lookup fetches a transaction by external id.
	Lookup(ctx context.Context, externalID string) (*PaymentTransaction, error)

	// History lists an account's approved transactions, newest first.
	History(ctx context.Context, accountID string, limit int) ([]*PaymentTransaction, error)

	// Report aggregates approved transactions with an approval time at or
	// after since. A zero since covers everything.
	Report(ctx context.Context, since time.Time) (SalesReport, error)
}

// CredentialInventory is the pool of single-use credentials per product.
type CredentialInventory interface {
	// ClaimOne atomically selects one unclaimed credential for the product
	// and marks it claimed. Concurrent callers each get a distinct
	// credential; an exhausted pool fails with ErrOutOfStock.
	ClaimOne(ctx context.Context, productID string) (*Credential, error)

	// Release puts a claimed credential back. Only the purchase
	// coordinator's rejected-debit path uses this.
	Release(ctx context.Context, credentialID string) error

	// Add inserts a fresh credential. Operator-facing pure insert.
	Add(ctx context.Context, productID, login, secret string) (*Credential, error)

	// CountAvailable reports how many unclaimed credentials remain.
	CountAvailable(ctx context.Context, productID string) (int64, error)
}

// AccountStore manages account identity and display metadata. Balances are
// the LedgerStore's business.
type AccountStore interface {
	// Ensure creates the account on first contact (with a zero balance) or
	// refreshes non-empty display fields on a later one.
	Ensure(ctx context.Context, externalRef, username, firstName, lastName string) (*Account, error)

	Get(ctx context.Context, id string) (*Account, error)
	GetByRef(ctx context.Context, externalRef string) (*Account, error)

	// SetBanned flips the orthogonal banned flag; the engine stores it but
	// does not enforce it.
	SetBanned(ctx context.Context, id string, banned bool) error
}

// ProductCatalog is the read side the purchase coordinator needs plus the
// operator-facing insert.
type ProductCatalog interface {
	Add(ctx context.Context, name string, priceCents int64) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
}

// SaleLog appends audit rows. Write-only from the engine's perspective.
type SaleLog interface {
	Append(ctx context.Context, accountID, productID string, amountCents int64, quantity int) error
}

// Authorizer is the capability check supplied to privileged routes. How
// operators authenticate is the collaborator's concern, not the engine's.
type Authorizer interface {
	IsAuthorized(ctx context.Context, actorID string, minLevel int) (bool, error)
}
