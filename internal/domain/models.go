package domain

import "time"

// Transaction lifecycle states. Transitions only ever go pending -> approved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Account represents one end user of the storefront. The balance is only
// ever changed through the LedgerStore's atomic adjustments; nothing else
// writes it.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ExternalRef  string    `json:"external_ref" gorm:"uniqueIndex"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	BalanceCents int64     `json:"balance_cents"`
	Banned       bool      `json:"banned"`
	CreatedAt    time.Time `json:"created_at"`
}

// PaymentTransaction is one charge attempt at the payment gateway.
// ExternalID is the gateway's payment identifier and is unique; ApprovedAt
// is set exactly once, atomically with the pending -> approved flip.
type PaymentTransaction struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	AccountID   string     `json:"account_id" gorm:"index"`
	ExternalID  string     `json:"external_id" gorm:"uniqueIndex"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	RawPayload  []byte     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// Product is a catalog entry. Retiring a product means clearing Active.
type Product struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Credential is one sellable unit of access under a product. Once Claimed
// it is never handed out again; Release exists only as the purchase
// coordinator's compensating path for a rejected debit.
type Credential struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ProductID string    `json:"product_id" gorm:"index"`
	Login     string    `json:"login"`
	Secret    string    `json:"secret"`
	Claimed   bool      `json:"claimed"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleRecord is an append-only audit row. The engine writes it and never
// reads it back.
type SaleRecord struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	AccountID   string    `json:"account_id" gorm:"index"`
	ProductID   string    `json:"product_id"`
	AmountCents int64     `json:"amount_cents"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Operator is an actor allowed to run privileged actions. Level 1 covers
// support actions, level 2 covers catalog, inventory and settlement actions.
type Operator struct {
	ActorID   string    `json:"actor_id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// SalesReport aggregates approved transactions over a period.
type SalesReport struct {
	Count      int64 `json:"count"`
	TotalCents int64 `json:"total_cents"`
}
