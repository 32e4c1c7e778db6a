// Package purchase exchanges balance for exactly one credential. The
// balance pre-check is only a gate; the debit itself is a conditional
// atomic adjustment, and a rejected debit releases the credential taken
// just before it. A buyer is never charged without receiving a credential
// and never receives one without being charged.
package purchase

import (
	"context"

	"go.uber.org/zap"

	"store_engine/internal/domain"
)

// Purchase is a successful exchange.
type Purchase struct {
	Product         *domain.Product    `json:"product"`
	Credential      *domain.Credential `json:"credential"`
	NewBalanceCents int64              `json:"new_balance_cents"`
}

// Service is the purchase coordinator.
type Service struct {
	ledger    domain.LedgerStore
	inventory domain.CredentialInventory
	catalog   domain.ProductCatalog
	sales     domain.SaleLog
	log       *zap.Logger
}

// NewService wires the coordinator.
func NewService(ledger domain.LedgerStore, inventory domain.CredentialInventory, catalog domain.ProductCatalog, sales domain.SaleLog, logger *zap.Logger) *Service {
	return &Service{
		ledger:    ledger,
		inventory: inventory,
		catalog:   catalog,
		sales:     sales,
		log:       logger,
	}
}

// Buy reserves a credential and debits the price as one logical unit, or
// fails cleanly leaving both untouched.
func (s *Service) Buy(ctx context.Context, accountID, productID string) (*Purchase, error) {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Gate only: the authoritative sufficiency decision is the conditional
	// debit below. This keeps an obviously broke buyer from consuming a
	// claim/release cycle.
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if balance < product.PriceCents {
		return nil, domain.ErrInsufficientFunds
	}

	credential, err := s.inventory.ClaimOne(ctx, productID)
	if err != nil {
		return nil, err
	}

	newBalance, applied, err := s.ledger.AdjustIfSufficient(ctx, accountID, -product.PriceCents)
	if err != nil {
		s.release(ctx, credential.ID)
		return nil, err
	}
	if !applied {
		// A concurrent purchase spent the balance between the gate and the
		// debit. Put the credential back and reject.
		s.release(ctx, credential.ID)
		return nil, domain.ErrInsufficientFunds
	}

	if err := s.sales.Append(ctx, accountID, productID, product.PriceCents, 1); err != nil {
		// Audit row only; the purchase stands.
		s.log.Error("failed to append sale record",
			zap.String("account_id", accountID),
			zap.String("product_id", productID),
			zap.Error(err))
	}

	s.log.Info("purchase completed",
		zap.String("account_id", accountID),
		zap.String("product_id", productID),
		zap.String("credential_id", credential.ID),
		zap.Int64("price_cents", product.PriceCents),
		zap.Int64("balance_cents", newBalance))

	return &Purchase{Product: product, Credential: credential, NewBalanceCents: newBalance}, nil
}

func (s *Service) release(ctx context.Context, credentialID string) {
	if err := s.inventory.Release(ctx, credentialID); err != nil {
		s.log.Error("failed to release credential after rejected debit",
			zap.String("credential_id", credentialID),
			zap.Error(err))
	}
}
