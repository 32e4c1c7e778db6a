// Package settlement turns "payment reported as completed" signals into
// exactly one ledger credit per gateway payment id, no matter how many
// times or from how many sources the signal arrives.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"store_engine/internal/domain"
	"store_engine/internal/gateway"
)

// Gateway is the slice of the payment gateway the coordinator needs.
type Gateway interface {
	CreateCharge(ctx context.Context, amountCents int64, description, externalRef, notificationURL string) (*gateway.Charge, error)
	PaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// Notifier is told once per successful settlement so the messaging
// collaborator can inform the user. Firing is best-effort; a failure never
// rolls the settlement back.
type Notifier interface {
	PaymentSettled(ctx context.Context, account *domain.Account, tx *domain.PaymentTransaction) error
}

// Result describes what a settlement call did.
type Result struct {
	// Settled is true when this call performed the credit.
	Settled bool `json:"settled"`
	// AlreadyApproved is true when an earlier call had already settled the
	// transaction and this one was an idempotent no-op.
	AlreadyApproved bool `json:"already_approved"`
	// GatewayStatus is set when the gateway was consulted and did not
	// report the payment completed.
	GatewayStatus string `json:"gateway_status,omitempty"`
	// NewBalanceCents is the account balance after a performed credit.
	NewBalanceCents int64 `json:"new_balance_cents,omitempty"`

	Transaction *domain.PaymentTransaction `json:"transaction,omitempty"`
}

// ChargeInstructions is what the user needs to pay a freshly created
// charge.
type ChargeInstructions struct {
	ExternalID     string `json:"external_id"`
	AmountCents    int64  `json:"amount_cents"`
	Instructions   string `json:"instructions"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Service is the settlement coordinator.
type Service struct {
	ledger          domain.LedgerStore
	registry        domain.TransactionRegistry
	accounts        domain.AccountStore
	gateway         Gateway
	notifier        Notifier
	notificationURL string
	minChargeCents  int64
	log             *zap.Logger
}

// NewService wires the coordinator. notifier may be nil; minChargeCents of
// zero disables the minimum.
func NewService(ledger domain.LedgerStore, registry domain.TransactionRegistry, accounts domain.AccountStore, gw Gateway, notifier Notifier, notificationURL string, minChargeCents int64, logger *zap.Logger) *Service {
	return &Service{
		ledger:          ledger,
		registry:        registry,
		accounts:        accounts,
		gateway:         gw,
		notifier:        notifier,
		notificationURL: notificationURL,
		minChargeCents:  minChargeCents,
		log:             logger,
	}
}

// RequestCharge creates a charge at the gateway and records it as a pending
// transaction keyed by the gateway's payment id.
func (s *Service) RequestCharge(ctx context.Context, accountID string, amountCents int64, description string) (*ChargeInstructions, error) {
	if amountCents <= 0 || (s.minChargeCents > 0 && amountCents < s.minChargeCents) {
		return nil, fmt.Errorf("%w: minimum charge is %s", domain.ErrInvalidAmount, domain.FormatCents(s.minChargeCents))
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.CreateCharge(ctx, amountCents, description, account.ID, s.notificationURL)
	if err != nil {
		s.log.Error("charge creation failed",
			zap.String("account_id", accountID),
			zap.Int64("amount_cents", amountCents),
			zap.Error(err))
		return nil, err
	}

	if _, err := s.registry.Create(ctx, account.ID, charge.PaymentID, amountCents, description, charge.Raw); err != nil {
		// The charge exists at the gateway but we failed to record it; the
		// caller sees the error and the payment id stays in the log for
		// reconciliation.
		s.log.Error("failed to record pending transaction",
			zap.String("external_id", charge.PaymentID),
			zap.Error(err))
		return nil, err
	}

	return &ChargeInstructions{
		ExternalID:     charge.PaymentID,
		AmountCents:    amountCents,
		Instructions:   charge.QRCode,
		IdempotencyKey: charge.IdempotencyKey,
	}, nil
}

// ReportCompleted handles an inbound completion signal (webhook delivery,
// manual confirmation, polling reconciliation). It re-checks the payment
// with the gateway before settling, so a forged or premature signal cannot
// credit anything. Safe to invoke any number of times for the same id.
func (s *Service) ReportCompleted(ctx context.Context, externalID string) (*Result, error) {
	status, err := s.gateway.PaymentStatus(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if !gateway.IsCompleted(status) {
		s.log.Info("payment not completed at gateway, nothing to settle",
			zap.String("external_id", externalID),
			zap.String("status", status))
		return &Result{GatewayStatus: status}, nil
	}
	return s.Settle(ctx, externalID)
}

// Settle performs the idempotent crediting effect for one external payment
// id: at most one credit ever happens, and it happens on the call that wins
// the atomic approval.
func (s *Service) Settle(ctx context.Context, externalID string) (*Result, error) {
	outcome, err := s.registry.TryApprove(ctx, externalID)
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case domain.ApprovalNotFound:
		return nil, domain.ErrTransactionNotFound
	case domain.ApprovalAlreadyApproved:
		s.log.Info("settlement replay ignored", zap.String("external_id", externalID))
		return &Result{AlreadyApproved: true}, nil
	}

	tx := outcome.Transaction
	newBalance, err := s.ledger.Adjust(ctx, tx.AccountID, tx.AmountCents)
	if err != nil {
		// The approval is already durable. Re-approving is unsafe, so this
		// is escalated for manual reconciliation instead of retried.
		violation := &domain.ConsistencyViolationError{
			ExternalID:  tx.ExternalID,
			AccountID:   tx.AccountID,
			AmountCents: tx.AmountCents,
			Err:         err,
		}
		s.log.Error("approved transaction could not be credited",
			zap.String("external_id", tx.ExternalID),
			zap.String("account_id", tx.AccountID),
			zap.Int64("amount_cents", tx.AmountCents),
			zap.Error(err))
		return nil, violation
	}

	s.log.Info("payment settled",
		zap.String("external_id", tx.ExternalID),
		zap.String("account_id", tx.AccountID),
		zap.Int64("amount_cents", tx.AmountCents),
		zap.Int64("balance_cents", newBalance))

	s.notify(ctx, tx)

	return &Result{Settled: true, NewBalanceCents: newBalance, Transaction: tx}, nil
}

// notify fires the settlement hook once, best-effort.
func (s *Service) notify(ctx context.Context, tx *domain.PaymentTransaction) {
	if s.notifier == nil {
		return
	}
	account, err := s.accounts.Get(ctx, tx.AccountID)
	if err != nil {
		s.log.Warn("settlement notification skipped", zap.Error(err))
		return
	}
	if err := s.notifier.PaymentSettled(ctx, account, tx); err != nil {
		s.log.Warn("settlement notification failed",
			zap.String("external_id", tx.ExternalID),
			zap.Error(err))
	}
}

// IsConsistencyViolation reports whether err is the manual-reconciliation
// case.
func IsConsistencyViolation(err error) bool {
	var violation *domain.ConsistencyViolationError
	return errors.As(err, &violation)
}
