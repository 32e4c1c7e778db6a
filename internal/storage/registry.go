package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"store_engine/internal/domain"
)

// Registry is the gorm-backed TransactionRegistry. The pending -> approved
// flip is a single conditional UPDATE; the row count tells whether this
// call performed it.
type Registry struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRegistry creates a Registry on the given database handle.
func NewRegistry(db *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{db: db, log: logger}
}

// Create inserts a pending transaction for the gateway payment id.
func (r *Registry) Create(ctx context.Context, accountID, externalID string, amountCents int64, description string, payload []byte) (*domain.PaymentTransaction, error) {
	tx := &domain.PaymentTransaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ExternalID:  externalID,
		AmountCents: amountCents,
		Status:      domain.StatusPending,
		Description: description,
		RawPayload:  payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateExternalID
		}
		return nil, err
	}
	r.log.Info("transaction recorded",
		zap.String("external_id", externalID),
		zap.String("account_id", accountID),
		zap.Int64("amount_cents", amountCents))
	return tx, nil
}

// TryApprove flips pending -> approved and stamps the approval time in one
// conditional UPDATE. Exactly one of any number of racing callers observes
// ApprovalApproved.
func (r *Registry) TryApprove(ctx context.Context, externalID string) (domain.ApprovalOutcome, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("external_id = ? AND status = ?", externalID, domain.StatusPending).
		Updates(map[string]interface{}{"status": domain.StatusApproved, "approved_at": now})
	if res.Error != nil {
		return domain.ApprovalOutcome{}, res.Error
	}

	if res.RowsAffected == 1 {
		tx, err := r.Lookup(ctx, externalID)
		if err != nil {
			return domain.ApprovalOutcome{}, err
		}
		return domain.ApprovalOutcome{Status: domain.ApprovalApproved, Transaction: tx}, nil
	}

	// Nothing flipped: either the transaction is unknown or someone else
	// already approved it.
	_, err := r.Lookup(ctx, externalID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return domain.ApprovalOutcome{Status: domain.ApprovalNotFound}, nil
	}
	if err != nil {
		return domain.ApprovalOutcome{}, err
	}
	return domain.ApprovalOutcome{Status: domain.ApprovalAlreadyApproved}, nil
}

// Lookup fetches a transaction by external id.
func (r *Registry) Lookup(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	var tx domain.PaymentTransaction
	err := r.db.WithContext(ctx).First(&tx, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// History lists an account's approved transactions, newest first.
func (r *Registry) History(ctx context.Context, accountID string, limit int) ([]*domain.PaymentTransaction, error) {
	var txs []*domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, domain.StatusApproved).
		Order("approved_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// Report aggregates approved transactions approved at or after since. The
// period start is computed by the caller so the query stays portable
// across dialects.
func (r *Registry) Report(ctx context.Context, since time.Time) (domain.SalesReport, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("status = ?", domain.StatusApproved)
	if !since.IsZero() {
		q = q.Where("approved_at >= ?", since)
	}

	var report domain.SalesReport
	err := q.Select("COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS total_cents").
		Scan(&report).Error
	if err != nil {
		return domain.SalesReport{}, err
	}
	return report, nil
}

// isUniqueViolation matches duplicate-key failures from both sqlite and
// postgres without importing either driver's error types here.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
