package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"store_engine/internal/domain"
)

// Ledger is the gorm-backed LedgerStore. Every balance change is one
// relative UPDATE so concurrent adjustments to the same account serialize
// inside the database, across processes.
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLedger creates a Ledger on the given database handle.
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, log: logger}
}

// Adjust applies balance = balance + delta in one statement and returns the
// new balance. It never checks sufficiency. The balance comes back via
// RETURNING, so each caller sees the value its own adjustment produced, not
// a later re-read that may already include other callers' writes.
func (l *Ledger) Adjust(ctx context.Context, accountID string, deltaCents int64) (int64, error) {
	var account domain.Account
	res := l.db.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance_cents"}}}).
		Where("id = ?", accountID).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents + ?", deltaCents))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrAccountNotFound
	}

	l.log.Debug("balance adjusted",
		zap.String("account_id", accountID),
		zap.Int64("delta_cents", deltaCents),
		zap.Int64("balance_cents", account.BalanceCents))
	return account.BalanceCents, nil
}

// AdjustIfSufficient applies the adjustment only where the resulting
// balance stays non-negative. The condition and the write are one
// statement; a zero row count with an existing account means the condition
// failed.
func (l *Ledger) AdjustIfSufficient(ctx context.Context, accountID string, deltaCents int64) (int64, bool, error) {
	var account domain.Account
	res := l.db.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance_cents"}}}).
		Where("id = ? AND balance_cents + ? >= 0", accountID, deltaCents).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents + ?", deltaCents))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Rejected condition or unknown account; the re-read tells which.
		balance, err := l.Balance(ctx, accountID)
		if err != nil {
			return 0, false, err
		}
		return balance, false, nil
	}

	return account.BalanceCents, true, nil
}

// Balance reads the current balance.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int64, error) {
	var account domain.Account
	err := l.db.WithContext(ctx).Select("balance_cents").First(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return account.BalanceCents, nil
}
