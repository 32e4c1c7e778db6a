package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"store_engine/internal/domain"
)

// Inventory is the gorm-backed CredentialInventory. Claiming is a
// compare-and-set loop: pick the oldest unclaimed credential, then flip
// claimed with the unclaimed state as the UPDATE's own condition. A lost
// race moves on to the next candidate; an empty pool is out of stock.
type Inventory struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewInventory creates an Inventory on the given database handle.
func NewInventory(db *gorm.DB, logger *zap.Logger) *Inventory {
	return &Inventory{db: db, log: logger}
}

// ClaimOne atomically takes one unclaimed credential for the product.
// No credential is ever returned to two callers.
func (i *Inventory) ClaimOne(ctx context.Context, productID string) (*domain.Credential, error) {
	for {
		var cred domain.Credential
		err := i.db.WithContext(ctx).
			Where("product_id = ? AND claimed = ?", productID, false).
			Order("created_at, id").
			First(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOutOfStock
		}
		if err != nil {
			return nil, err
		}

		res := i.db.WithContext(ctx).
			Model(&domain.Credential{}).
			Where("id = ? AND claimed = ?", cred.ID, false).
			UpdateColumn("claimed", true)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			cred.Claimed = true
			i.log.Info("credential claimed",
				zap.String("credential_id", cred.ID),
				zap.String("product_id", productID))
			return &cred, nil
		}
		// Another claimer won this candidate; try the next one.
	}
}

// Release unclaims a credential. Compensating path only.
func (i *Inventory) Release(ctx context.Context, credentialID string) error {
	res := i.db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", credentialID).
		UpdateColumn("claimed", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCredentialNotFound
	}
	i.log.Warn("credential released back to inventory", zap.String("credential_id", credentialID))
	return nil
}

// Add inserts a fresh credential for the product.
func (i *Inventory) Add(ctx context.Context, productID, login, secret string) (*domain.Credential, error) {
	cred := &domain.Credential{
		ID:        uuid.NewString(),
		ProductID: productID,
		Login:     login,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := i.db.WithContext(ctx).Create(cred).Error; err != nil {
		return nil, err
	}
	return cred, nil
}

// CountAvailable reports the remaining unclaimed credentials.
func (i *Inventory) CountAvailable(ctx context.Context, productID string) (int64, error) {
	var n int64
	err := i.db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("product_id = ? AND claimed = ?", productID, false).
		Count(&n).Error
	return n, err
}
