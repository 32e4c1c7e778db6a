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

// Accounts is the gorm-backed AccountStore.
type Accounts struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAccounts creates an Accounts store on the given database handle.
func NewAccounts(db *gorm.DB, logger *zap.Logger) *Accounts {
	return &Accounts{db: db, log: logger}
}

// Ensure creates the account on first contact or refreshes non-empty
// display fields on a later one. A create racing another Ensure for the
// same external ref loses on the unique index and falls back to the
// existing row.
func (a *Accounts) Ensure(ctx context.Context, externalRef, username, firstName, lastName string) (*domain.Account, error) {
	account, err := a.GetByRef(ctx, externalRef)
	if errors.Is(err, domain.ErrAccountNotFound) {
		account = &domain.Account{
			ID:          uuid.NewString(),
			ExternalRef: externalRef,
			Username:    username,
			FirstName:   firstName,
			LastName:    lastName,
			CreatedAt:   time.Now().UTC(),
		}
		createErr := a.db.WithContext(ctx).Create(account).Error
		if createErr == nil {
			a.log.Info("account created", zap.String("external_ref", externalRef))
			return account, nil
		}
		if !isUniqueViolation(createErr) {
			return nil, createErr
		}
		account, err = a.GetByRef(ctx, externalRef)
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if username != "" {
		updates["username"] = username
	}
	if firstName != "" {
		updates["first_name"] = firstName
	}
	if lastName != "" {
		updates["last_name"] = lastName
	}
	if len(updates) > 0 {
		if err := a.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return account, nil
}

// Get fetches an account by internal id.
func (a *Accounts) Get(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	err := a.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByRef fetches an account by its external reference.
func (a *Accounts) GetByRef(ctx context.Context, externalRef string) (*domain.Account, error) {
	var account domain.Account
	err := a.db.WithContext(ctx).First(&account, "external_ref = ?", externalRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SetBanned flips the banned flag.
func (a *Accounts) SetBanned(ctx context.Context, id string, banned bool) error {
	res := a.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		UpdateColumn("banned", banned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Catalog is the gorm-backed ProductCatalog.
type Catalog struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCatalog creates a Catalog on the given database handle.
func NewCatalog(db *gorm.DB, logger *zap.Logger) *Catalog {
	return &Catalog{db: db, log: logger}
}

// Add inserts an active product.
func (c *Catalog) Add(ctx context.Context, name string, priceCents int64) (*domain.Product, error) {
	if priceCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	product := &domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		PriceCents: priceCents,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// List returns the active products.
func (c *Catalog) List(ctx context.Context) ([]*domain.Product, error) {
	var products []*domain.Product
	err := c.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Get fetches an active product; retired or unknown ids are not found.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := c.db.WithContext(ctx).First(&product, "id = ? AND active = ?", id, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Sales is the gorm-backed append-only SaleLog.
type Sales struct {
	db *gorm.DB
}

// NewSales creates a Sales log on the given database handle.
func NewSales(db *gorm.DB) *Sales {
	return &Sales{db: db}
}

// Append writes one audit row.
func (s *Sales) Append(ctx context.Context, accountID, productID string, amountCents int64, quantity int) error {
	record := &domain.SaleRecord{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProductID:   productID,
		AmountCents: amountCents,
		Quantity:    quantity,
		CreatedAt:   time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// Operators is the gorm-backed Authorizer: an actor is authorized when its
// stored level meets the required one. Credential material lives with the
// collaborator, not here.
type Operators struct {
	db *gorm.DB
}

// NewOperators creates an Operators store on the given database handle.
func NewOperators(db *gorm.DB) *Operators {
	return &Operators{db: db}
}

// Upsert registers or updates an operator.
func (o *Operators) Upsert(ctx context.Context, actorID, name string, level int) error {
	op := &domain.Operator{ActorID: actorID, Name: name, Level: level, CreatedAt: time.Now().UTC()}
	err := o.db.WithContext(ctx).Save(op).Error
	return err
}

// IsAuthorized reports whether the actor's level meets minLevel.
func (o *Operators) IsAuthorized(ctx context.Context, actorID string, minLevel int) (bool, error) {
	var op domain.Operator
	err := o.db.WithContext(ctx).First(&op, "actor_id = ?", actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return op.Level >= minLevel, nil
}
