package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"store_engine/internal/domain"
)

// Memory is an in-memory implementation of every store interface, guarded
// by one mutex so the atomic primitives keep their semantics. It backs unit
// tests and the "memory" database driver for local runs; production runs go
// through the gorm stores.
type Memory struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	refs         map[string]string // external ref -> account id
	transactions map[string]*domain.PaymentTransaction // keyed by external id
	credentials  map[string]*domain.Credential
	products     map[string]*domain.Product
	sales        []*domain.SaleRecord
	operators    map[string]*domain.Operator
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:     map[string]*domain.Account{},
		refs:         map[string]string{},
		transactions: map[string]*domain.PaymentTransaction{},
		credentials:  map[string]*domain.Credential{},
		products:     map[string]*domain.Product{},
		operators:    map[string]*domain.Operator{},
	}
}

// --- LedgerStore ---

func (m *Memory) Adjust(ctx context.Context, accountID string, deltaCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	account.BalanceCents += deltaCents
	return account.BalanceCents, nil
}

func (m *Memory) AdjustIfSufficient(ctx context.Context, accountID string, deltaCents int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, false, domain.ErrAccountNotFound
	}
	if account.BalanceCents+deltaCents < 0 {
		return account.BalanceCents, false, nil
	}
	account.BalanceCents += deltaCents
	return account.BalanceCents, true, nil
}

func (m *Memory) Balance(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return account.BalanceCents, nil
}

// --- TransactionRegistry ---

func (m *Memory) Create(ctx context.Context, accountID, externalID string, amountCents int64, description string, payload []byte) (*domain.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transactions[externalID]; exists {
		return nil, domain.ErrDuplicateExternalID
	}
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
	m.transactions[externalID] = tx
	copied := *tx
	return &copied, nil
}

func (m *Memory) TryApprove(ctx context.Context, externalID string) (domain.ApprovalOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[externalID]
	if !ok {
		return domain.ApprovalOutcome{Status: domain.ApprovalNotFound}, nil
	}
	if tx.Status != domain.StatusPending {
		return domain.ApprovalOutcome{Status: domain.ApprovalAlreadyApproved}, nil
	}
	now := time.Now().UTC()
	tx.Status = domain.StatusApproved
	tx.ApprovedAt = &now
	copied := *tx
	return domain.ApprovalOutcome{Status: domain.ApprovalApproved, Transaction: &copied}, nil
}

func (m *Memory) Lookup(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[externalID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (m *Memory) History(ctx context.Context, accountID string, limit int) ([]*domain.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*domain.PaymentTransaction
	for _, tx := range m.transactions {
		if tx.AccountID == accountID && tx.Status == domain.StatusApproved {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(a, b int) bool {
		return txs[a].ApprovedAt.After(*txs[b].ApprovedAt)
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *Memory) Report(ctx context.Context, since time.Time) (domain.SalesReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var report domain.SalesReport
	for _, tx := range m.transactions {
		if tx.Status != domain.StatusApproved {
			continue
		}
		if !since.IsZero() && tx.ApprovedAt.Before(since) {
			continue
		}
		report.Count++
		report.TotalCents += tx.AmountCents
	}
	return report, nil
}

// --- CredentialInventory ---

func (m *Memory) ClaimOne(ctx context.Context, productID string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *domain.Credential
	for _, cred := range m.credentials {
		if cred.ProductID != productID || cred.Claimed {
			continue
		}
		if oldest == nil || cred.CreatedAt.Before(oldest.CreatedAt) {
			oldest = cred
		}
	}
	if oldest == nil {
		return nil, domain.ErrOutOfStock
	}
	oldest.Claimed = true
	copied := *oldest
	return &copied, nil
}

func (m *Memory) Release(ctx context.Context, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[credentialID]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	cred.Claimed = false
	return nil
}

func (m *Memory) Add(ctx context.Context, productID, login, secret string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred := &domain.Credential{
		ID:        uuid.NewString(),
		ProductID: productID,
		Login:     login,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	m.credentials[cred.ID] = cred
	copied := *cred
	return &copied, nil
}

func (m *Memory) CountAvailable(ctx context.Context, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cred := range m.credentials {
		if cred.ProductID == productID && !cred.Claimed {
			n++
		}
	}
	return n, nil
}

// --- AccountStore ---

func (m *Memory) Ensure(ctx context.Context, externalRef, username, firstName, lastName string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.refs[externalRef]; ok {
		account := m.accounts[id]
		if username != "" {
			account.Username = username
		}
		if firstName != "" {
			account.FirstName = firstName
		}
		if lastName != "" {
			account.LastName = lastName
		}
		copied := *account
		return &copied, nil
	}
	account := &domain.Account{
		ID:          uuid.NewString(),
		ExternalRef: externalRef,
		Username:    username,
		FirstName:   firstName,
		LastName:    lastName,
		CreatedAt:   time.Now().UTC(),
	}
	m.accounts[account.ID] = account
	m.refs[externalRef] = account.ID
	copied := *account
	return &copied, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *Memory) GetByRef(ctx context.Context, externalRef string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.refs[externalRef]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *m.accounts[id]
	return &copied, nil
}

func (m *Memory) SetBanned(ctx context.Context, id string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Banned = banned
	return nil
}

// --- ProductCatalog ---

// memoryCatalog adapts Memory to domain.ProductCatalog; the method set
// clashes with AccountStore (both want Get) so the catalog is a view.
type memoryCatalog struct{ m *Memory }

// Catalog returns the ProductCatalog view of the store.
func (m *Memory) Catalog() domain.ProductCatalog {
	return memoryCatalog{m: m}
}

func (c memoryCatalog) Add(ctx context.Context, name string, priceCents int64) (*domain.Product, error) {
	return c.m.AddProduct(ctx, name, priceCents)
}

func (c memoryCatalog) List(ctx context.Context) ([]*domain.Product, error) {
	return c.m.List(ctx)
}

func (c memoryCatalog) Get(ctx context.Context, id string) (*domain.Product, error) {
	return c.m.GetProduct(ctx, id)
}

func (m *Memory) AddProduct(ctx context.Context, name string, priceCents int64) (*domain.Product, error) {
	if priceCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	product := &domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		PriceCents: priceCents,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	m.products[product.ID] = product
	copied := *product
	return &copied, nil
}

func (m *Memory) List(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var products []*domain.Product
	for _, p := range m.products {
		if p.Active {
			copied := *p
			products = append(products, &copied)
		}
	}
	sort.Slice(products, func(a, b int) bool {
		return products[a].CreatedAt.Before(products[b].CreatedAt)
	})
	return products, nil
}

func (m *Memory) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok || !product.Active {
		return nil, domain.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

// --- SaleLog ---

func (m *Memory) Append(ctx context.Context, accountID, productID string, amountCents int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, &domain.SaleRecord{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProductID:   productID,
		AmountCents: amountCents,
		Quantity:    quantity,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

// SaleCount reports how many audit rows were appended. Test helper.
func (m *Memory) SaleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

// --- Authorizer ---

func (m *Memory) UpsertOperator(ctx context.Context, actorID, name string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[actorID] = &domain.Operator{ActorID: actorID, Name: name, Level: level, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) IsAuthorized(ctx context.Context, actorID string, minLevel int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[actorID]
	if !ok {
		return false, nil
	}
	return op.Level >= minLevel, nil
}
