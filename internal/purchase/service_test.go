package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"store_engine/internal/domain"
	"store_engine/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	svc := NewService(mem, mem, mem.Catalog(), mem, zaptest.NewLogger(t))
	return svc, mem
}

func seedAccount(t *testing.T, mem *storage.Memory, balance int64) *domain.Account {
	t.Helper()
	ctx := context.Background()
	account, err := mem.Ensure(ctx, "ref-"+fmt.Sprint(balance), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		if _, err := mem.Adjust(ctx, account.ID, balance); err != nil {
			t.Fatal(err)
		}
	}
	return account
}

func seedProduct(t *testing.T, mem *storage.Memory, price int64, stock int) *domain.Product {
	t.Helper()
	ctx := context.Background()
	product, err := mem.AddProduct(ctx, "premium access", price)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < stock; i++ {
		if _, err := mem.Add(ctx, product.ID, fmt.Sprintf("login-%d", i), "secret"); err != nil {
			t.Fatal(err)
		}
	}
	return product
}

func TestBuyHappyPath(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	account := seedAccount(t, mem, 1500)
	product := seedProduct(t, mem, 1000, 1)

	result, err := svc.Buy(ctx, account.ID, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Credential == nil || result.Credential.Login == "" {
		t.Fatal("purchase returned no credential")
	}
	if result.NewBalanceCents != 500 {
		t.Errorf("new balance = %d, want 500", result.NewBalanceCents)
	}
	if mem.SaleCount() != 1 {
		t.Errorf("sale records = %d, want 1", mem.SaleCount())
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	account := seedAccount(t, mem, 999)
	product := seedProduct(t, mem, 1000, 1)

	if _, err := svc.Buy(ctx, account.ID, product.ID); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Nothing moved: stock intact, balance intact, no audit row.
	n, _ := mem.CountAvailable(ctx, product.ID)
	if n != 1 {
		t.Errorf("available = %d, want 1", n)
	}
	balance, _ := mem.Balance(ctx, account.ID)
	if balance != 999 {
		t.Errorf("balance = %d, want 999", balance)
	}
	if mem.SaleCount() != 0 {
		t.Errorf("sale records = %d, want 0", mem.SaleCount())
	}
}

func TestBuyOutOfStock(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	account := seedAccount(t, mem, 5000)
	product := seedProduct(t, mem, 1000, 0)

	if _, err := svc.Buy(ctx, account.ID, product.ID); !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}
	balance, _ := mem.Balance(ctx, account.ID)
	if balance != 5000 {
		t.Errorf("balance = %d, want untouched 5000", balance)
	}
}

func TestBuyUnknownProduct(t *testing.T) {
	svc, mem := newTestService(t)
	account := seedAccount(t, mem, 5000)

	if _, err := svc.Buy(context.Background(), account.ID, "no-such-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
}

// Scenario from the consistency properties: one credential, price 10.00,
// balance 10.00, two simultaneous purchases. Exactly one succeeds and the
// final balance is 0.
func TestConcurrentBuyLastCredential(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	account := seedAccount(t, mem, 1000)
	product := seedProduct(t, mem, 1000, 1)

	var successes, rejections atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.Buy(ctx, account.ID, product.ID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrInsufficientFunds):
				rejections.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if successes.Load() != 1 || rejections.Load() != 1 {
		t.Errorf("successes = %d, rejections = %d, want 1 and 1", successes.Load(), rejections.Load())
	}
	balance, _ := mem.Balance(ctx, account.ID)
	if balance != 0 {
		t.Errorf("final balance = %d, want 0", balance)
	}
}

// With K credentials and more buyers than stock, at most K purchases
// succeed and no credential goes to two buyers.
func TestConcurrentBuyExhaustsStockExactly(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	const stock = 3
	const buyers = 7
	product := seedProduct(t, mem, 100, stock)

	// Independent buyers, each with enough balance for one purchase.
	accounts := make([]*domain.Account, buyers)
	for i := range accounts {
		account, err := mem.Ensure(ctx, fmt.Sprintf("buyer-%d", i), "", "", "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mem.Adjust(ctx, account.ID, 100); err != nil {
			t.Fatal(err)
		}
		accounts[i] = account
	}

	credentials := make(chan string, buyers)
	var outOfStock atomic.Int32
	var g errgroup.Group
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			result, err := svc.Buy(ctx, account.ID, product.ID)
			if errors.Is(err, domain.ErrOutOfStock) {
				outOfStock.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			credentials <- result.Credential.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	close(credentials)

	seen := map[string]bool{}
	for id := range credentials {
		if seen[id] {
			t.Fatalf("credential %s sold twice", id)
		}
		seen[id] = true
	}
	if len(seen) != stock {
		t.Errorf("successful purchases = %d, want exactly %d", len(seen), stock)
	}
	if int(outOfStock.Load()) != buyers-stock {
		t.Errorf("out-of-stock rejections = %d, want %d", outOfStock.Load(), buyers-stock)
	}
}

// gatedLedger passes the balance pre-check but rejects the conditional
// debit, forcing the compensating release path.
type gatedLedger struct {
	domain.LedgerStore
}

func (g gatedLedger) AdjustIfSufficient(ctx context.Context, accountID string, deltaCents int64) (int64, bool, error) {
	return 0, false, nil
}

func TestBuyReleasesCredentialOnRejectedDebit(t *testing.T) {
	mem := storage.NewMemory()
	svc := NewService(gatedLedger{LedgerStore: mem}, mem, mem.Catalog(), mem, zaptest.NewLogger(t))
	ctx := context.Background()
	account := seedAccount(t, mem, 5000)
	product := seedProduct(t, mem, 1000, 1)

	if _, err := svc.Buy(ctx, account.ID, product.ID); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// The claimed credential went back to the pool and nothing was logged.
	n, _ := mem.CountAvailable(ctx, product.ID)
	if n != 1 {
		t.Errorf("available after rejected debit = %d, want 1", n)
	}
	if mem.SaleCount() != 0 {
		t.Errorf("sale records = %d, want 0", mem.SaleCount())
	}
}
