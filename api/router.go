package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"store_engine/internal/config"
	"store_engine/internal/domain"
	"store_engine/internal/gateway"
	"store_engine/internal/notify"
	"store_engine/internal/purchase"
	"store_engine/internal/settlement"
	"store_engine/internal/storage"
)

// Stores bundles the engine's storage interfaces so routes can be wired
// against either the gorm stores or the in-memory ones.
type Stores struct {
	Accounts  domain.AccountStore
	Ledger    domain.LedgerStore
	Registry  domain.TransactionRegistry
	Catalog   domain.ProductCatalog
	Inventory domain.CredentialInventory
	Sales     domain.SaleLog
	Auth      domain.Authorizer
}

// InitRoutes builds the full production wiring from config and registers
// all endpoints on the given engine.
func InitRoutes(e *gin.Engine, cfg *config.Config, logger *zap.Logger) error {
	var stores Stores
	switch cfg.DBDriver {
	case "memory":
		mem := storage.NewMemory()
		if cfg.SeedOperator != "" {
			if err := mem.UpsertOperator(context.Background(), cfg.SeedOperator, "seed", 2); err != nil {
				return err
			}
		}
		stores = Stores{
			Accounts:  mem,
			Ledger:    mem,
			Registry:  mem,
			Catalog:   mem.Catalog(),
			Inventory: mem,
			Sales:     mem,
			Auth:      mem,
		}
	default:
		db, err := storage.Open(cfg.DBDriver, cfg.DBDSN, logger)
		if err != nil {
			return err
		}
		if err := storage.AutoMigrate(db); err != nil {
			return err
		}
		operators := storage.NewOperators(db)
		if cfg.SeedOperator != "" {
			if err := operators.Upsert(context.Background(), cfg.SeedOperator, "seed", 2); err != nil {
				return err
			}
		}
		stores = Stores{
			Accounts:  storage.NewAccounts(db, logger),
			Ledger:    storage.NewLedger(db, logger),
			Registry:  storage.NewRegistry(db, logger),
			Catalog:   storage.NewCatalog(db, logger),
			Inventory: storage.NewInventory(db, logger),
			Sales:     storage.NewSales(db),
			Auth:      operators,
		}
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayToken, logger)

	var notifier settlement.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyURL, logger)
	}

	InitRoutes2(e, stores, gw, notifier, cfg.NotificationURL, cfg.MinChargeCents, logger)
	return nil
}

// InitRoutes2 registers all endpoints with the dependencies supplied by the
// caller. Tests use it with in-memory stores and a stubbed gateway.
func InitRoutes2(e *gin.Engine, stores Stores, gw settlement.Gateway, notifier settlement.Notifier, notificationURL string, minChargeCents int64, logger *zap.Logger) {
	settlementSvc := settlement.NewService(stores.Ledger, stores.Registry, stores.Accounts, gw, notifier, notificationURL, minChargeCents, logger)
	purchaseSvc := purchase.NewService(stores.Ledger, stores.Inventory, stores.Catalog, stores.Sales, logger)
	h := newEngineHandler(stores.Accounts, stores.Ledger, stores.Registry, stores.Catalog, stores.Inventory, settlementSvc, purchaseSvc, logger)

	e.POST("/accounts", h.handleEnsureAccount)
	e.GET("/accounts/:ref/balance", h.handleBalance)
	e.GET("/accounts/:ref/transactions", h.handleHistory)
	e.POST("/charges", h.handleCreateCharge)
	e.POST("/gateway/webhook", h.handleGatewayWebhook)
	e.POST("/purchases", h.handlePurchase)
	e.GET("/products", h.handleListProducts)

	// Operator routes sit behind the capability check; level 2 mirrors the
	// storefront's super-operator tier.
	operator := e.Group("/", RequireLevel(stores.Auth, 2, logger))
	operator.POST("/products", h.handleAddProduct)
	operator.POST("/credentials", h.handleAddCredential)
	operator.POST("/accounts/:ref/credit", h.handleManualCredit)
	operator.POST("/accounts/:ref/ban", h.handleBan)
	operator.POST("/accounts/:ref/unban", h.handleUnban)
	operator.POST("/approvals/:id", h.handleManualApproval)
	operator.GET("/reports/:period", h.handleReport)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}
