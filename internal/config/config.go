package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"store_engine/internal/domain"
)

// Config holds everything the engine reads from the environment.
type Config struct {
	Port           string
	DBDriver       string // memory, sqlite or postgres
	DBDSN          string
	GatewayBaseURL string
	GatewayToken   string
	// NotificationURL is passed to the gateway so completion signals come
	// back to POST /gateway/webhook.
	NotificationURL string
	// NotifyURL is where settlement notifications are posted; empty
	// disables the hook.
	NotifyURL      string
	MinChargeCents int64
	// SeedOperator, when set, is upserted at startup with level 2 so a
	// fresh deployment has one privileged actor.
	SeedOperator string
}

// Load reads .env if present and falls back to system environment
// variables.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	minCharge := int64(1000)
	if raw := getEnv("MIN_CHARGE", ""); raw != "" {
		cents, err := domain.ParseAmount(raw)
		if err != nil {
			logger.Warn("invalid MIN_CHARGE, keeping default", zap.String("value", raw))
		} else {
			minCharge = cents
		}
	}

	return &Config{
		Port:            getEnv("PORT", "8081"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBDSN:           getEnv("DB_DSN", "store.db"),
		GatewayBaseURL:  getEnv("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
		GatewayToken:    getEnv("GATEWAY_TOKEN", ""),
		NotificationURL: getEnv("NOTIFICATION_URL", ""),
		NotifyURL:       getEnv("NOTIFY_URL", ""),
		MinChargeCents:  minCharge,
		SeedOperator:    getEnv("SEED_OPERATOR", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
