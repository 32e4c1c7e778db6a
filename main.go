package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"store_engine/api"
	"store_engine/internal/config"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	r := gin.Default()
	if err := api.InitRoutes(r, cfg, logger); err != nil {
		logger.Fatal("failed to initialize engine", zap.Error(err))
	}

	logger.Info("store engine listening", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))
	if err := r.Run(":" + cfg.Port); err != nil {
		panic(fmt.Errorf("error trying to start server: %v", err))
	}
}
