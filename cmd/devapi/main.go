// Command devapi runs a local stand-in for the municipal complaint REST API.
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/config"
	"github.com/kentsikayet/portal/internal/database"
	"github.com/kentsikayet/portal/internal/devapi/handler"
	"github.com/kentsikayet/portal/internal/devapi/service"
	"github.com/kentsikayet/portal/internal/devapi/tokens"
	"github.com/kentsikayet/portal/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	cfg, err := config.LoadDevAPIConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	store := service.NewMemoryStore()
	if cfg.MongoDB.URI != "" {
		client, db, err := database.Connect(ctx, cfg.MongoDB)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using memory store", err)
		} else {
			defer client.Disconnect(context.Background())
			if store, err = service.NewMongoStore(ctx, db); err != nil {
				logger.Fatalf("mongo store: %v", err)
			}
			logger.Infof("devapi using MongoDB database %s", cfg.MongoDB.Database)
		}
	}

	svc := service.New(store, tokens.NewIssuer(cfg.JWTSecret, cfg.TokenTTL))
	if _, err := svc.Seed(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatalf("seed: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r, svc)

	logger.Infof("devapi listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("devapi: %v", err)
	}
}
