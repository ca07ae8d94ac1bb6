package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/freelance-escrow/backend/internal/bridge"
	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/db"
	"github.com/freelance-escrow/backend/internal/events"
	apphttp "github.com/freelance-escrow/backend/internal/http"
	"github.com/freelance-escrow/backend/internal/http/handlers"
	"github.com/freelance-escrow/backend/internal/ipfs"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/freelance-escrow/backend/internal/resolver"
	"github.com/freelance-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// TON DNS resolver. The API works without a TON connection; domains
	// just stop resolving.
	var res *resolver.Resolver
	if tonAPI, err := connectToTON(ctx, cfg, log); err != nil {
		log.Warn("TON connection unavailable, dns resolution disabled", zap.Error(err))
	} else if res, err = resolver.New(tonAPI, log); err != nil {
		log.Warn("dns resolver init failed", zap.Error(err))
		res = nil
	}

	// Services
	bridgeClient := bridge.NewClient(cfg.BridgeAPIURL, cfg.BridgeAPIKey, log)
	ipfsClient := ipfs.NewClient(cfg.IPFSAPIURL, cfg.IPFSGatewayURL, cfg.IPFSJWT, log)
	escrowService := services.NewEscrowService(escrowRepo, auditRepo, walletRepo, res, bridgeClient, ipfsClient, publisher, rdb, cfg, log)
	walletService := services.NewWalletService(walletRepo, cfg, log)

	// Handlers
	escrowHandler := handlers.NewEscrowHandler(escrowService, cfg, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	resolveHandler := handlers.NewResolveHandler(res, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, escrowHandler, walletHandler, resolveHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// connectToTON connects either to a configured lite server or through the
// public global config for the selected network.
func connectToTON(ctx context.Context, cfg *config.Config, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return ton.NewAPIClient(client, proofPolicy).WithRetry(), nil
}
