package http

import (
	"time"

	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/http/handlers"
	"github.com/freelance-escrow/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	escrowHandler *handlers.EscrowHandler,
	walletHandler *handlers.WalletHandler,
	resolveHandler *handlers.ResolveHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Wallet session (public: the ton_proof is the credential)
	api.Post("/wallet/proof-payload", walletHandler.GeneratePayload)
	api.Post("/wallet/connect", walletHandler.ConnectWallet)

	// Signature release is public: authority comes from the signed
	// authorization, not from the caller's session.
	api.Post("/escrows/:id/release-signed", escrowHandler.ReleaseWithSignature)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Get("/wallet", walletHandler.GetWallet)
	protected.Delete("/wallet", walletHandler.DisconnectWallet)

	protected.Get("/resolve", resolveHandler.Resolve)

	protected.Post("/escrows", escrowHandler.CreateEscrow)
	protected.Get("/escrows", escrowHandler.ListEscrows)
	protected.Get("/escrows/:id", escrowHandler.GetEscrow)
	protected.Post("/escrows/:id/fund", escrowHandler.FundEscrow)
	protected.Get("/escrows/:id/deposit-info", escrowHandler.GetDepositInfo)
	protected.Post("/escrows/:id/release", escrowHandler.ReleaseFull)
	protected.Post("/escrows/:id/release-installment", escrowHandler.ReleaseInstallment)
	protected.Post("/escrows/:id/refund", escrowHandler.Refund)
	protected.Post("/escrows/:id/cancel", escrowHandler.Cancel)
	protected.Get("/escrows/:id/schedule", escrowHandler.GetSchedule)
	protected.Get("/escrows/:id/audit", escrowHandler.GetAuditLog)
	protected.Post("/escrows/:id/transactions", escrowHandler.LogTransaction)
	protected.Post("/escrows/:id/bridge-quote", escrowHandler.BridgeQuote)
	protected.Put("/escrows/:id/note", escrowHandler.SetNote)
	protected.Get("/escrows/:id/note", escrowHandler.GetNote)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
