package middleware

import (
	"strings"

	"github.com/freelance-escrow/backend/internal/auth"
	"github.com/freelance-escrow/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxAddress  = "address"
	CtxWalletID = "wallet_id"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxAddress, claims.Address)
		c.Locals(CtxWalletID, claims.WalletID)

		return c.Next()
	}
}

// GetAddress returns the authenticated wallet address, the actor identity
// for every ledger operation.
func GetAddress(c *fiber.Ctx) string {
	addr, _ := c.Locals(CtxAddress).(string)
	return addr
}

func GetWalletID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxWalletID).(uuid.UUID)
	return id
}
