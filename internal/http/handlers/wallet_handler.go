package handlers

import (
	"github.com/freelance-escrow/backend/internal/http/dto"
	"github.com/freelance-escrow/backend/internal/middleware"
	"github.com/freelance-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

// POST /wallet/proof-payload
func (h *WalletHandler) GeneratePayload(c *fiber.Ctx) error {
	payload, err := h.walletService.GeneratePayload(c.Context())
	if err != nil {
		h.log.Error("failed to generate proof payload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(fiber.Map{"payload": payload})
}

// POST /wallet/connect
//
// Public: a verified ton_proof is what establishes the session.
func (h *WalletHandler) ConnectWallet(c *fiber.Ctx) error {
	var req services.ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Address == "" || req.PublicKey == "" || req.Proof.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, public_key, and proof.signature are required"})
	}
	if req.AddressFriendly == "" {
		req.AddressFriendly = req.Address
	}
	if req.Network == "" {
		req.Network = "mainnet"
	}

	result, err := h.walletService.ConnectWallet(c.Context(), req)
	if err != nil {
		h.log.Debug("wallet connect failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// DELETE /wallet
func (h *WalletHandler) DisconnectWallet(c *fiber.Ctx) error {
	if err := h.walletService.DisconnectWallet(c.Context(), middleware.GetAddress(c)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to disconnect wallet"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GET /wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	wallet, err := h.walletService.GetActiveWallet(c.Context(), middleware.GetAddress(c))
	if err != nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: nil})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: wallet})
}
