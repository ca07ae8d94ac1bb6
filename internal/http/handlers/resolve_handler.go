package handlers

import (
	"github.com/freelance-escrow/backend/internal/http/dto"
	"github.com/freelance-escrow/backend/internal/resolver"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ResolveHandler struct {
	resolver *resolver.Resolver
	log      *zap.Logger
}

func NewResolveHandler(res *resolver.Resolver, log *zap.Logger) *ResolveHandler {
	return &ResolveHandler{resolver: res, log: log}
}

// GET /resolve?name=alice.ton
func (h *ResolveHandler) Resolve(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}

	addr, err := h.resolver.Resolve(c.Context(), name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ResolveResponse{
		Identifier: name,
		Address:    addr,
		Resolved:   resolver.IsDomain(name),
	}})
}
