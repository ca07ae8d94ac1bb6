package handlers

import (
	"errors"

	"github.com/freelance-escrow/backend/internal/http/dto"
	"github.com/freelance-escrow/backend/internal/models"
	"github.com/freelance-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// errorResponse maps ledger errors onto HTTP statuses. Transition
// violations are client errors; only conflicts and infrastructure
// failures get other classes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, models.ErrEscrowNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrBridgeDisabled), errors.Is(err, services.ErrNotesDisabled):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}
