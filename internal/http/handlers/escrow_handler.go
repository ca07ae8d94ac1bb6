package handlers

import (
	"fmt"
	"strconv"

	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/http/dto"
	"github.com/freelance-escrow/backend/internal/middleware"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/freelance-escrow/backend/internal/services"
	"github.com/freelance-escrow/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	cfg           *config.Config
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, cfg *config.Config, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, cfg: cfg, log: log}
}

func escrowID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// POST /escrows
func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	var req dto.CreateEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Freelancer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "freelancer is required"})
	}

	caller := middleware.GetAddress(c)
	client := req.Client
	if client == "" {
		client = caller
	}

	escrow, err := h.escrowService.CreateEscrow(c.Context(), caller, client, req.Freelancer, req.TotalInstallments)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowResponse(escrow)})
}

// GET /escrows
func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	filter := repositories.EscrowFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	// Default scope is the caller's own escrows; mine=false widens it.
	if c.Query("mine", "true") != "false" {
		addr := middleware.GetAddress(c)
		filter.Party = &addr
	}

	escrows, err := h.escrowService.ListEscrows(c.Context(), filter)
	if err != nil {
		h.log.Error("list escrows failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowListResponse(escrows)})
}

// GET /escrows/:id
func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, err := h.escrowService.GetEscrow(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowResponse(escrow)})
}

// POST /escrows/:id/fund
//
// Manual funding path; the deposit watcher performs the same transition
// for on-chain transfers it matches by memo.
func (h *EscrowHandler) FundEscrow(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	var req dto.FundEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	escrow, err := h.escrowService.Fund(c.Context(), id, middleware.GetAddress(c), req.Token, req.Amount, req.TxHash)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowResponse(escrow)})
}

// GET /escrows/:id/deposit-info
func (h *EscrowHandler) GetDepositInfo(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, err := h.escrowService.GetEscrow(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DepositInfoResponse{
		EscrowID:      escrow.ID,
		WalletAddress: h.cfg.EscrowWalletAddress,
		Memo:          fmt.Sprintf("escrow:%d", escrow.ID),
		Deadline:      escrow.Deadline,
		Status:        escrow.Status(),
	}})
}

// POST /escrows/:id/release
func (h *EscrowHandler) ReleaseFull(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, amount, err := h.escrowService.ReleaseFull(c.Context(), id, middleware.GetAddress(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReleaseResponse{
		Escrow: dto.NewEscrowResponse(escrow),
		Amount: amount,
	}})
}

// POST /escrows/:id/release-installment
func (h *EscrowHandler) ReleaseInstallment(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, index, amount, err := h.escrowService.ReleaseInstallment(c.Context(), id, middleware.GetAddress(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReleaseResponse{
		Escrow: dto.NewEscrowResponse(escrow),
		Index:  index,
		Amount: amount,
	}})
}

// POST /escrows/:id/release-signed
//
// Public: the signature itself is the authorization, so a relayer or the
// freelancer may submit it on the client's behalf.
func (h *EscrowHandler) ReleaseWithSignature(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	var req dto.SignatureReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Signature == "" || req.Freelancer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "freelancer and signature are required"})
	}

	escrow, err := h.escrowService.ReleaseWithSignature(c.Context(), ton.ReleaseAuthorization{
		EscrowID:   id,
		Freelancer: req.Freelancer,
		Amount:     req.Amount,
		Nonce:      req.Nonce,
		Signature:  req.Signature,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowResponse(escrow)})
}

// POST /escrows/:id/refund
func (h *EscrowHandler) Refund(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, amount, err := h.escrowService.Refund(c.Context(), id, middleware.GetAddress(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReleaseResponse{
		Escrow: dto.NewEscrowResponse(escrow),
		Amount: amount,
	}})
}

// POST /escrows/:id/cancel
func (h *EscrowHandler) Cancel(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, err := h.escrowService.Cancel(c.Context(), id, middleware.GetAddress(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEscrowResponse(escrow)})
}

// GET /escrows/:id/schedule
func (h *EscrowHandler) GetSchedule(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	escrow, sched, err := h.escrowService.GetSchedule(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ScheduleResponse{
		EscrowID:     escrow.ID,
		TotalAmount:  escrow.TotalAmount,
		Installments: sched,
		Progress:     escrow.ProgressPercent(),
	}})
}

// GET /escrows/:id/audit
func (h *EscrowHandler) GetAuditLog(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	newestFirst := c.Query("order") == "desc"

	entries, err := h.escrowService.GetAuditLog(c.Context(), id, limit, offset, newestFirst)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

// POST /escrows/:id/transactions
func (h *EscrowHandler) LogTransaction(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	var req dto.LogTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	entry, err := h.escrowService.LogTransaction(c.Context(), id, middleware.GetAddress(c), req.Action, req.Reason, req.TxRef)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: entry})
}

// POST /escrows/:id/bridge-quote
func (h *EscrowHandler) BridgeQuote(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	var req dto.BridgeQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.DestinationChain == "" || req.ToAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "destination_chain and to_address are required"})
	}

	quote, err := h.escrowService.BridgeQuote(c.Context(), id, middleware.GetAddress(c), req.DestinationChain, req.ToAddress)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: quote})
}

// PUT /escrows/:id/note
func (h *EscrowHandler) SetNote(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	var req dto.SetNoteRequest
	if err := c.BodyParser(&req); err != nil || len(req.Note) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "note is required"})
	}

	cid, err := h.escrowService.SetNote(c.Context(), id, middleware.GetAddress(c), req.Note)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"cid": cid}})
}

// GET /escrows/:id/note
func (h *EscrowHandler) GetNote(c *fiber.Ctx) error {
	id, err := escrowID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	note, err := h.escrowService.GetNote(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: note})
}
