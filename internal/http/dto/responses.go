package dto

import (
	"time"

	"github.com/freelance-escrow/backend/internal/models"
	"github.com/freelance-escrow/backend/internal/schedule"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// EscrowResponse is the API view of an escrow: the stored record plus the
// derived status and progress fields.
type EscrowResponse struct {
	models.Escrow
	Status           string `json:"status"`
	RemainingBalance int64  `json:"remaining_balance"`
	ProgressPercent  int    `json:"progress_percent"`
}

func NewEscrowResponse(e *models.Escrow) EscrowResponse {
	return EscrowResponse{
		Escrow:           *e,
		Status:           e.Status(),
		RemainingBalance: e.RemainingBalance(),
		ProgressPercent:  e.ProgressPercent(),
	}
}

func NewEscrowListResponse(escrows []models.Escrow) []EscrowResponse {
	out := make([]EscrowResponse, 0, len(escrows))
	for i := range escrows {
		out = append(out, NewEscrowResponse(&escrows[i]))
	}
	return out
}

type ReleaseResponse struct {
	Escrow EscrowResponse `json:"escrow"`
	Index  int            `json:"index,omitempty"` // 1-based, installment releases only
	Amount int64          `json:"amount"`
}

type ScheduleResponse struct {
	EscrowID     int64                  `json:"escrow_id"`
	TotalAmount  int64                  `json:"total_amount"`
	Installments []schedule.Installment `json:"installments"`
	Progress     int                    `json:"progress_percent"`
}

type ResolveResponse struct {
	Identifier string `json:"identifier"`
	Address    string `json:"address"`
	Resolved   bool   `json:"resolved"` // false when the input was already an address
}

type DepositInfoResponse struct {
	EscrowID      int64     `json:"escrow_id"`
	WalletAddress string    `json:"wallet_address"`
	Memo          string    `json:"memo"`
	Deadline      time.Time `json:"deadline"`
	Status        string    `json:"status"`
}
