package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions. The log is informational only: it never gates a
// fund-moving operation and is never consulted to authorize a transition.
const (
	AuditActionCreate           = "create"
	AuditActionDeposit          = "deposit"
	AuditActionRelease          = "release"
	AuditActionInstallment      = "installment"
	AuditActionSignatureRelease = "signature_release"
	AuditActionRefund           = "refund"
	AuditActionCancel           = "cancel"
	AuditActionBridge           = "bridge"
	AuditActionUpdate           = "update"
)

type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	EscrowID  int64     `json:"escrow_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	TxRef     string    `json:"tx_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func IsValidAuditAction(action string) bool {
	switch action {
	case AuditActionCreate, AuditActionDeposit, AuditActionRelease,
		AuditActionInstallment, AuditActionSignatureRelease,
		AuditActionRefund, AuditActionCancel, AuditActionBridge,
		AuditActionUpdate:
		return true
	}
	return false
}
