package events

import "context"

// Escrow event types published to the events:escrow stream.
const (
	EventEscrowCreated       = "escrow_created"
	EventEscrowFunded        = "escrow_funded"
	EventInstallmentReleased = "installment_released"
	EventSignatureReleased   = "signature_released"
	EventEscrowReleased      = "escrow_released"
	EventEscrowRefunded      = "escrow_refunded"
	EventEscrowCancelled     = "escrow_cancelled"
	EventRefundEligible      = "refund_eligible"
)

const StreamEscrow = "events:escrow"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
