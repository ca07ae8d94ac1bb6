package handlers

import (
	"testing"

	"github.com/freelance-escrow/backend/internal/events"
)

func TestEventTarget(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		wantAddr string
		wantOK   bool
	}{
		{
			name: "refund eligibility goes to the client only",
			event: events.Event{
				Type:    events.EventRefundEligible,
				Payload: map[string]any{"escrow_id": int64(7), "client": "EQclient"},
			},
			wantAddr: "EQclient",
			wantOK:   true,
		},
		{
			name: "refund eligibility without client falls back to broadcast",
			event: events.Event{
				Type:    events.EventRefundEligible,
				Payload: map[string]any{"escrow_id": int64(7)},
			},
			wantOK: false,
		},
		{
			name: "lifecycle events are broadcast",
			event: events.Event{
				Type:    events.EventEscrowFunded,
				Payload: map[string]any{"escrow_id": int64(7), "client": "EQclient"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := eventTarget(tt.event)
			if ok != tt.wantOK || addr != tt.wantAddr {
				t.Errorf("eventTarget() = (%q, %v), want (%q, %v)", addr, ok, tt.wantAddr, tt.wantOK)
			}
		})
	}
}
