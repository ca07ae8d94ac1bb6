package models

import (
	"time"

	"github.com/freelance-escrow/backend/internal/schedule"
)

// Escrow statuses, derived from the boolean flags. The flags are
// authoritative; the status string exists for queries and API payloads.
const (
	EscrowStatusCreated   = "created"
	EscrowStatusFunded    = "funded"
	EscrowStatusReleased  = "released"
	EscrowStatusRefunded  = "refunded"
	EscrowStatusCancelled = "cancelled"
)

// Escrow is one client-to-freelancer engagement. Amounts are integer token
// base units (nanotons for native TON, jetton units otherwise). Exactly one
// of {unfunded, funded-active, released, refunded} describes a non-cancelled
// escrow; released and refunded are terminal and mutually exclusive.
//
// Every release path decrements a single authoritative counter
// (ReleasedAmount), and the two channels never mix on one escrow: escrows
// created with more than one installment release only through
// ReleaseInstallment, single-shot escrows only through ReleaseFull or
// ReleaseBySignature.
type Escrow struct {
	ID                int64      `json:"id"`
	Client            string     `json:"client"`
	Freelancer        string     `json:"freelancer"`
	Token             string     `json:"token,omitempty"`
	TotalAmount       int64      `json:"total_amount"`
	ReleasedAmount    int64      `json:"released_amount"`
	Funded            bool       `json:"funded"`
	Released          bool       `json:"released"`
	Refunded          bool       `json:"refunded"`
	Cancelled         bool       `json:"cancelled"`
	Deadline          time.Time  `json:"deadline"`
	TotalInstallments int        `json:"total_installments"`
	InstallmentsPaid  int        `json:"installments_paid"`
	Nonce             int64      `json:"nonce"`
	NoteCID           *string    `json:"note_cid,omitempty"`
	FundedAt          *time.Time `json:"funded_at,omitempty"`
	FundingTxHash     *string    `json:"funding_tx_hash,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewEscrow validates creation parameters. totalInstallments of 0 is
// normalized to 1 (single-shot release). The deadline offset is a policy
// decision made by the caller.
func NewEscrow(client, freelancer string, totalInstallments int, deadline time.Time) (*Escrow, error) {
	if client == "" || freelancer == "" || client == freelancer {
		return nil, ErrInvalidParty
	}
	if totalInstallments < 0 {
		return nil, ErrInvalidSchedule
	}
	if totalInstallments == 0 {
		totalInstallments = 1
	}
	return &Escrow{
		Client:            client,
		Freelancer:        freelancer,
		TotalInstallments: totalInstallments,
		Deadline:          deadline,
	}, nil
}

func (e *Escrow) Status() string {
	switch {
	case e.Cancelled:
		return EscrowStatusCancelled
	case e.Refunded:
		return EscrowStatusRefunded
	case e.Released:
		return EscrowStatusReleased
	case e.Funded:
		return EscrowStatusFunded
	default:
		return EscrowStatusCreated
	}
}

// Terminal reports whether no further fund-moving operation is permitted.
func (e *Escrow) Terminal() bool {
	return e.Released || e.Refunded || e.Cancelled
}

// RemainingBalance is the unreleased part of the deposit.
func (e *Escrow) RemainingBalance() int64 {
	return e.TotalAmount - e.ReleasedAmount
}

// ProgressPercent is the installment claim progress, rounded.
func (e *Escrow) ProgressPercent() int {
	return schedule.ProgressPercent(e.InstallmentsPaid, e.TotalInstallments)
}

// UsesInstallments reports whether the escrow releases through scheduled
// tranches rather than full or signature releases.
func (e *Escrow) UsesInstallments() bool {
	return e.TotalInstallments > 1
}

// IsParty reports whether addr is the escrow's client or freelancer.
func (e *Escrow) IsParty(addr string) bool {
	return addr == e.Client || addr == e.Freelancer
}

// active guards every fund-moving transition.
func (e *Escrow) active() error {
	switch {
	case e.Cancelled:
		return ErrEscrowCancelled
	case e.Released:
		return ErrAlreadyReleased
	case e.Refunded:
		return ErrAlreadyRefunded
	case !e.Funded:
		return ErrNotFunded
	}
	return nil
}

// Fund records the single deposit. TotalAmount is set here and never again.
func (e *Escrow) Fund(token string, amount int64, txHash string, now time.Time) error {
	if e.Cancelled {
		return ErrEscrowCancelled
	}
	if e.Funded {
		return ErrAlreadyFunded
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	e.Token = token
	e.TotalAmount = amount
	e.Funded = true
	e.FundedAt = &now
	if txHash != "" {
		e.FundingTxHash = &txHash
	}
	return nil
}

// ReleaseFull transfers the entire unreleased balance to the freelancer.
// Only valid for single-shot escrows; installment escrows exhaust their
// tranches instead. Returns the amount released.
func (e *Escrow) ReleaseFull() (int64, error) {
	if err := e.active(); err != nil {
		return 0, err
	}
	if e.UsesInstallments() {
		return 0, ErrWrongReleaseChannel
	}
	amount := e.RemainingBalance()
	e.ReleasedAmount = e.TotalAmount
	e.Released = true
	return amount, nil
}

// ReleaseInstallment releases the next unclaimed tranche, in order. The
// final tranche completes the escrow. Returns the 1-based index and amount.
func (e *Escrow) ReleaseInstallment() (index int, amount int64, err error) {
	if err := e.active(); err != nil {
		return 0, 0, err
	}
	if !e.UsesInstallments() {
		return 0, 0, ErrWrongReleaseChannel
	}
	if e.InstallmentsPaid >= e.TotalInstallments {
		return 0, 0, ErrNoInstallmentsRemaining
	}
	sched, err := schedule.Generate(e.TotalAmount, e.TotalInstallments, e.InstallmentsPaid)
	if err != nil {
		return 0, 0, ErrInvalidSchedule
	}
	next, ok := schedule.Next(sched)
	if !ok {
		return 0, 0, ErrNoInstallmentsRemaining
	}
	e.InstallmentsPaid++
	e.ReleasedAmount += next.Amount
	if e.InstallmentsPaid == e.TotalInstallments {
		e.Released = true
	}
	return next.Index, next.Amount, nil
}

// ReleaseBySignature applies a client-authorized release of amount against
// the remaining balance. The authorization's nonce must equal the escrow's
// current nonce; a successful release consumes it, so resubmitting the same
// authorization fails with ErrNonceMismatch. Signature validation happens
// before this is called. Releasing the full remaining balance completes
// the escrow.
func (e *Escrow) ReleaseBySignature(amount, nonce int64) error {
	if nonce != e.Nonce {
		return ErrNonceMismatch
	}
	if err := e.active(); err != nil {
		return err
	}
	if e.UsesInstallments() {
		return ErrWrongReleaseChannel
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > e.RemainingBalance() {
		return ErrAmountExceedsBalance
	}
	e.ReleasedAmount += amount
	e.Nonce++
	if e.ReleasedAmount == e.TotalAmount {
		e.Released = true
	}
	return nil
}

// Refund returns the entire unreleased balance to the client. Permitted
// only after the deadline, evaluated lazily at call time. Returns the
// refunded amount.
func (e *Escrow) Refund(now time.Time) (int64, error) {
	if err := e.active(); err != nil {
		return 0, err
	}
	if now.Before(e.Deadline) {
		return 0, ErrRefundNotYetEligible
	}
	amount := e.RemainingBalance()
	e.Refunded = true
	return amount, nil
}

// Cancel invalidates an escrow before any value is at risk.
func (e *Escrow) Cancel() error {
	if e.Cancelled {
		return ErrEscrowCancelled
	}
	if e.Funded {
		return ErrAlreadyFunded
	}
	e.Cancelled = true
	return nil
}
