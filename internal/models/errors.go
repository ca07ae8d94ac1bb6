package models

import "errors"

// Ledger and verifier errors. Every failed operation leaves the escrow
// untouched; callers match with errors.Is to map to HTTP responses.
var (
	ErrInvalidParty            = errors.New("invalid party")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidSchedule         = errors.New("invalid installment schedule")
	ErrAlreadyFunded           = errors.New("escrow already funded")
	ErrNotFunded               = errors.New("escrow not funded")
	ErrAlreadyReleased         = errors.New("escrow already released")
	ErrAlreadyRefunded         = errors.New("escrow already refunded")
	ErrNoInstallmentsRemaining = errors.New("no installments remaining")
	ErrAmountExceedsBalance    = errors.New("amount exceeds unreleased balance")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrNonceMismatch           = errors.New("nonce mismatch")
	ErrRefundNotYetEligible    = errors.New("refund deadline not reached")
	ErrUnauthorized            = errors.New("unauthorized")

	ErrEscrowNotFound      = errors.New("escrow not found")
	ErrEscrowCancelled     = errors.New("escrow cancelled")
	ErrWrongReleaseChannel = errors.New("operation not valid for this escrow's release channel")

	// ErrConflict means a concurrent transition committed first and the
	// optimistic version check failed. The escrow is unchanged by this
	// call; the caller may re-read and retry.
	ErrConflict = errors.New("concurrent escrow update")
)
