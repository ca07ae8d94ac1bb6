package models

import (
	"errors"
	"testing"
	"time"
)

func newFundedEscrow(t *testing.T, amount int64, installments int) *Escrow {
	t.Helper()
	e, err := NewEscrow("EQClient", "EQFreelancer", installments, time.Now().Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("NewEscrow: %v", err)
	}
	e.ID = 1
	if err := e.Fund("TON", amount, "tx1", time.Now()); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	return e
}

func TestNewEscrow(t *testing.T) {
	tests := []struct {
		name         string
		client       string
		freelancer   string
		installments int
		wantErr      error
		wantTotal    int
	}{
		{"valid", "a", "b", 3, nil, 3},
		{"zero installments normalized", "a", "b", 0, nil, 1},
		{"empty client", "", "b", 1, ErrInvalidParty, 0},
		{"empty freelancer", "a", "", 1, ErrInvalidParty, 0},
		{"same parties", "a", "a", 1, ErrInvalidParty, 0},
		{"negative installments", "a", "b", -1, ErrInvalidSchedule, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEscrow(tt.client, tt.freelancer, tt.installments, time.Now())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && e.TotalInstallments != tt.wantTotal {
				t.Errorf("TotalInstallments = %d, want %d", e.TotalInstallments, tt.wantTotal)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	e, _ := NewEscrow("a", "b", 1, time.Now())
	if e.Status() != EscrowStatusCreated {
		t.Errorf("status = %s, want created", e.Status())
	}

	_ = e.Fund("TON", 100, "", time.Now())
	if e.Status() != EscrowStatusFunded {
		t.Errorf("status = %s, want funded", e.Status())
	}

	if _, err := e.ReleaseFull(); err != nil {
		t.Fatal(err)
	}
	if e.Status() != EscrowStatusReleased {
		t.Errorf("status = %s, want released", e.Status())
	}
}

func TestFund(t *testing.T) {
	e, _ := NewEscrow("a", "b", 1, time.Now())

	if err := e.Fund("TON", 0, "", time.Now()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}
	if err := e.Fund("TON", -5, "", time.Now()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: err = %v, want ErrInvalidAmount", err)
	}

	if err := e.Fund("TON", 100, "tx1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if e.TotalAmount != 100 || !e.Funded {
		t.Errorf("after fund: total=%d funded=%v", e.TotalAmount, e.Funded)
	}

	// Second deposit is rejected; the amount never changes after funding.
	if err := e.Fund("TON", 50, "tx2", time.Now()); !errors.Is(err, ErrAlreadyFunded) {
		t.Errorf("double fund: err = %v, want ErrAlreadyFunded", err)
	}
	if e.TotalAmount != 100 {
		t.Errorf("total changed after rejected fund: %d", e.TotalAmount)
	}
}

func TestReleaseFull(t *testing.T) {
	e := newFundedEscrow(t, 1000, 1)

	amount, err := e.ReleaseFull()
	if err != nil {
		t.Fatal(err)
	}
	if amount != 1000 {
		t.Errorf("released %d, want 1000", amount)
	}
	if !e.Released || e.RemainingBalance() != 0 {
		t.Errorf("released=%v remaining=%d", e.Released, e.RemainingBalance())
	}

	if _, err := e.ReleaseFull(); !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("second release: err = %v, want ErrAlreadyReleased", err)
	}
}

func TestReleaseFull_RequiresFunding(t *testing.T) {
	e, _ := NewEscrow("a", "b", 1, time.Now())
	if _, err := e.ReleaseFull(); !errors.Is(err, ErrNotFunded) {
		t.Errorf("err = %v, want ErrNotFunded", err)
	}
}

func TestReleaseChannelsSeparation(t *testing.T) {
	// Installment escrows never release in full or by signature.
	multi := newFundedEscrow(t, 100, 3)
	if _, err := multi.ReleaseFull(); !errors.Is(err, ErrWrongReleaseChannel) {
		t.Errorf("ReleaseFull on installment escrow: err = %v", err)
	}
	if err := multi.ReleaseBySignature(10, 0); !errors.Is(err, ErrWrongReleaseChannel) {
		t.Errorf("ReleaseBySignature on installment escrow: err = %v", err)
	}

	// Single-shot escrows have no installments to claim.
	single := newFundedEscrow(t, 100, 1)
	if _, _, err := single.ReleaseInstallment(); !errors.Is(err, ErrWrongReleaseChannel) {
		t.Errorf("ReleaseInstallment on single-shot escrow: err = %v", err)
	}
}

func TestInstallmentLifecycle(t *testing.T) {
	// 100 over 3 installments: 33, 33, 34.
	e := newFundedEscrow(t, 100, 3)

	wantAmounts := []int64{33, 33, 34}
	wantProgress := []int{33, 67, 100}
	for i := 0; i < 3; i++ {
		index, amount, err := e.ReleaseInstallment()
		if err != nil {
			t.Fatalf("installment %d: %v", i+1, err)
		}
		if index != i+1 {
			t.Errorf("index = %d, want %d", index, i+1)
		}
		if amount != wantAmounts[i] {
			t.Errorf("installment %d amount = %d, want %d", index, amount, wantAmounts[i])
		}
		if e.ProgressPercent() != wantProgress[i] {
			t.Errorf("after installment %d progress = %d, want %d", index, e.ProgressPercent(), wantProgress[i])
		}
	}

	if !e.Released {
		t.Error("escrow not released after final installment")
	}
	if e.ReleasedAmount != 100 || e.RemainingBalance() != 0 {
		t.Errorf("released=%d remaining=%d", e.ReleasedAmount, e.RemainingBalance())
	}

	if _, _, err := e.ReleaseInstallment(); !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("installment after completion: err = %v", err)
	}
}

func TestReleaseBySignature(t *testing.T) {
	e := newFundedEscrow(t, 1000, 1)

	if err := e.ReleaseBySignature(400, 0); err != nil {
		t.Fatal(err)
	}
	if e.Nonce != 1 {
		t.Errorf("nonce = %d, want 1", e.Nonce)
	}
	if e.Released {
		t.Error("partial release must not complete the escrow")
	}
	if e.RemainingBalance() != 600 {
		t.Errorf("remaining = %d, want 600", e.RemainingBalance())
	}

	// Resubmitting the consumed authorization is a replay.
	if err := e.ReleaseBySignature(400, 0); !errors.Is(err, ErrNonceMismatch) {
		t.Errorf("replayed authorization: err = %v, want ErrNonceMismatch", err)
	}
	if e.Nonce != 1 || e.ReleasedAmount != 400 {
		t.Errorf("replay mutated state: nonce=%d released=%d", e.Nonce, e.ReleasedAmount)
	}

	// Over the remaining balance: rejected, state untouched.
	if err := e.ReleaseBySignature(601, 1); !errors.Is(err, ErrAmountExceedsBalance) {
		t.Errorf("err = %v, want ErrAmountExceedsBalance", err)
	}
	if e.Nonce != 1 || e.ReleasedAmount != 400 {
		t.Errorf("failed release mutated state: nonce=%d released=%d", e.Nonce, e.ReleasedAmount)
	}

	if err := e.ReleaseBySignature(0, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v", err)
	}

	// Exact remainder completes the escrow.
	if err := e.ReleaseBySignature(600, 1); err != nil {
		t.Fatal(err)
	}
	if !e.Released || e.Nonce != 2 {
		t.Errorf("released=%v nonce=%d", e.Released, e.Nonce)
	}

	// Replaying the completing authorization fails on nonce currency
	// before any state check.
	if err := e.ReleaseBySignature(600, 1); !errors.Is(err, ErrNonceMismatch) {
		t.Errorf("replay after completion: err = %v, want ErrNonceMismatch", err)
	}
	if err := e.ReleaseBySignature(1, 2); !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("release after completion: err = %v", err)
	}
}

func TestRefund(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	e, _ := NewEscrow("a", "b", 1, deadline)
	_ = e.Fund("TON", 1000, "", time.Now())

	if _, err := e.Refund(deadline.Add(-time.Minute)); !errors.Is(err, ErrRefundNotYetEligible) {
		t.Errorf("before deadline: err = %v", err)
	}

	amount, err := e.Refund(deadline.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if amount != 1000 || !e.Refunded {
		t.Errorf("refunded %d, flag %v", amount, e.Refunded)
	}

	if _, err := e.Refund(deadline.Add(time.Hour)); !errors.Is(err, ErrAlreadyRefunded) {
		t.Errorf("double refund: err = %v", err)
	}
}

func TestRefund_PartialAfterSignatureRelease(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	e, _ := NewEscrow("a", "b", 1, deadline)
	_ = e.Fund("TON", 1000, "", time.Now())
	_ = e.ReleaseBySignature(300, 0)

	amount, err := e.Refund(deadline.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if amount != 700 {
		t.Errorf("refund amount = %d, want 700 (the unreleased part)", amount)
	}
}

func TestCancel(t *testing.T) {
	e, _ := NewEscrow("a", "b", 1, time.Now())
	if err := e.Cancel(); err != nil {
		t.Fatal(err)
	}
	if e.Status() != EscrowStatusCancelled {
		t.Errorf("status = %s", e.Status())
	}

	// Cancelled escrows accept nothing.
	if err := e.Fund("TON", 100, "", time.Now()); !errors.Is(err, ErrEscrowCancelled) {
		t.Errorf("fund after cancel: err = %v", err)
	}
	if err := e.Cancel(); !errors.Is(err, ErrEscrowCancelled) {
		t.Errorf("double cancel: err = %v", err)
	}

	// Funded escrows cannot be cancelled, only refunded.
	funded := newFundedEscrow(t, 100, 1)
	if err := funded.Cancel(); !errors.Is(err, ErrAlreadyFunded) {
		t.Errorf("cancel after fund: err = %v", err)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	released := newFundedEscrow(t, 100, 1)
	_, _ = released.ReleaseFull()

	refunded := newFundedEscrow(t, 100, 1)
	refunded.Deadline = time.Now().Add(-time.Hour)
	_, _ = refunded.Refund(time.Now())

	for name, e := range map[string]*Escrow{"released": released, "refunded": refunded} {
		if !e.Terminal() {
			t.Fatalf("%s escrow not terminal", name)
		}
		if _, err := e.ReleaseFull(); err == nil {
			t.Errorf("%s: ReleaseFull succeeded", name)
		}
		if err := e.ReleaseBySignature(1, e.Nonce); err == nil {
			t.Errorf("%s: ReleaseBySignature succeeded", name)
		}
		if _, err := e.Refund(time.Now().Add(100 * 365 * 24 * time.Hour)); err == nil {
			t.Errorf("%s: Refund succeeded", name)
		}
		if err := e.Cancel(); err == nil {
			t.Errorf("%s: Cancel succeeded", name)
		}
	}
}

func TestIsParty(t *testing.T) {
	e, _ := NewEscrow("client", "freelancer", 1, time.Now())
	if !e.IsParty("client") || !e.IsParty("freelancer") {
		t.Error("parties not recognized")
	}
	if e.IsParty("stranger") {
		t.Error("stranger recognized as party")
	}
}
