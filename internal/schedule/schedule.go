// Package schedule computes installment schedules for escrows. Schedules
// are derived, never stored: they are recomputed from the ledger's
// authoritative counters every time they are needed.
package schedule

import "errors"

var ErrInvalidSchedule = errors.New("invalid installment schedule")

// Installment is one scheduled tranche. Index is 1-based.
type Installment struct {
	Index  int   `json:"index"`
	Amount int64 `json:"amount"`
	Paid   bool  `json:"paid"`
}

// Generate splits totalAmount into totalInstallments tranches by integer
// division. The division remainder is added entirely to the last tranche,
// so the tranche amounts always sum to exactly totalAmount. Tranches with
// index <= installmentsPaid are marked paid.
func Generate(totalAmount int64, totalInstallments, installmentsPaid int) ([]Installment, error) {
	if totalInstallments < 1 || totalAmount <= 0 {
		return nil, ErrInvalidSchedule
	}
	if installmentsPaid < 0 || installmentsPaid > totalInstallments {
		return nil, ErrInvalidSchedule
	}

	base := totalAmount / int64(totalInstallments)
	remainder := totalAmount % int64(totalInstallments)

	installments := make([]Installment, totalInstallments)
	for i := 0; i < totalInstallments; i++ {
		amount := base
		if i == totalInstallments-1 {
			amount += remainder
		}
		installments[i] = Installment{
			Index:  i + 1,
			Amount: amount,
			Paid:   i < installmentsPaid,
		}
	}
	return installments, nil
}

// Next returns the first unpaid tranche.
func Next(installments []Installment) (Installment, bool) {
	for _, inst := range installments {
		if !inst.Paid {
			return inst, true
		}
	}
	return Installment{}, false
}

// TotalPaid sums the amounts of paid tranches.
func TotalPaid(installments []Installment) int64 {
	var sum int64
	for _, inst := range installments {
		if inst.Paid {
			sum += inst.Amount
		}
	}
	return sum
}

// RemainingBalance is totalAmount minus totalPaid.
func RemainingBalance(totalAmount, totalPaid int64) int64 {
	return totalAmount - totalPaid
}

// ProgressPercent is round(100 * paid / total). Returns 0 when total is 0.
func ProgressPercent(installmentsPaid, totalInstallments int) int {
	if totalInstallments <= 0 {
		return 0
	}
	return int((int64(installmentsPaid)*200 + int64(totalInstallments)) / (2 * int64(totalInstallments)))
}
