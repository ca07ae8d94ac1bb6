package schedule

import "testing"

func TestGenerate_RemainderOnLastTranche(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		installments int
		want         []int64
	}{
		{"even split", 1000, 4, []int64{250, 250, 250, 250}},
		{"remainder to last", 100, 3, []int64{33, 33, 34}},
		{"single tranche", 500, 1, []int64{500}},
		{"more tranches than units", 3, 5, []int64{0, 0, 0, 0, 3}},
		{"two tranches odd", 7, 2, []int64{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := Generate(tt.total, tt.installments, 0)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(sched) != tt.installments {
				t.Fatalf("len = %d, want %d", len(sched), tt.installments)
			}

			var sum int64
			for i, inst := range sched {
				if inst.Index != i+1 {
					t.Errorf("installment %d has index %d, want %d", i, inst.Index, i+1)
				}
				if inst.Amount != tt.want[i] {
					t.Errorf("installment %d amount = %d, want %d", inst.Index, inst.Amount, tt.want[i])
				}
				sum += inst.Amount
			}
			if sum != tt.total {
				t.Errorf("amounts sum to %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestGenerate_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		installments int
		paid         int
	}{
		{"zero installments", 100, 0, 0},
		{"negative installments", 100, -1, 0},
		{"zero amount", 0, 3, 0},
		{"negative amount", -5, 3, 0},
		{"negative paid", 100, 3, -1},
		{"paid exceeds total", 100, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.total, tt.installments, tt.paid); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerate_PaidFlags(t *testing.T) {
	sched, err := Generate(100, 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, inst := range sched {
		wantPaid := inst.Index <= 2
		if inst.Paid != wantPaid {
			t.Errorf("installment %d paid = %v, want %v", inst.Index, inst.Paid, wantPaid)
		}
	}

	next, ok := Next(sched)
	if !ok {
		t.Fatal("expected a next installment")
	}
	if next.Index != 3 {
		t.Errorf("next index = %d, want 3", next.Index)
	}

	if got := TotalPaid(sched); got != 50 {
		t.Errorf("TotalPaid = %d, want 50", got)
	}
	if got := RemainingBalance(100, TotalPaid(sched)); got != 50 {
		t.Errorf("RemainingBalance = %d, want 50", got)
	}
}

func TestNext_Exhausted(t *testing.T) {
	sched, err := Generate(100, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := Next(sched); ok {
		t.Fatal("expected no next installment on fully paid schedule")
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		paid, total int
		want        int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67}, // rounds up from 66.67
		{3, 3, 100},
		{1, 2, 50},
		{1, 8, 13}, // rounds up from 12.5
		{0, 0, 0},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := ProgressPercent(tt.paid, tt.total); got != tt.want {
			t.Errorf("ProgressPercent(%d, %d) = %d, want %d", tt.paid, tt.total, got, tt.want)
		}
	}
}
