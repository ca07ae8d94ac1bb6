package ton

import "testing"

func TestSameAddress(t *testing.T) {
	const (
		bounceable    = "EQABAgMEBQYHCAkKCwwNDg8QERITFBUWFxgZGhscHR4fIP8B"
		nonBounceable = "UQABAgMEBQYHCAkKCwwNDg8QERITFBUWFxgZGhscHR4fIKLE"
		raw           = "0:0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
		other         = "EQCqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqseb"
	)

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical friendly", bounceable, bounceable, true},
		{"bounceable vs non-bounceable", bounceable, nonBounceable, true},
		{"friendly vs raw", bounceable, raw, true},
		{"raw vs non-bounceable", raw, nonBounceable, true},
		{"different accounts", bounceable, other, false},
		{"garbage left", "not-an-address", bounceable, false},
		{"garbage right", bounceable, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameAddress(tt.a, tt.b); got != tt.want {
				t.Errorf("SameAddress(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
