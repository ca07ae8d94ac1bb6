package ton

import (
	"bytes"

	"github.com/xssnick/tonutils-go/address"
)

// SameAddress reports whether two identifiers name the same account.
// Comparison is by workchain and account data, so bounceable/testnet
// flag differences in the friendly form do not matter, and a raw
// "0:hex" form matches its friendly encoding.
func SameAddress(a, b string) bool {
	pa, err := parseAnyAddr(a)
	if err != nil {
		return false
	}
	pb, err := parseAnyAddr(b)
	if err != nil {
		return false
	}
	return pa.Workchain() == pb.Workchain() && bytes.Equal(pa.Data(), pb.Data())
}

func parseAnyAddr(s string) (*address.Address, error) {
	addr, err := address.ParseAddr(s)
	if err == nil {
		return addr, nil
	}
	return address.ParseRawAddr(s)
}
