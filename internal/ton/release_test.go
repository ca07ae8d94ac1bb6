package ton

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
)

func testDomain() Domain {
	return Domain{
		Name:         "FreelanceEscrow",
		Version:      "1",
		ChainID:      -3,
		EscrowWallet: "EQEscrowWallet",
	}
}

func signedAuth(t *testing.T, priv ed25519.PrivateKey, d Domain, escrowID int64, freelancer string, amount, nonce int64) ReleaseAuthorization {
	t.Helper()
	return ReleaseAuthorization{
		EscrowID:   escrowID,
		Freelancer: freelancer,
		Amount:     amount,
		Nonce:      nonce,
		Signature:  SignRelease(priv, d, escrowID, freelancer, amount, nonce),
	}
}

func TestVerifyRelease_Valid(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	d := testDomain()

	auth := signedAuth(t, priv, d, 42, "EQFreelancer", 500, 0)
	if err := VerifyRelease(hex.EncodeToString(pub), d, auth); err != nil {
		t.Fatalf("expected valid authorization, got: %v", err)
	}
}

func TestVerifyRelease_TamperedFields(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pubHex := hex.EncodeToString(pub)
	d := testDomain()

	tests := []struct {
		name   string
		mutate func(*ReleaseAuthorization)
	}{
		{"amount", func(a *ReleaseAuthorization) { a.Amount = 9999 }},
		{"nonce", func(a *ReleaseAuthorization) { a.Nonce = 7 }},
		{"escrow id", func(a *ReleaseAuthorization) { a.EscrowID = 43 }},
		{"freelancer", func(a *ReleaseAuthorization) { a.Freelancer = "EQAttacker" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := signedAuth(t, priv, d, 42, "EQFreelancer", 500, 0)
			tt.mutate(&auth)
			if err := VerifyRelease(pubHex, d, auth); err == nil {
				t.Fatalf("tampered %s accepted", tt.name)
			}
		})
	}
}

// A signature produced for one deployment must not verify against
// another: different chain, different escrow wallet, different protocol
// version.
func TestVerifyRelease_WrongDomain(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pubHex := hex.EncodeToString(pub)

	auth := signedAuth(t, priv, testDomain(), 42, "EQFreelancer", 500, 0)

	tests := []struct {
		name   string
		domain Domain
	}{
		{"different chain", Domain{Name: "FreelanceEscrow", Version: "1", ChainID: -239, EscrowWallet: "EQEscrowWallet"}},
		{"different wallet", Domain{Name: "FreelanceEscrow", Version: "1", ChainID: -3, EscrowWallet: "EQOtherWallet"}},
		{"different version", Domain{Name: "FreelanceEscrow", Version: "2", ChainID: -3, EscrowWallet: "EQEscrowWallet"}},
		{"different name", Domain{Name: "OtherProtocol", Version: "1", ChainID: -3, EscrowWallet: "EQEscrowWallet"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyRelease(pubHex, tt.domain, auth); err == nil {
				t.Fatal("cross-domain signature accepted")
			}
		})
	}
}

func TestVerifyRelease_WrongKey(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	otherPub, _, _ := ed25519.GenerateKey(nil)
	d := testDomain()

	auth := signedAuth(t, priv, d, 42, "EQFreelancer", 500, 0)
	if err := VerifyRelease(hex.EncodeToString(otherPub), d, auth); err == nil {
		t.Fatal("signature by a different key accepted")
	}
}

func TestVerifyRelease_MalformedInputs(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	d := testDomain()
	auth := signedAuth(t, priv, d, 42, "EQFreelancer", 500, 0)

	if err := VerifyRelease("not-hex", d, auth); err == nil {
		t.Error("invalid public key hex accepted")
	}
	if err := VerifyRelease(hex.EncodeToString(pub[:16]), d, auth); err == nil {
		t.Error("short public key accepted")
	}

	bad := auth
	bad.Signature = "zz"
	if err := VerifyRelease(hex.EncodeToString(pub), d, bad); err == nil {
		t.Error("invalid signature hex accepted")
	}

	bad = auth
	bad.Signature = hex.EncodeToString(make([]byte, 10))
	if err := VerifyRelease(hex.EncodeToString(pub), d, bad); err == nil {
		t.Error("short signature accepted")
	}
}

// The digest is deterministic: the same inputs always produce the same
// bytes, and any input change produces different bytes.
func TestReleaseDigest_Deterministic(t *testing.T) {
	d := testDomain()

	d1 := ReleaseDigest(d, 1, "EQFreelancer", 100, 0)
	d2 := ReleaseDigest(d, 1, "EQFreelancer", 100, 0)
	if hex.EncodeToString(d1) != hex.EncodeToString(d2) {
		t.Fatal("digest not deterministic")
	}

	d3 := ReleaseDigest(d, 1, "EQFreelancer", 100, 1)
	if hex.EncodeToString(d1) == hex.EncodeToString(d3) {
		t.Fatal("nonce change did not change digest")
	}
}
