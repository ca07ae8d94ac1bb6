package ton

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// ReleasePrefix is the fixed item prefix for off-chain release
// authorizations, in the same construction as ton_proof items.
const ReleasePrefix = "escrow-release-item-v1/"

// Domain binds a release authorization to one protocol deployment. A
// signature is valid only for the exact protocol name, version, chain and
// escrow wallet it was produced for, so it cannot be replayed against a
// different deployment or network.
type Domain struct {
	Name         string // protocol name, "FreelanceEscrow"
	Version      string // protocol version, "1"
	ChainID      int32  // TON mainnet -239, testnet -3
	EscrowWallet string // verifying identity: the escrow hot wallet address
}

// ReleaseAuthorization is a client-signed permission to release amount
// from an escrow without a client-submitted transaction. The nonce binds
// it to the escrow's current counter, making each authorization
// single-use.
type ReleaseAuthorization struct {
	EscrowID   int64  `json:"escrow_id"`
	Freelancer string `json:"freelancer"`
	Amount     int64  `json:"amount"`
	Nonce      int64  `json:"nonce"`
	Signature  string `json:"signature"` // hex
}

// releaseMessage assembles the structured message covered by the
// signature. Strings are length-prefixed (4 bytes LE), integers are
// fixed-width LE, matching the ton_proof encoding conventions.
func releaseMessage(d Domain, escrowID int64, freelancer string, amount, nonce int64) []byte {
	msg := []byte(ReleasePrefix)
	msg = appendString(msg, d.Name)
	msg = appendString(msg, d.Version)
	msg = appendUint32LE(msg, uint32(d.ChainID))
	msg = appendString(msg, d.EscrowWallet)
	msg = appendUint64LE(msg, uint64(escrowID))
	msg = appendString(msg, freelancer)
	msg = appendUint64LE(msg, uint64(amount))
	msg = appendUint64LE(msg, uint64(nonce))
	return msg
}

// ReleaseDigest is the final digest a wallet signs for a release
// authorization: sha256(0xffff ++ "ton-connect" ++ sha256(message)).
func ReleaseDigest(d Domain, escrowID int64, freelancer string, amount, nonce int64) []byte {
	return connectDigest(releaseMessage(d, escrowID, freelancer, amount, nonce))
}

// SignRelease produces the hex signature for a release authorization.
// Used by tests and tooling; production clients sign in their wallet.
func SignRelease(priv ed25519.PrivateKey, d Domain, escrowID int64, freelancer string, amount, nonce int64) string {
	return hex.EncodeToString(ed25519.Sign(priv, ReleaseDigest(d, escrowID, freelancer, amount, nonce)))
}

// VerifyRelease checks a release authorization against the client's
// verified wallet public key. It only proves the signature is authentic
// and bound to this domain; nonce currency and balance checks belong to
// the ledger.
func VerifyRelease(pubKeyHex string, d Domain, auth ReleaseAuthorization) error {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	sig, err := hex.DecodeString(auth.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	digest := ReleaseDigest(d, auth.EscrowID, auth.Freelancer, auth.Amount, auth.Nonce)
	if !ed25519.Verify(pubKey, digest, sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func appendString(b []byte, s string) []byte {
	b = appendUint32LE(b, uint32(len(s)))
	return append(b, []byte(s)...)
}
