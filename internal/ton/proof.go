package ton

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// TonProofPrefix is the fixed item prefix from the TON Connect spec.
	// https://docs.ton.org/develop/dapps/ton-connect/sign#checking-ton_proof-on-server-side
	TonProofPrefix = "ton-proof-item-v2/"

	// TonConnectPrefix precedes the SHA256 of the assembled message.
	TonConnectPrefix = "ton-connect"

	// MaxProofAge bounds how old a proof timestamp may be.
	MaxProofAge = 5 * time.Minute
)

// Proof carries the signed portion of a TON Connect ton_proof.
type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`   // server-issued nonce
	Signature string      `json:"signature"` // hex
}

type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// VerifyProof checks a TON Connect wallet-ownership proof:
//
//	message   = "ton-proof-item-v2/" ++ workchain(4 LE) ++ address_hash(32)
//	            ++ domain_len(4 LE) ++ domain ++ timestamp(8 LE) ++ payload
//	signature = Ed25519(pubkey, sha256(0xffff ++ "ton-connect" ++ sha256(message)))
func VerifyProof(pubKeyHex string, addrHash []byte, workchain int32, proof Proof, allowedDomains []string) error {
	proofTime := time.Unix(proof.Timestamp, 0)
	if time.Since(proofTime) > MaxProofAge {
		return fmt.Errorf("proof expired: %s old", time.Since(proofTime).Round(time.Second))
	}
	if proofTime.After(time.Now().Add(1 * time.Minute)) {
		return fmt.Errorf("proof timestamp is in the future")
	}

	if !isDomainAllowed(proof.Domain.Value, allowedDomains) {
		return fmt.Errorf("domain %q not in allowed list", proof.Domain.Value)
	}

	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	sig, err := hex.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	message := []byte(TonProofPrefix)
	message = appendUint32LE(message, uint32(workchain))
	message = append(message, addrHash...)
	message = appendUint32LE(message, uint32(proof.Domain.LengthBytes))
	message = append(message, []byte(proof.Domain.Value)...)
	message = appendUint64LE(message, uint64(proof.Timestamp))
	message = append(message, []byte(proof.Payload)...)

	digest := connectDigest(message)
	if !ed25519.Verify(pubKey, digest, sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// connectDigest computes sha256(0xffff ++ "ton-connect" ++ sha256(message)),
// the final digest signed by TON Connect wallets.
func connectDigest(message []byte) []byte {
	msgHash := sha256.Sum256(message)

	outer := []byte{0xff, 0xff}
	outer = append(outer, []byte(TonConnectPrefix)...)
	outer = append(outer, msgHash[:]...)

	final := sha256.Sum256(outer)
	return final[:]
}

// ParseRawAddress parses "0:abcdef..." (or "-1:...") into workchain and
// the 32-byte account hash.
func ParseRawAddress(raw string) (workchain int32, addrHash []byte, err error) {
	var wc int
	var hashHex string
	n, _ := fmt.Sscanf(raw, "%d:%s", &wc, &hashHex)
	if n != 2 {
		return 0, nil, fmt.Errorf("invalid raw address format: %s", raw)
	}
	addrHash, err = hex.DecodeString(hashHex)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid address hash hex: %w", err)
	}
	if len(addrHash) != 32 {
		return 0, nil, fmt.Errorf("address hash must be 32 bytes, got %d", len(addrHash))
	}
	return int32(wc), addrHash, nil
}

func isDomainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true // empty list allows everything (dev mode)
	}
	for _, d := range allowed {
		if d == domain {
			return true
		}
	}
	return false
}

func appendUint32LE(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint64LE(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}
