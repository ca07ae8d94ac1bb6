package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a TON Connect wallet verified via ton_proof. The ledger only
// ever operates on the friendly address; the stored public key is what
// release authorizations are verified against.
type Wallet struct {
	ID              uuid.UUID  `json:"id"`
	Address         string     `json:"address"`          // raw: 0:<hex>
	AddressFriendly string     `json:"address_friendly"` // EQ.../UQ...
	Network         string     `json:"network"`          // mainnet/testnet
	PublicKey       string     `json:"public_key"`       // hex ed25519
	ProofPayload    string     `json:"-"`
	ProofSignature  string     `json:"-"`
	ProofTimestamp  int64      `json:"-"`
	ProofDomain     string     `json:"-"`
	Verified        bool       `json:"verified"`
	ConnectedAt     time.Time  `json:"connected_at"`
	DisconnectedAt  *time.Time `json:"disconnected_at,omitempty"`
	IsActive        bool       `json:"is_active"`
}

// ProofPayload is a single-use signing nonce issued for ton_proof.
type ProofPayload struct {
	ID        uuid.UUID `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
	Used      bool      `json:"-"`
}
