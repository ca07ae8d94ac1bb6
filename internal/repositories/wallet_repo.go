package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/freelance-escrow/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrWalletNotFound = errors.New("wallet not found")

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) CreateProofPayload(ctx context.Context, payload string, ttl time.Duration) (*models.ProofPayload, error) {
	p := &models.ProofPayload{Payload: payload}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO proof_payloads (payload, expires_at)
		VALUES ($1, now() + $2)
		RETURNING id, created_at, expires_at
	`, payload, ttl).Scan(&p.ID, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConsumeProofPayload burns an unexpired payload. A payload that was
// already used, or never issued, consumes as not found.
func (r *WalletRepo) ConsumeProofPayload(ctx context.Context, payload string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proof_payloads SET used = true
		WHERE payload = $1 AND NOT used AND expires_at > now()
	`, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidSignature
	}
	return nil
}

// ConnectWallet records a verified connection, retiring any previous
// active row for the same address.
func (r *WalletRepo) ConnectWallet(ctx context.Context, w *models.Wallet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE wallets SET is_active = false, disconnected_at = now()
		WHERE address = $1 AND is_active
	`, w.Address)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO wallets (
			address, address_friendly, network, public_key,
			proof_payload, proof_signature, proof_timestamp, proof_domain,
			verified, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
		RETURNING id, connected_at
	`, w.Address, w.AddressFriendly, w.Network, w.PublicKey,
		w.ProofPayload, w.ProofSignature, w.ProofTimestamp, w.ProofDomain,
		w.Verified).Scan(&w.ID, &w.ConnectedAt)
	if err != nil {
		return err
	}
	w.IsActive = true

	return tx.Commit(ctx)
}

func (r *WalletRepo) DeactivateWallets(ctx context.Context, address string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET is_active = false, disconnected_at = now()
		WHERE address = $1 AND is_active
	`, address)
	return err
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(
		&w.ID, &w.Address, &w.AddressFriendly, &w.Network, &w.PublicKey,
		&w.ProofPayload, &w.ProofSignature, &w.ProofTimestamp, &w.ProofDomain,
		&w.Verified, &w.ConnectedAt, &w.DisconnectedAt, &w.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

const walletColumns = `
	id, address, address_friendly, network, public_key,
	proof_payload, proof_signature, proof_timestamp, proof_domain,
	verified, connected_at, disconnected_at, is_active`

func (r *WalletRepo) GetActiveByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT`+walletColumns+` FROM wallets
		WHERE (address = $1 OR address_friendly = $1) AND is_active
		ORDER BY connected_at DESC LIMIT 1
	`, address))
}

// GetByAddress returns the latest verified wallet for an address, active
// or not. Release authorizations stay verifiable after a disconnect.
func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT`+walletColumns+` FROM wallets
		WHERE (address = $1 OR address_friendly = $1) AND verified
		ORDER BY connected_at DESC LIMIT 1
	`, address))
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT`+walletColumns+` FROM wallets WHERE id = $1
	`, id))
}
