package services

import (
	"context"
	"fmt"
	"time"

	"github.com/freelance-escrow/backend/internal/auth"
	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/models"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/freelance-escrow/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletService handles TON Connect sessions. A verified ton_proof is the
// only way to obtain an API token, and the public key it attests is what
// release authorizations are later checked against.
type WalletService struct {
	walletRepo *repositories.WalletRepo
	cfg        *config.Config
	log        *zap.Logger
}

func NewWalletService(walletRepo *repositories.WalletRepo, cfg *config.Config, log *zap.Logger) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		cfg:        cfg,
		log:        log,
	}
}

// GeneratePayload issues a single-use nonce for ton_proof signing.
func (s *WalletService) GeneratePayload(ctx context.Context) (string, error) {
	payload := uuid.NewString()
	p, err := s.walletRepo.CreateProofPayload(ctx, payload, 5*time.Minute)
	if err != nil {
		return "", fmt.Errorf("failed to create proof payload: %w", err)
	}
	return p.Payload, nil
}

type ConnectWalletRequest struct {
	Address         string    `json:"address"`          // raw: "0:abc..."
	AddressFriendly string    `json:"address_friendly"` // "EQA..." / "UQA..."
	Network         string    `json:"network"`          // "mainnet" / "testnet"
	PublicKey       string    `json:"public_key"`       // hex
	Proof           ton.Proof `json:"proof"`
}

type ConnectWalletResult struct {
	Wallet *models.Wallet `json:"wallet"`
	Token  string         `json:"token"`
}

// ConnectWallet verifies a ton_proof and opens a session for the address.
func (s *WalletService) ConnectWallet(ctx context.Context, req ConnectWalletRequest) (*ConnectWalletResult, error) {
	// Burn the nonce first so a failed proof still consumes it.
	if err := s.walletRepo.ConsumeProofPayload(ctx, req.Proof.Payload); err != nil {
		return nil, fmt.Errorf("invalid or expired proof payload: %w", err)
	}

	workchain, addrHash, err := ton.ParseRawAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid TON address: %w", err)
	}

	if req.Network != "" && req.Network != s.cfg.TONNetwork {
		return nil, fmt.Errorf("network mismatch: expected %s, got %s", s.cfg.TONNetwork, req.Network)
	}

	if err := ton.VerifyProof(req.PublicKey, addrHash, workchain, req.Proof, s.cfg.ProofAllowedDomains); err != nil {
		return nil, fmt.Errorf("ton_proof verification failed: %w", err)
	}

	wallet := &models.Wallet{
		Address:         req.Address,
		AddressFriendly: req.AddressFriendly,
		Network:         req.Network,
		PublicKey:       req.PublicKey,
		ProofPayload:    req.Proof.Payload,
		ProofSignature:  req.Proof.Signature,
		ProofTimestamp:  req.Proof.Timestamp,
		ProofDomain:     req.Proof.Domain.Value,
		Verified:        true,
	}
	if err := s.walletRepo.ConnectWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, wallet.AddressFriendly, wallet.ID, s.cfg.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.Info("wallet connected",
		zap.String("address", wallet.AddressFriendly),
		zap.String("network", wallet.Network),
	)
	return &ConnectWalletResult{Wallet: wallet, Token: token}, nil
}

func (s *WalletService) DisconnectWallet(ctx context.Context, address string) error {
	wallet, err := s.walletRepo.GetActiveByAddress(ctx, address)
	if err != nil {
		return err
	}
	if err := s.walletRepo.DeactivateWallets(ctx, wallet.Address); err != nil {
		return err
	}

	s.log.Info("wallet disconnected", zap.String("address", address))
	return nil
}

func (s *WalletService) GetActiveWallet(ctx context.Context, address string) (*models.Wallet, error) {
	return s.walletRepo.GetActiveByAddress(ctx, address)
}
