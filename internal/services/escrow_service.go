package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/freelance-escrow/backend/internal/bridge"
	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/events"
	"github.com/freelance-escrow/backend/internal/ipfs"
	"github.com/freelance-escrow/backend/internal/models"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/freelance-escrow/backend/internal/resolver"
	"github.com/freelance-escrow/backend/internal/schedule"
	"github.com/freelance-escrow/backend/internal/ton"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrBridgeDisabled = errors.New("bridge is not configured")
var ErrNotesDisabled = errors.New("note storage is not configured")

// EscrowService orchestrates the escrow ledger. Every transition runs on
// an in-memory copy first, then commits through a guarded repository
// write; audit entries and events follow a successful commit and never
// block it.
type EscrowService struct {
	escrowRepo *repositories.EscrowRepo
	auditRepo  *repositories.AuditRepo
	walletRepo *repositories.WalletRepo
	resolver   *resolver.Resolver
	bridge     *bridge.Client
	ipfs       *ipfs.Client
	publisher  events.Publisher
	rdb        *redis.Client
	cfg        *config.Config
	log        *zap.Logger
}

func NewEscrowService(
	escrowRepo *repositories.EscrowRepo,
	auditRepo *repositories.AuditRepo,
	walletRepo *repositories.WalletRepo,
	res *resolver.Resolver,
	bridgeClient *bridge.Client,
	ipfsClient *ipfs.Client,
	publisher events.Publisher,
	rdb *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		escrowRepo: escrowRepo,
		auditRepo:  auditRepo,
		walletRepo: walletRepo,
		resolver:   res,
		bridge:     bridgeClient,
		ipfs:       ipfsClient,
		publisher:  publisher,
		rdb:        rdb,
		cfg:        cfg,
		log:        log,
	}
}

// domain is the deployment identity every release authorization is
// verified against.
func (s *EscrowService) domain() ton.Domain {
	return ton.Domain{
		Name:         config.ProtocolName,
		Version:      config.ProtocolVersion,
		ChainID:      s.cfg.ChainID(),
		EscrowWallet: s.cfg.EscrowWalletAddress,
	}
}

func (s *EscrowService) audit(ctx context.Context, escrowID int64, actor, action, reason, txRef string) {
	err := s.auditRepo.Log(ctx, &models.AuditEntry{
		EscrowID: escrowID,
		Actor:    actor,
		Action:   action,
		Reason:   reason,
		TxRef:    txRef,
	})
	if err != nil {
		s.log.Warn("audit log write failed",
			zap.Int64("escrow_id", escrowID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *EscrowService) publish(ctx context.Context, eventType string, payload map[string]any) {
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    eventType,
		Payload: payload,
	})
}

func escrowCacheKey(id int64) string {
	return "cache:escrow:" + strconv.FormatInt(id, 10)
}

// invalidate drops the read-side cache entry after a committed
// transition. Transitions themselves always load from the repository.
func (s *EscrowService) invalidate(ctx context.Context, id int64) {
	if s.rdb != nil {
		s.rdb.Del(ctx, escrowCacheKey(id))
	}
}

// CreateEscrow registers a new engagement. Party identifiers may be plain
// addresses or TON DNS names; the ledger stores resolved addresses only.
// The client side must resolve to the caller's own wallet: the client is
// the party that creates and funds the escrow, so nobody may open one in
// another address's name. The refund deadline is fixed at creation from
// the configured offset.
func (s *EscrowService) CreateEscrow(ctx context.Context, caller, clientIdent, freelancerIdent string, totalInstallments int) (*models.Escrow, error) {
	client, err := s.resolver.Resolve(ctx, clientIdent)
	if err != nil {
		return nil, models.ErrInvalidParty
	}
	if !ton.SameAddress(caller, client) {
		return nil, models.ErrUnauthorized
	}
	freelancer, err := s.resolver.Resolve(ctx, freelancerIdent)
	if err != nil {
		return nil, models.ErrInvalidParty
	}

	deadline := time.Now().UTC().Add(s.cfg.RefundDeadline)
	escrow, err := models.NewEscrow(client, freelancer, totalInstallments, deadline)
	if err != nil {
		return nil, err
	}

	if err := s.escrowRepo.Create(ctx, escrow); err != nil {
		return nil, err
	}

	s.audit(ctx, escrow.ID, client, models.AuditActionCreate, "", "")
	s.publish(ctx, events.EventEscrowCreated, map[string]any{
		"escrow_id":          escrow.ID,
		"client":             client,
		"freelancer":         freelancer,
		"total_installments": escrow.TotalInstallments,
		"deadline":           escrow.Deadline,
	})

	s.log.Info("escrow created",
		zap.Int64("escrow_id", escrow.ID),
		zap.String("client", client),
		zap.String("freelancer", freelancer),
		zap.Int("installments", escrow.TotalInstallments),
	)
	return escrow, nil
}

// Fund records the single deposit. from must be the escrow's client; the
// deposit watcher enforces the same check against the on-chain sender.
func (s *EscrowService) Fund(ctx context.Context, id int64, from, token string, amount int64, txHash string) (*models.Escrow, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if from != escrow.Client {
		return nil, models.ErrUnauthorized
	}
	if token == "" {
		token = s.cfg.NativeToken
	}

	now := time.Now().UTC()
	if err := escrow.Fund(token, amount, txHash, now); err != nil {
		return nil, err
	}
	if err := s.escrowRepo.MarkFunded(ctx, escrow); err != nil {
		return nil, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, from, models.AuditActionDeposit, "", txHash)
	s.publish(ctx, events.EventEscrowFunded, map[string]any{
		"escrow_id": escrow.ID,
		"token":     token,
		"amount":    amount,
		"tx_hash":   txHash,
	})

	s.log.Info("escrow funded",
		zap.Int64("escrow_id", escrow.ID),
		zap.String("token", token),
		zap.Int64("amount", amount),
	)
	return escrow, nil
}

// ReleaseFull pays the entire unreleased balance to the freelancer.
// Client only; single-shot escrows only.
func (s *EscrowService) ReleaseFull(ctx context.Context, id int64, actor string) (*models.Escrow, int64, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if actor != escrow.Client {
		return nil, 0, models.ErrUnauthorized
	}

	prevPaid, prevNonce := escrow.InstallmentsPaid, escrow.Nonce
	amount, err := escrow.ReleaseFull()
	if err != nil {
		return nil, 0, err
	}
	if err := s.escrowRepo.CommitRelease(ctx, escrow, prevPaid, prevNonce); err != nil {
		return nil, 0, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, actor, models.AuditActionRelease, "", "")
	s.publish(ctx, events.EventEscrowReleased, map[string]any{
		"escrow_id":  escrow.ID,
		"freelancer": escrow.Freelancer,
		"amount":     amount,
	})

	s.log.Info("escrow released in full",
		zap.Int64("escrow_id", escrow.ID),
		zap.Int64("amount", amount),
	)
	return escrow, amount, nil
}

// ReleaseInstallment pays the next tranche in schedule order. Client only.
func (s *EscrowService) ReleaseInstallment(ctx context.Context, id int64, actor string) (*models.Escrow, int, int64, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, 0, err
	}
	if actor != escrow.Client {
		return nil, 0, 0, models.ErrUnauthorized
	}

	prevPaid, prevNonce := escrow.InstallmentsPaid, escrow.Nonce
	index, amount, err := escrow.ReleaseInstallment()
	if err != nil {
		return nil, 0, 0, err
	}
	if err := s.escrowRepo.CommitRelease(ctx, escrow, prevPaid, prevNonce); err != nil {
		return nil, 0, 0, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, actor, models.AuditActionInstallment,
		"installment "+strconv.Itoa(index)+" of "+strconv.Itoa(escrow.TotalInstallments), "")
	s.publish(ctx, events.EventInstallmentReleased, map[string]any{
		"escrow_id":  escrow.ID,
		"freelancer": escrow.Freelancer,
		"index":      index,
		"amount":     amount,
		"progress":   escrow.ProgressPercent(),
	})
	if escrow.Released {
		s.publish(ctx, events.EventEscrowReleased, map[string]any{
			"escrow_id":  escrow.ID,
			"freelancer": escrow.Freelancer,
			"amount":     amount,
		})
	}

	s.log.Info("installment released",
		zap.Int64("escrow_id", escrow.ID),
		zap.Int("index", index),
		zap.Int64("amount", amount),
		zap.Bool("final", escrow.Released),
	)
	return escrow, index, amount, nil
}

// ReleaseWithSignature applies a client-signed release authorization.
// Anyone may submit it; authority comes from the signature, verified
// against the client's connected wallet key. Checks run in a fixed order:
// nonce currency, then signature, then balance.
func (s *EscrowService) ReleaseWithSignature(ctx context.Context, auth ton.ReleaseAuthorization) (*models.Escrow, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, auth.EscrowID)
	if err != nil {
		return nil, err
	}
	if auth.Freelancer != escrow.Freelancer {
		return nil, models.ErrInvalidParty
	}
	if auth.Nonce != escrow.Nonce {
		return nil, models.ErrNonceMismatch
	}

	wallet, err := s.walletRepo.GetByAddress(ctx, escrow.Client)
	if err != nil {
		return nil, models.ErrInvalidSignature
	}
	if err := ton.VerifyRelease(wallet.PublicKey, s.domain(), auth); err != nil {
		s.log.Warn("release authorization rejected",
			zap.Int64("escrow_id", auth.EscrowID),
			zap.Int64("nonce", auth.Nonce),
			zap.Error(err),
		)
		return nil, models.ErrInvalidSignature
	}

	prevPaid, prevNonce := escrow.InstallmentsPaid, escrow.Nonce
	if err := escrow.ReleaseBySignature(auth.Amount, auth.Nonce); err != nil {
		return nil, err
	}
	if err := s.escrowRepo.CommitRelease(ctx, escrow, prevPaid, prevNonce); err != nil {
		return nil, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, escrow.Client, models.AuditActionSignatureRelease,
		"nonce "+strconv.FormatInt(auth.Nonce, 10), "")
	s.publish(ctx, events.EventSignatureReleased, map[string]any{
		"escrow_id":  escrow.ID,
		"freelancer": escrow.Freelancer,
		"amount":     auth.Amount,
		"nonce":      auth.Nonce,
	})
	if escrow.Released {
		s.publish(ctx, events.EventEscrowReleased, map[string]any{
			"escrow_id":  escrow.ID,
			"freelancer": escrow.Freelancer,
			"amount":     auth.Amount,
		})
	}

	s.log.Info("signature release applied",
		zap.Int64("escrow_id", escrow.ID),
		zap.Int64("amount", auth.Amount),
		zap.Int64("nonce", auth.Nonce),
	)
	return escrow, nil
}

// Refund returns the unreleased balance to the client once the deadline
// has passed. Client only; eligibility is evaluated at call time.
func (s *EscrowService) Refund(ctx context.Context, id int64, actor string) (*models.Escrow, int64, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if actor != escrow.Client {
		return nil, 0, models.ErrUnauthorized
	}

	amount, err := escrow.Refund(time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	if err := s.escrowRepo.MarkRefunded(ctx, escrow.ID); err != nil {
		return nil, 0, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, actor, models.AuditActionRefund, "", "")
	s.publish(ctx, events.EventEscrowRefunded, map[string]any{
		"escrow_id": escrow.ID,
		"client":    escrow.Client,
		"amount":    amount,
	})

	s.log.Info("escrow refunded",
		zap.Int64("escrow_id", escrow.ID),
		zap.Int64("amount", amount),
	)
	return escrow, amount, nil
}

// Cancel voids an escrow before any deposit lands. Client only.
func (s *EscrowService) Cancel(ctx context.Context, id int64, actor string) (*models.Escrow, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != escrow.Client {
		return nil, models.ErrUnauthorized
	}

	if err := escrow.Cancel(); err != nil {
		return nil, err
	}
	if err := s.escrowRepo.MarkCancelled(ctx, escrow.ID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, escrow.ID)

	s.audit(ctx, escrow.ID, actor, models.AuditActionCancel, "", "")
	s.publish(ctx, events.EventEscrowCancelled, map[string]any{
		"escrow_id": escrow.ID,
	})

	return escrow, nil
}

// GetEscrow reads through the redis cache. Entries expire on a short TTL
// and are dropped on every committed transition, so reads are at most
// one TTL stale and only between instances.
func (s *EscrowService) GetEscrow(ctx context.Context, id int64) (*models.Escrow, error) {
	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, escrowCacheKey(id)).Bytes(); err == nil {
			var cached models.Escrow
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(escrow); err == nil {
			s.rdb.Set(ctx, escrowCacheKey(id), data, s.cfg.CacheTTL)
		}
	}
	return escrow, nil
}

func (s *EscrowService) ListEscrows(ctx context.Context, f repositories.EscrowFilter) ([]models.Escrow, error) {
	return s.escrowRepo.List(ctx, f)
}

// GetSchedule returns the full installment schedule with paid flags. The
// schedule is derived, never stored; an unfunded escrow has no amounts to
// split yet.
func (s *EscrowService) GetSchedule(ctx context.Context, id int64) (*models.Escrow, []schedule.Installment, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !escrow.Funded {
		return nil, nil, models.ErrNotFunded
	}
	sched, err := schedule.Generate(escrow.TotalAmount, escrow.TotalInstallments, escrow.InstallmentsPaid)
	if err != nil {
		return nil, nil, err
	}
	return escrow, sched, nil
}

func (s *EscrowService) GetAuditLog(ctx context.Context, escrowID int64, limit, offset int, newestFirst bool) ([]models.AuditEntry, error) {
	if _, err := s.escrowRepo.GetByID(ctx, escrowID); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByEscrow(ctx, escrowID, limit, offset, newestFirst)
}

// LogTransaction records an off-ledger annotation from one of the
// parties. Informational only; it never changes escrow state.
func (s *EscrowService) LogTransaction(ctx context.Context, escrowID int64, actor, action, reason, txRef string) (*models.AuditEntry, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !escrow.IsParty(actor) {
		return nil, models.ErrUnauthorized
	}
	if !models.IsValidAuditAction(action) {
		action = models.AuditActionUpdate
	}

	entry := &models.AuditEntry{
		EscrowID: escrowID,
		Actor:    actor,
		Action:   action,
		Reason:   reason,
		TxRef:    txRef,
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// BridgeQuote prices moving released funds to another chain. Freelancer
// only, and only once something has actually been released. The quote is
// advisory; no transaction is submitted.
func (s *EscrowService) BridgeQuote(ctx context.Context, escrowID int64, actor, destinationChain, toAddress string) (*bridge.Quote, error) {
	if s.bridge == nil || !s.bridge.Enabled() {
		return nil, ErrBridgeDisabled
	}
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if actor != escrow.Freelancer {
		return nil, models.ErrUnauthorized
	}
	if escrow.ReleasedAmount <= 0 {
		return nil, models.ErrNotFunded
	}

	quote, err := s.bridge.GetQuote(ctx, bridge.QuoteRequest{
		SourceChain:      "ton",
		DestinationChain: destinationChain,
		Token:            escrow.Token,
		Amount:           escrow.ReleasedAmount,
		FromAddress:      escrow.Freelancer,
		ToAddress:        toAddress,
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, escrow.ID, actor, models.AuditActionBridge,
		"quote to "+destinationChain, quote.RouteID)
	return quote, nil
}

// SetNote pins a job note to IPFS and stores the CID on the escrow.
// Either party may annotate.
func (s *EscrowService) SetNote(ctx context.Context, escrowID int64, actor string, note map[string]any) (string, error) {
	if s.ipfs == nil || !s.ipfs.Enabled() {
		return "", ErrNotesDisabled
	}
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return "", err
	}
	if !escrow.IsParty(actor) {
		return "", models.ErrUnauthorized
	}

	cid, err := s.ipfs.PinJSON(ctx, note)
	if err != nil {
		return "", err
	}
	if err := s.escrowRepo.SetNoteCID(ctx, escrowID, cid); err != nil {
		return "", err
	}
	s.invalidate(ctx, escrowID)

	s.audit(ctx, escrowID, actor, models.AuditActionUpdate, "note updated", cid)
	return cid, nil
}

// GetNote fetches the pinned note for an escrow.
func (s *EscrowService) GetNote(ctx context.Context, escrowID int64) (map[string]any, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.NoteCID == nil || *escrow.NoteCID == "" {
		return nil, models.ErrEscrowNotFound
	}
	if s.ipfs == nil || !s.ipfs.Enabled() {
		return nil, ErrNotesDisabled
	}

	var note map[string]any
	if err := s.ipfs.FetchJSON(ctx, *escrow.NoteCID, &note); err != nil {
		return nil, err
	}
	return note, nil
}
