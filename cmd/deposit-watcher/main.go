package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/db"
	"github.com/freelance-escrow/backend/internal/events"
	"github.com/freelance-escrow/backend/internal/models"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "deposit-watcher:cursor:lt"
	redisCursorHash = "deposit-watcher:cursor:hash"
	redisProcessed  = "deposit-watcher:tx:"
	processedTTL    = 7 * 24 * time.Hour
	pollInterval    = 5 * time.Second
	txBatchSize     = 100

	memoPrefix = "escrow:"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EscrowWalletAddress == "" {
		log.Fatal("ESCROW_WALLET_ADDRESS is required")
	}

	escrowWallet, err := address.ParseAddr(cfg.EscrowWalletAddress)
	if err != nil {
		log.Fatal("invalid ESCROW_WALLET_ADDRESS", zap.String("addr", cfg.EscrowWalletAddress), zap.Error(err))
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	tonAPI, err := connectToTON(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	log.Info("deposit watcher started",
		zap.String("escrow_wallet", escrowWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, tonAPI, escrowWallet, rdb, log)

	w := &watcher{
		cfg:        cfg,
		escrowRepo: escrowRepo,
		auditRepo:  auditRepo,
		publisher:  publisher,
		rdb:        rdb,
		log:        log,
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := w.pollAndProcess(ctx, tonAPI, escrowWallet); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down deposit watcher")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// connectToTON establishes a connection to the TON network.
// If LITE_SERVER_HOST + LITE_SERVER_KEY are set, connects to a specific lite server.
// Otherwise, auto-discovers lite servers from the global TON config based on TON_NETWORK.
func connectToTON(ctx context.Context, cfg *config.Config, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return ton.NewAPIClient(client, proofPolicy).WithRetry(), nil
}

// initCursor sets the initial cursor position on first run. It stores the
// current account LastTxLT so only transactions arriving after startup
// are processed.
func initCursor(ctx context.Context, api ton.APIClientWrapped, addr *address.Address, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		log.Warn("failed to get master block for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		log.Warn("failed to get account for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		log.Info("escrow wallet not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	log.Info("cursor initialized at current account state",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
}

func loadCursorLT(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorLT).Result()
	if err != nil || val == "" {
		return 0
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt
}

func saveCursor(ctx context.Context, rdb *redis.Client, lt uint64, hash []byte) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
}

type watcher struct {
	cfg        *config.Config
	escrowRepo *repositories.EscrowRepo
	auditRepo  *repositories.AuditRepo
	publisher  events.Publisher
	rdb        *redis.Client
	log        *zap.Logger
}

// pollAndProcess runs a single poll cycle: fetch all transactions newer
// than the cursor, record matching deposits, advance the cursor.
func (w *watcher) pollAndProcess(ctx context.Context, api ton.APIClientWrapped, addr *address.Address) error {
	cursorLT := loadCursorLT(ctx, w.rdb)

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get master block: %w", err)
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil
	}

	if account.LastTxLT <= cursorLT {
		return nil
	}

	newTxs, err := fetchNewTransactions(ctx, api, addr, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	if len(newTxs) > 0 {
		w.log.Info("found new transactions", zap.Int("count", len(newTxs)))
		for _, tx := range newTxs {
			w.processIncomingTx(ctx, tx)
		}
	}

	saveCursor(ctx, w.rdb, account.LastTxLT, account.LastTxHash)
	return nil
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func fetchNewTransactions(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	account *tlb.Account,
	cursorLT uint64,
) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := api.ListTransactions(ctx, addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

// processIncomingTx handles a single incoming transfer: extracts the
// memo, matches it to an escrow, checks the sender against the escrow's
// client, and records the deposit.
func (w *watcher) processIncomingTx(ctx context.Context, tx *tlb.Transaction) {
	if tx.IO.In == nil {
		return
	}

	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil {
		return
	}

	if inMsg.Bounced {
		return
	}

	amountNano := inMsg.Amount.Nano()
	if amountNano.Sign() <= 0 || !amountNano.IsInt64() {
		return
	}

	memo := strings.TrimSpace(extractComment(inMsg))
	if !strings.HasPrefix(memo, memoPrefix) {
		return
	}

	escrowID, err := strconv.ParseInt(strings.TrimPrefix(memo, memoPrefix), 10, 64)
	if err != nil {
		w.log.Debug("unparseable memo", zap.String("memo", memo))
		return
	}

	// Idempotency: skip if already processed
	txKey := fmt.Sprintf("%s%d", redisProcessed, tx.LT)
	if w.rdb.Exists(ctx, txKey).Val() > 0 {
		return
	}

	fromAddr := inMsg.SrcAddr.String()
	w.log.Info("incoming payment detected",
		zap.Uint64("lt", tx.LT),
		zap.String("from", fromAddr),
		zap.String("amount", inMsg.Amount.String()),
		zap.Int64("escrow_id", escrowID),
	)

	escrow, err := w.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		w.log.Debug("no escrow for memo", zap.Int64("escrow_id", escrowID))
		w.rdb.Set(ctx, txKey, "no_escrow", processedTTL)
		return
	}

	// Only the client's own deposit funds the escrow. Anything else
	// stays unmatched for manual follow-up.
	if !sameAddress(fromAddr, escrow.Client) {
		w.log.Warn("deposit from non-client address ignored",
			zap.Int64("escrow_id", escrowID),
			zap.String("from", fromAddr),
			zap.String("client", escrow.Client),
		)
		w.rdb.Set(ctx, txKey, "wrong_sender", processedTTL)
		return
	}

	txRef := strconv.FormatUint(tx.LT, 10)
	if err := escrow.Fund(w.cfg.NativeToken, amountNano.Int64(), txRef, time.Now().UTC()); err != nil {
		w.log.Warn("deposit rejected",
			zap.Int64("escrow_id", escrowID),
			zap.Error(err),
		)
		w.rdb.Set(ctx, txKey, "rejected", processedTTL)
		return
	}
	if err := w.escrowRepo.MarkFunded(ctx, escrow); err != nil {
		w.log.Error("failed to mark escrow funded",
			zap.Int64("escrow_id", escrowID),
			zap.Error(err),
		)
		return
	}

	_ = w.auditRepo.Log(ctx, &models.AuditEntry{
		EscrowID: escrow.ID,
		Actor:    escrow.Client,
		Action:   models.AuditActionDeposit,
		TxRef:    txRef,
	})

	_ = w.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventEscrowFunded,
		Payload: map[string]any{
			"escrow_id": escrow.ID,
			"token":     escrow.Token,
			"amount":    escrow.TotalAmount,
			"tx_lt":     tx.LT,
			"from":      fromAddr,
		},
	})

	w.rdb.Set(ctx, txKey, "funded", processedTTL)

	w.log.Info("deposit recorded, escrow funded",
		zap.Int64("escrow_id", escrow.ID),
		zap.Uint64("tx_lt", tx.LT),
		zap.Int64("amount", escrow.TotalAmount),
	)
}

// extractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func extractComment(inMsg *tlb.InternalMessage) string {
	body := inMsg.Body
	if body == nil {
		return ""
	}

	slice := body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}

	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

// sameAddress compares two addresses by workchain and account data,
// ignoring bounceable/testnet flag differences in the friendly form.
func sameAddress(a, b string) bool {
	pa, err := address.ParseAddr(a)
	if err != nil {
		return false
	}
	pb, err := address.ParseAddr(b)
	if err != nil {
		return false
	}
	return pa.Workchain() == pb.Workchain() && bytes.Equal(pa.Data(), pb.Data())
}
