package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/db"
	"github.com/freelance-escrow/backend/internal/events"
	"github.com/freelance-escrow/backend/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	refundScanInterval = 1 * time.Minute
	payloadSweepEvery  = 10 * time.Minute
	refundScanBatch    = 100
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	publisher := events.NewRedisPublisher(rdb, log)

	log.Info("worker started")

	refundTicker := time.NewTicker(refundScanInterval)
	sweepTicker := time.NewTicker(payloadSweepEvery)
	defer refundTicker.Stop()
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-refundTicker.C:
			runRefundEligibilityScan(ctx, escrowRepo, publisher, log)
		case <-sweepTicker.C:
			runProofPayloadSweep(ctx, pool, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runRefundEligibilityScan notifies clients whose escrows passed their
// refund deadline. The refund itself stays client-invoked; this only
// publishes the eligibility event, once per escrow.
func runRefundEligibilityScan(ctx context.Context, escrowRepo *repositories.EscrowRepo, publisher events.Publisher, log *zap.Logger) {
	escrows, err := escrowRepo.ListNewlyRefundEligible(ctx, time.Now().UTC(), refundScanBatch)
	if err != nil {
		log.Error("refund eligibility scan failed", zap.Error(err))
		return
	}

	for _, escrow := range escrows {
		log.Info("escrow became refund eligible",
			zap.Int64("escrow_id", escrow.ID),
			zap.Time("deadline", escrow.Deadline),
			zap.Int64("remaining", escrow.RemainingBalance()),
		)

		_ = publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventRefundEligible,
			Payload: map[string]any{
				"escrow_id": escrow.ID,
				"client":    escrow.Client,
				"remaining": escrow.RemainingBalance(),
				"deadline":  escrow.Deadline,
			},
		})

		if err := escrowRepo.MarkRefundEligibleNotified(ctx, escrow.ID); err != nil {
			log.Error("failed to mark refund notification",
				zap.Int64("escrow_id", escrow.ID),
				zap.Error(err),
			)
		}
	}
}

// runProofPayloadSweep deletes expired ton_proof nonces.
func runProofPayloadSweep(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) {
	tag, err := pool.Exec(ctx, `DELETE FROM proof_payloads WHERE expires_at < now() - interval '1 hour'`)
	if err != nil {
		log.Error("proof payload sweep failed", zap.Error(err))
		return
	}
	if tag.RowsAffected() > 0 {
		log.Info("swept expired proof payloads", zap.Int64("count", tag.RowsAffected()))
	}
}
