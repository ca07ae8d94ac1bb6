package repositories

import (
	"context"

	"github.com/freelance-escrow/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo is the append-only trail behind every fund movement.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry *models.AuditEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO audit_log (escrow_id, actor, action, reason, tx_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, entry.EscrowID, entry.Actor, entry.Action, entry.Reason, entry.TxRef).
		Scan(&entry.ID, &entry.CreatedAt)
}

// ListByEscrow returns the trail oldest-first by default; newestFirst
// flips the direction for callers that want the latest entries.
func (r *AuditRepo) ListByEscrow(ctx context.Context, escrowID int64, limit, offset int, newestFirst bool) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, auditListQuery(newestFirst), escrowID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.EscrowID, &e.Actor, &e.Action, &e.Reason, &e.TxRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// auditListQuery orders by (created_at, id) so entries created within the
// same timestamp tick keep a stable order in either direction.
func auditListQuery(newestFirst bool) string {
	dir := "ASC"
	if newestFirst {
		dir = "DESC"
	}
	return `
		SELECT id, escrow_id, actor, action, reason, tx_ref, created_at
		FROM audit_log
		WHERE escrow_id = $1
		ORDER BY created_at ` + dir + `, id ` + dir + `
		LIMIT $2 OFFSET $3
	`
}
