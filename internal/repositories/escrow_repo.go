package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freelance-escrow/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowRepo persists escrow records. Every state-changing write carries
// the precondition flags (and, for releases, the expected installment and
// nonce counters) in its WHERE clause, so a transition commits only if no
// concurrent transition got there first. Zero rows affected surfaces as
// models.ErrConflict and leaves the row untouched.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `
	id, client, freelancer, token, total_amount, released_amount,
	funded, released, refunded, cancelled, deadline,
	total_installments, installments_paid, nonce, note_cid,
	funded_at, funding_tx_hash, created_at, updated_at`

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(
		&e.ID, &e.Client, &e.Freelancer, &e.Token, &e.TotalAmount, &e.ReleasedAmount,
		&e.Funded, &e.Released, &e.Refunded, &e.Cancelled, &e.Deadline,
		&e.TotalInstallments, &e.InstallmentsPaid, &e.Nonce, &e.NoteCID,
		&e.FundedAt, &e.FundingTxHash, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEscrowNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.Escrow) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrows (client, freelancer, deadline, total_installments)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, e.Client, e.Freelancer, e.Deadline, e.TotalInstallments).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *EscrowRepo) GetByID(ctx context.Context, id int64) (*models.Escrow, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `SELECT`+escrowColumns+` FROM escrows WHERE id = $1`, id))
}

type EscrowFilter struct {
	Party  *string // matches client or freelancer
	Status *string
	Limit  int
	Offset int
}

func (r *EscrowRepo) List(ctx context.Context, f EscrowFilter) ([]models.Escrow, error) {
	query := `SELECT` + escrowColumns + ` FROM escrows`
	args := []any{}
	argIdx := 1
	var where []string

	if f.Party != nil {
		where = append(where, fmt.Sprintf("(client = $%d OR freelancer = $%d)", argIdx, argIdx))
		args = append(args, *f.Party)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, statusPredicate(*f.Status))
	}

	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

// statusPredicate translates a derived status into the authoritative flags.
func statusPredicate(status string) string {
	switch status {
	case models.EscrowStatusCreated:
		return "(NOT funded AND NOT cancelled)"
	case models.EscrowStatusFunded:
		return "(funded AND NOT released AND NOT refunded AND NOT cancelled)"
	case models.EscrowStatusReleased:
		return "released"
	case models.EscrowStatusRefunded:
		return "refunded"
	case models.EscrowStatusCancelled:
		return "cancelled"
	default:
		return "FALSE"
	}
}

// MarkFunded commits the single deposit recorded on e.
func (r *EscrowRepo) MarkFunded(ctx context.Context, e *models.Escrow) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows
		SET token = $1, total_amount = $2, funded = true,
		    funded_at = $3, funding_tx_hash = $4, updated_at = now()
		WHERE id = $5 AND NOT funded AND NOT cancelled
	`, e.Token, e.TotalAmount, e.FundedAt, e.FundingTxHash, e.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// CommitRelease writes the release counters computed on e, guarded by the
// counters the transition started from.
func (r *EscrowRepo) CommitRelease(ctx context.Context, e *models.Escrow, prevPaid int, prevNonce int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows
		SET released_amount = $1, installments_paid = $2, nonce = $3,
		    released = $4, updated_at = now()
		WHERE id = $5 AND installments_paid = $6 AND nonce = $7
		  AND funded AND NOT released AND NOT refunded AND NOT cancelled
	`, e.ReleasedAmount, e.InstallmentsPaid, e.Nonce, e.Released, e.ID, prevPaid, prevNonce)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *EscrowRepo) MarkRefunded(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows SET refunded = true, updated_at = now()
		WHERE id = $1 AND funded AND NOT released AND NOT refunded AND NOT cancelled
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *EscrowRepo) MarkCancelled(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows SET cancelled = true, updated_at = now()
		WHERE id = $1 AND NOT funded AND NOT cancelled
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *EscrowRepo) SetNoteCID(ctx context.Context, id int64, cid string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET note_cid = $1, updated_at = now() WHERE id = $2
	`, cid, id)
	return err
}

// ListNewlyRefundEligible returns funded, active escrows whose deadline has
// passed and that have not been flagged yet. Used by the worker's
// notification scan; the refund itself stays client-invoked.
func (r *EscrowRepo) ListNewlyRefundEligible(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+escrowColumns+`
		FROM escrows
		WHERE funded AND NOT released AND NOT refunded AND NOT cancelled
		  AND deadline <= $1 AND NOT refund_eligible_notified
		ORDER BY deadline ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

func (r *EscrowRepo) MarkRefundEligibleNotified(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET refund_eligible_notified = true WHERE id = $1
	`, id)
	return err
}
