package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/jackc/pgx/v5"
)

const refundColumns = `
	r.external_id, r.charge_external_id, r.amount, r.status,
	COALESCE(r.gateway_transaction_id, ''), r.user_external_id, r.version, r.created_at, r.updated_at`

type RefundRepository struct {
	db *DB
	q  Executor
}

func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db, q: db.Pool}
}

var _ ports.RefundRepository = (*RefundRepository)(nil)

// Create inserts the refund and bumps the charge version in one transaction,
// so two refunds computed against the same remainder cannot both land.
func (r *RefundRepository) Create(ctx context.Context, refund *domain.Refund, chargeVersion int64) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE charges SET version = version + 1 WHERE external_id = $1 AND version = $2`,
			refund.ChargeExternalID, chargeVersion)
		if err != nil {
			return fmt.Errorf("failed to lock charge for refund: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrVersionConflict
		}

		query := `INSERT INTO refunds (
					external_id, charge_external_id, amount, status, gateway_transaction_id,
					user_external_id, version, created_at, updated_at)
				  VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`

		_, err = tx.Exec(ctx, query,
			refund.ExternalID,
			refund.ChargeExternalID,
			refund.Amount,
			string(refund.Status),
			refund.GatewayTransactionID,
			refund.UserExternalID,
			refund.Version,
			refund.CreatedAt,
			refund.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("refund %s already exists: %w", refund.ExternalID, err)
			}
			return fmt.Errorf("failed to create refund: %w", err)
		}
		return nil
	})
}

func (r *RefundRepository) FindByChargeExternalID(ctx context.Context, chargeExternalID string) ([]*domain.Refund, error) {
	query := `SELECT` + refundColumns + `
			  FROM refunds r
			  WHERE r.charge_external_id = $1
			  ORDER BY r.created_at ASC`

	rows, err := r.q.Query(ctx, query, chargeExternalID)
	if err != nil {
		return nil, fmt.Errorf("query refunds by charge: %w", err)
	}

	refunds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Refund, error) {
		return scanRefund(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan refunds: %w", err)
	}
	return refunds, nil
}

func (r *RefundRepository) FindByProviderAndTransactionIDAndReference(ctx context.Context, gatewayName, transactionID, reference string) (*domain.Refund, error) {
	query := `SELECT` + refundColumns + `
			  FROM refunds r
			  JOIN charges c ON c.external_id = r.charge_external_id
			  JOIN gateway_accounts a ON a.id = c.gateway_account_id
			  WHERE a.gateway_name = $1 AND c.gateway_transaction_id = $2 AND r.gateway_transaction_id = $3`

	refund, err := scanRefund(r.q.QueryRow(ctx, query, gatewayName, transactionID, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewRefundNotFoundError(reference)
	}
	return refund, err
}

func (r *RefundRepository) Merge(ctx context.Context, refund *domain.Refund) (*domain.Refund, error) {
	query := `UPDATE refunds r SET
				status = $1, gateway_transaction_id = NULLIF($2, ''),
				version = r.version + 1, updated_at = $3
			  WHERE r.external_id = $4 AND r.version = $5
			  RETURNING` + refundColumns

	merged, err := scanRefund(r.q.QueryRow(ctx, query,
		string(refund.Status),
		refund.GatewayTransactionID,
		refund.UpdatedAt,
		refund.ExternalID,
		refund.Version,
	))
	if err == nil {
		return merged, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refunds WHERE external_id = $1)`, refund.ExternalID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check refund: %w", err)
	}
	if !exists {
		return nil, domain.NewRefundNotFoundError(refund.ExternalID)
	}
	return nil, ports.ErrVersionConflict
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var (
		rf     domain.Refund
		status string
	)
	err := row.Scan(
		&rf.ExternalID,
		&rf.ChargeExternalID,
		&rf.Amount,
		&status,
		&rf.GatewayTransactionID,
		&rf.UserExternalID,
		&rf.Version,
		&rf.CreatedAt,
		&rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}
	rf.Status = domain.RefundStatus(status)
	return &rf, nil
}
