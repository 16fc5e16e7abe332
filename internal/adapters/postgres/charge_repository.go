package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/jackc/pgx/v5"
)

const chargeColumns = `
	c.external_id, c.amount, c.status, COALESCE(c.gateway_transaction_id, ''),
	c.corporate_surcharge, c.reference, c.description, c.version, c.created_at, c.updated_at,
	a.id, a.gateway_name, a.type, a.credentials`

const chargeFrom = `
	FROM charges c
	JOIN gateway_accounts a ON a.id = c.gateway_account_id`

type ChargeRepository struct {
	db *DB
	q  Executor
}

func NewChargeRepository(db *DB) *ChargeRepository {
	return &ChargeRepository{db: db, q: db.Pool}
}

var _ ports.ChargeRepository = (*ChargeRepository)(nil)

func (r *ChargeRepository) Create(ctx context.Context, c *domain.Charge) error {
	query := `INSERT INTO charges (
				external_id, amount, status, gateway_transaction_id, gateway_account_id,
				corporate_surcharge, reference, description, version, created_at, updated_at)
			  VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.q.Exec(ctx, query,
		c.ExternalID,
		c.Amount,
		string(c.Status),
		c.GatewayTransactionID,
		c.GatewayAccount.ID,
		c.CorporateSurcharge,
		c.Reference,
		c.Description,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}
	return nil
}

func (r *ChargeRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	query := `SELECT` + chargeColumns + chargeFrom + `
			  WHERE c.external_id = $1`

	c, err := scanCharge(r.q.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewChargeNotFoundError(externalID)
	}
	return c, err
}

func (r *ChargeRepository) FindByProviderAndTransactionID(ctx context.Context, gatewayName, transactionID string) (*domain.Charge, error) {
	query := `SELECT` + chargeColumns + chargeFrom + `
			  WHERE a.gateway_name = $1 AND c.gateway_transaction_id = $2`

	c, err := scanCharge(r.q.QueryRow(ctx, query, gatewayName, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewChargeNotFoundError(transactionID)
	}
	return c, err
}

func (r *ChargeRepository) FindAllEligibleForCapture(ctx context.Context, statuses []domain.ChargeStatus, pageSize, pageNumber int) ([]*domain.Charge, error) {
	query := `SELECT` + chargeColumns + chargeFrom + `
			  WHERE c.status = ANY($1)
			  ORDER BY c.updated_at ASC
			  LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, statusStrings(statuses), pageSize, pageSize*pageNumber)
	if err != nil {
		return nil, fmt.Errorf("query charges eligible for capture: %w", err)
	}
	return collectCharges(rows)
}

func (r *ChargeRepository) FindBeforeDateWithStatusIn(ctx context.Context, cutoff time.Time, statuses []domain.ChargeStatus, limit int) ([]*domain.Charge, error) {
	query := `SELECT` + chargeColumns + chargeFrom + `
			  WHERE c.created_at < $1 AND c.status = ANY($2)
			  ORDER BY c.created_at ASC
			  LIMIT $3`

	rows, err := r.q.Query(ctx, query, cutoff, statusStrings(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("query charges created before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return collectCharges(rows)
}

// Merge updates the charge only if its version is unchanged and records the
// event in the same transaction.
func (r *ChargeRepository) Merge(ctx context.Context, c *domain.Charge, event domain.ChargeEvent) (*domain.Charge, error) {
	var merged *domain.Charge

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		update := `UPDATE charges SET
					status = $1, gateway_transaction_id = NULLIF($2, ''), corporate_surcharge = $3,
					version = version + 1, updated_at = $4
				   WHERE external_id = $5 AND version = $6`

		tag, err := tx.Exec(ctx, update,
			string(c.Status),
			c.GatewayTransactionID,
			c.CorporateSurcharge,
			c.UpdatedAt,
			c.ExternalID,
			c.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update charge: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM charges WHERE external_id = $1)`, c.ExternalID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check charge: %w", err)
			}
			if !exists {
				return domain.NewChargeNotFoundError(c.ExternalID)
			}
			return ports.ErrVersionConflict
		}

		if event.Status != "" {
			_, err = tx.Exec(ctx,
				`INSERT INTO charge_events (charge_external_id, status, occurred_at) VALUES ($1, $2, $3)`,
				event.ChargeExternalID, string(event.Status), event.OccurredAt)
			if err != nil {
				return fmt.Errorf("failed to record charge event: %w", err)
			}
		}

		query := `SELECT` + chargeColumns + chargeFrom + `
				  WHERE c.external_id = $1`
		merged, err = scanCharge(tx.QueryRow(ctx, query, c.ExternalID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *ChargeRepository) CountEvents(ctx context.Context, externalID string, status domain.ChargeStatus) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM charge_events WHERE charge_external_id = $1 AND status = $2`,
		externalID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count charge events: %w", err)
	}
	return n, nil
}

func scanCharge(row pgx.Row) (*domain.Charge, error) {
	var (
		c           domain.Charge
		status      string
		accountType string
	)
	err := row.Scan(
		&c.ExternalID,
		&c.Amount,
		&status,
		&c.GatewayTransactionID,
		&c.CorporateSurcharge,
		&c.Reference,
		&c.Description,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.GatewayAccount.ID,
		&c.GatewayAccount.GatewayName,
		&accountType,
		&c.GatewayAccount.Credentials,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan charge: %w", err)
	}
	c.Status = domain.ChargeStatus(status)
	c.GatewayAccount.Type = domain.AccountType(accountType)
	return &c, nil
}

func collectCharges(rows pgx.Rows) ([]*domain.Charge, error) {
	charges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Charge, error) {
		return scanCharge(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan charges: %w", err)
	}
	return charges, nil
}

func statusStrings(statuses []domain.ChargeStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
