package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
)

// Service repository methods
func (r *PostgresRepository) GetUserServices(ctx context.Context, userID int64) ([]models.Service, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, order_id, user_id, product_id, region, billing_cycle,
                start_date, expiry_date, status, suspended_reason, renewed_at, created_at
         FROM services
         WHERE user_id = $1
         ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return services, nil
}

func (r *PostgresRepository) GetServiceByID(ctx context.Context, userID, serviceID int64) (*models.Service, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, order_id, user_id, product_id, region, billing_cycle,
                start_date, expiry_date, status, suspended_reason, renewed_at, created_at
         FROM services
         WHERE id = $1 AND user_id = $2`,
		serviceID, userID,
	)

	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return svc, nil
}

func scanService(row rowScanner) (*models.Service, error) {
	svc := &models.Service{}
	var reason sql.NullString
	var renewedAt sql.NullTime

	err := row.Scan(
		&svc.ID,
		&svc.OrderID,
		&svc.UserID,
		&svc.ProductID,
		&svc.Region,
		&svc.BillingCycle,
		&svc.StartDate,
		&svc.ExpiryDate,
		&svc.Status,
		&reason,
		&renewedAt,
		&svc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	svc.SuspendedReason = reason.String
	if renewedAt.Valid {
		t := renewedAt.Time
		svc.RenewedAt = &t
	}

	return svc, nil
}

// RenewService sets a new expiry and reactivates the service. Only active
// and expired services are renewable; the state check rides on the UPDATE
// so a concurrent suspension cannot slip in between.
func (r *PostgresRepository) RenewService(ctx context.Context, userID, serviceID int64, newExpiry, renewedAt time.Time) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE services
         SET expiry_date = $1, status = $2, renewed_at = $3
         WHERE id = $4 AND user_id = $5 AND status IN ($6, $7)`,
		newExpiry, models.ServiceActive, renewedAt, serviceID, userID, models.ServiceActive, models.ServiceExpired,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrServiceStateConflict
	}

	return nil
}

// SuspendService suspends an active service with a reason.
func (r *PostgresRepository) SuspendService(ctx context.Context, userID, serviceID int64, reason string) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE services
         SET status = $1, suspended_reason = $2
         WHERE id = $3 AND user_id = $4 AND status = $5`,
		models.ServiceSuspended, reason, serviceID, userID, models.ServiceActive,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrServiceStateConflict
	}

	return nil
}

// ExpireServices marks active services whose expiry has passed as expired
// and returns how many changed.
func (r *PostgresRepository) ExpireServices(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		"UPDATE services SET status = $1 WHERE status = $2 AND expiry_date < $3",
		models.ServiceExpired, models.ServiceActive, now,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
