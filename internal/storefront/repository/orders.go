package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/shopspring/decimal"
)

// Order repository methods
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	snapshot, err := json.Marshal(order.Lines)
	if err != nil {
		return 0, err
	}

	var promo sql.NullString
	if order.PromoCode != "" {
		promo = sql.NullString{String: order.PromoCode, Valid: true}
	}

	var id int64
	err = r.db.QueryRowContext(
		ctx,
		`INSERT INTO orders (user_id, total_amount, discount_amount, promo_code, status, cart_snapshot)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		order.UserID, order.TotalAmount, order.DiscountAmount, promo, models.OrderPending, snapshot,
	).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, total_amount, discount_amount, promo_code, status,
                payment_method, payment_reference, cart_snapshot, created_at, updated_at
         FROM orders WHERE id = $1`,
		id,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return order, nil
}

func (r *PostgresRepository) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, total_amount, discount_amount, promo_code, status,
                payment_method, payment_reference, cart_snapshot, created_at, updated_at
         FROM orders
         WHERE user_id = $1
         ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var promo, method, reference sql.NullString
	var snapshot []byte

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.DiscountAmount,
		&promo,
		&order.Status,
		&method,
		&reference,
		&snapshot,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.PromoCode = promo.String
	order.PaymentMethod = method.String
	order.PaymentReference = reference.String

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &order.Lines); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// CancelOrder transitions a pending order to cancelled. An order that is no
// longer pending returns ErrOrderAlreadyProcessed; paid and cancelled are
// terminal states.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID int64) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		models.OrderCancelled, orderID, models.OrderPending,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderAlreadyProcessed
	}

	return nil
}

// SettleOrder applies a settlement as one database transaction: the guarded
// pending→paid transition, the transaction-log insert, one service row per
// snapshot line, the conditional balance debit on the internal path, and
// removal of the user's cart lines. Any failure rolls the whole unit back.
//
// The status transition is a conditional single-statement write, so of two
// concurrent settlement attempts for one order exactly one commits; the
// other observes ErrOrderAlreadyProcessed and must treat it as a no-op.
func (r *PostgresRepository) SettleOrder(ctx context.Context, s OrderSettlement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE orders
         SET status = $1, payment_method = $2, payment_reference = $3, updated_at = NOW()
         WHERE id = $4 AND status = $5`,
		models.OrderPaid, s.PaymentMethod, s.Reference, s.Order.ID, models.OrderPending,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderAlreadyProcessed
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO transactions (user_id, invoice_id, amount, status, payment_method, reference)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		s.Order.UserID, s.InvoiceID, s.Order.TotalAmount, models.TransactionPaid, s.PaymentMethod, s.Reference,
	)
	if err != nil {
		return err
	}

	for _, svc := range s.Services {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO services (order_id, user_id, product_id, region, billing_cycle, start_date, expiry_date, status)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			svc.OrderID, svc.UserID, svc.ProductID, svc.Region, svc.BillingCycle, svc.StartDate, svc.ExpiryDate, svc.Status,
		)
		if err != nil {
			return err
		}
	}

	if s.DebitBalance {
		res, err = tx.ExecContext(
			ctx,
			`UPDATE users
             SET account_balance = account_balance - $1
             WHERE id = $2 AND account_balance >= $1`,
			s.Order.TotalAmount, s.Order.UserID,
		)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInsufficientBalance
		}
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", s.Order.UserID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Transaction repository methods
func (r *PostgresRepository) CreatePendingTopUp(ctx context.Context, userID int64, invoiceID string, amount decimal.Decimal) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		`INSERT INTO transactions (user_id, invoice_id, amount, status)
         VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, invoiceID, amount, models.TransactionPending,
	).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *PostgresRepository) GetTransactionByInvoiceID(ctx context.Context, invoiceID string) (*models.Transaction, error) {
	t := &models.Transaction{}
	var method, reference sql.NullString
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, invoice_id, amount, status, payment_method, reference, created_at
         FROM transactions WHERE invoice_id = $1`,
		invoiceID,
	).Scan(&t.ID, &t.UserID, &t.InvoiceID, &t.Amount, &t.Status, &method, &reference, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	t.PaymentMethod = method.String
	t.Reference = reference.String

	return t, nil
}

func (r *PostgresRepository) GetUserTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, invoice_id, amount, status, payment_method, reference, created_at
         FROM transactions
         WHERE user_id = $1
         ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var method, reference sql.NullString
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.InvoiceID,
			&t.Amount,
			&t.Status,
			&method,
			&reference,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.PaymentMethod = method.String
		t.Reference = reference.String
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

// SettleTopUp flips a pending top-up transaction to paid and credits the
// user's balance in the same database transaction. The status flip is the
// idempotency guard: a replayed callback finds no pending row and returns
// ErrTopUpAlreadyProcessed.
func (r *PostgresRepository) SettleTopUp(ctx context.Context, invoiceID, paymentMethod, reference string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID int64
	var amount decimal.Decimal
	err = tx.QueryRowContext(
		ctx,
		`UPDATE transactions
         SET status = $1, payment_method = $2, reference = $3
         WHERE invoice_id = $4 AND status = $5
         RETURNING user_id, amount`,
		models.TransactionPaid, paymentMethod, reference, invoiceID, models.TransactionPending,
	).Scan(&userID, &amount)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTopUpAlreadyProcessed
		}
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		"UPDATE users SET account_balance = account_balance + $1 WHERE id = $2",
		amount, userID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FailTopUp marks a pending top-up as failed after a definitive gateway
// failure. No balance movement.
func (r *PostgresRepository) FailTopUp(ctx context.Context, invoiceID string) error {
	res, err := r.db.ExecContext(
		ctx,
		"UPDATE transactions SET status = $1 WHERE invoice_id = $2 AND status = $3",
		models.TransactionFailed, invoiceID, models.TransactionPending,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTopUpAlreadyProcessed
	}

	return nil
}
