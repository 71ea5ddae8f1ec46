package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v4/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sentinel errors surfaced by conditional writes. Callers match them with
// errors.Is and decide whether the condition is a rejection or a no-op.
var (
	ErrOrderAlreadyProcessed = errors.New("order is not pending")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrPromoExhausted        = errors.New("promo code expired or usage limit reached")
	ErrTopUpAlreadyProcessed = errors.New("top-up transaction is not pending")
	ErrServiceStateConflict  = errors.New("service state does not allow this operation")
)

// OrderSettlement carries everything the atomic settlement transaction
// needs. DebitBalance is set on the internal path only; gateway settlements
// leave the balance untouched because the money moved externally.
type OrderSettlement struct {
	Order         *models.Order
	Services      []models.Service
	InvoiceID     string
	PaymentMethod string
	Reference     string
	DebitBalance  bool
}

// Repository defines the interface for data access operations
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, email, passwordHash, fullName, phone string) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// Catalog operations
	ListAvailableProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)

	// Cart operations
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, userID, productID int64, cycle models.BillingCycle) (int64, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error

	// Promo operations
	GetValidPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromoCode(ctx context.Context, code string) error

	// Order operations
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	SettleOrder(ctx context.Context, s OrderSettlement) error

	// Transaction operations
	CreatePendingTopUp(ctx context.Context, userID int64, invoiceID string, amount decimal.Decimal) (int64, error)
	GetTransactionByInvoiceID(ctx context.Context, invoiceID string) (*models.Transaction, error)
	GetUserTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
	SettleTopUp(ctx context.Context, invoiceID, paymentMethod, reference string) error
	FailTopUp(ctx context.Context, invoiceID string) error

	// Service operations
	GetUserServices(ctx context.Context, userID int64) ([]models.Service, error)
	GetServiceByID(ctx context.Context, userID, serviceID int64) (*models.Service, error)
	RenewService(ctx context.Context, userID, serviceID int64, newExpiry, renewedAt time.Time) error
	SuspendService(ctx context.Context, userID, serviceID int64, reason string) error
	ExpireServices(ctx context.Context, now time.Time) (int64, error)

	// Initialize and close
	InitDB(databaseURI string) error
	Close() error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

// InitDB initializes the database connection and runs schema migrations
func (r *PostgresRepository) InitDB(databaseURI string) error {
	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	r.db = db

	if err := r.runMigrations(); err != nil {
		db.Close()
		return err
	}

	return nil
}

func (r *PostgresRepository) runMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, email, passwordHash, fullName, phone string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		"INSERT INTO users (email, password_hash, full_name, phone) VALUES ($1, $2, $3, $4) RETURNING id",
		email, passwordHash, fullName, phone,
	).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, email, password_hash, full_name, phone, account_balance, created_at FROM users WHERE email = $1",
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Phone, &user.AccountBalance, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, email, password_hash, full_name, phone, account_balance, created_at FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Phone, &user.AccountBalance, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// Catalog repository methods
func (r *PostgresRepository) ListAvailableProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, name, type, region, hourly_price, monthly_price, yearly_price, is_available, created_at
         FROM products
         WHERE is_available = TRUE
         ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Type,
			&p.Region,
			&p.HourlyPrice,
			&p.MonthlyPrice,
			&p.YearlyPrice,
			&p.IsAvailable,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *PostgresRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p := &models.Product{}
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, type, region, hourly_price, monthly_price, yearly_price, is_available, created_at
         FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Type, &p.Region, &p.HourlyPrice, &p.MonthlyPrice, &p.YearlyPrice, &p.IsAvailable, &p.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

// Cart repository methods
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, product_id, billing_cycle, added_at
         FROM cart_items
         WHERE user_id = $1
         ORDER BY added_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.BillingCycle,
			&item.AddedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID int64, cycle models.BillingCycle) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		"INSERT INTO cart_items (user_id, product_id, billing_cycle) VALUES ($1, $2, $3) RETURNING id",
		userID, productID, cycle,
	).Scan(&id)

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	_, err := r.db.ExecContext(
		ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2",
		itemID, userID,
	)
	return err
}

func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(
		ctx,
		"DELETE FROM cart_items WHERE user_id = $1",
		userID,
	)
	return err
}

// Promo repository methods
func (r *PostgresRepository) GetValidPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	promo := &models.PromoCode{}
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, code, discount_percentage, expiry_date, usage_count, usage_limit
         FROM promo_codes
         WHERE code = $1 AND expiry_date > NOW() AND usage_count < usage_limit`,
		code,
	).Scan(&promo.ID, &promo.Code, &promo.DiscountPercentage, &promo.ExpiryDate, &promo.UsageCount, &promo.UsageLimit)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return promo, nil
}

// RedeemPromoCode consumes one use of a promo code. The increment and the
// cap check are a single statement so concurrent redemptions cannot push
// usage_count past usage_limit.
func (r *PostgresRepository) RedeemPromoCode(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE promo_codes
         SET usage_count = usage_count + 1
         WHERE code = $1 AND expiry_date > NOW() AND usage_count < usage_limit`,
		code,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPromoExhausted
	}

	return nil
}
