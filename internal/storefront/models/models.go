package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle determines both the price of a cart line and the expiry
// offset of the service provisioned from it.
type BillingCycle string

const (
	CycleHourly  BillingCycle = "hourly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is one of the known billing cycles.
func (c BillingCycle) Valid() bool {
	switch c {
	case CycleHourly, CycleMonthly, CycleYearly:
		return true
	}
	return false
}

// OrderStatus is the order state machine. Paid and cancelled are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

type ServiceStatus string

const (
	ServicePending   ServiceStatus = "pending"
	ServiceActive    ServiceStatus = "active"
	ServiceSuspended ServiceStatus = "suspended"
	ServiceExpired   ServiceStatus = "expired"
	ServiceCancelled ServiceStatus = "cancelled"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionPaid     TransactionStatus = "paid"
	TransactionFailed   TransactionStatus = "failed"
	TransactionRefunded TransactionStatus = "refunded"
)

// PaymentMethodBalance marks settlements paid from the internal account
// balance; gateway settlements carry the gateway's payment code instead.
const PaymentMethodBalance = "balance"

// User represents a registered customer account.
type User struct {
	ID             int64           `json:"id"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"`
	FullName       string          `json:"full_name"`
	Phone          string          `json:"phone"`
	AccountBalance decimal.Decimal `json:"account_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Product is reference data: a purchasable hosting plan with one price per
// billing cycle.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Region       string          `json:"region"`
	HourlyPrice  decimal.Decimal `json:"hourly_price"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	YearlyPrice  decimal.Decimal `json:"yearly_price"`
	IsAvailable  bool            `json:"is_available"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Price returns the product price for the given billing cycle.
func (p *Product) Price(cycle BillingCycle) decimal.Decimal {
	switch cycle {
	case CycleHourly:
		return p.HourlyPrice
	case CycleYearly:
		return p.YearlyPrice
	default:
		return p.MonthlyPrice
	}
}

// CartItem is a single line in a user's cart.
type CartItem struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	ProductID    int64        `json:"product_id"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	AddedAt      time.Time    `json:"added_at"`
}

// PromoCode is a shared discount code with a redemption cap.
type PromoCode struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	ExpiryDate         time.Time       `json:"expiry_date"`
	UsageCount         int             `json:"usage_count"`
	UsageLimit         int             `json:"usage_limit"`
}

// OrderLine is one priced cart line frozen into an order at checkout time.
// The snapshot, not the live cart, drives provisioning.
type OrderLine struct {
	ProductID    int64           `json:"product_id"`
	Region       string          `json:"region"`
	BillingCycle BillingCycle    `json:"billing_cycle"`
	Price        decimal.Decimal `json:"price"`
}

// Order is the durable record of a checkout submission.
type Order struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	PromoCode        string          `json:"promo_code,omitempty"`
	Status           OrderStatus     `json:"status"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Lines            []OrderLine     `json:"lines"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Transaction is an append-only audit record of a monetary settlement.
type Transaction struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	InvoiceID     string            `json:"invoice_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Service is a provisioned resource belonging to a paid order.
type Service struct {
	ID              int64         `json:"id"`
	OrderID         int64         `json:"order_id"`
	UserID          int64         `json:"user_id"`
	ProductID       int64         `json:"product_id"`
	Region          string        `json:"region"`
	BillingCycle    BillingCycle  `json:"billing_cycle"`
	StartDate       time.Time     `json:"start_date"`
	ExpiryDate      time.Time     `json:"expiry_date"`
	Status          ServiceStatus `json:"status"`
	SuspendedReason string        `json:"suspended_reason,omitempty"`
	RenewedAt       *time.Time    `json:"renewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// GatewayInitResponse is the payment gateway's answer to an initiation
// request.
type GatewayInitResponse struct {
	PaymentURL string `json:"paymentUrl"`
	Reference  string `json:"reference"`
	StatusCode string `json:"statusCode"`
}
