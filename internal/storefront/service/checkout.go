package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/sakuracloud/storefront/internal/storefront/utils"
	"github.com/shopspring/decimal"
)

// Top-up bounds in IDR.
var (
	minTopUpAmount = decimal.NewFromInt(10000)
	maxTopUpAmount = decimal.NewFromInt(10000000)
)

// CheckoutResult reports what a checkout submission did. Status paid means
// the balance settled the order immediately; status pending means the
// customer must follow PaymentURL to the gateway.
type CheckoutResult struct {
	OrderID    int64              `json:"order_id"`
	Status     models.OrderStatus `json:"status"`
	PaymentURL string             `json:"payment_url,omitempty"`
}

// TopUpResult reports a started balance top-up.
type TopUpResult struct {
	InvoiceID  string `json:"invoice_id"`
	PaymentURL string `json:"payment_url"`
}

// Checkout routes a cart snapshot through order creation and settlement:
// internal balance when it covers the total, the external gateway
// otherwise.
type Checkout struct {
	repo        repository.Repository
	pricer      *Pricer
	provisioner *Provisioner
	gateway     PaymentInitiator
	now         func() time.Time
}

// NewCheckout creates a new checkout service
func NewCheckout(repo repository.Repository, pricer *Pricer, provisioner *Provisioner, gateway PaymentInitiator) *Checkout {
	return &Checkout{
		repo:        repo,
		pricer:      pricer,
		provisioner: provisioner,
		gateway:     gateway,
		now:         time.Now,
	}
}

// Submit turns the user's cart into a pending order and attempts to settle
// it. The balance-or-gateway decision is not made from a prior balance
// read: the settlement transaction's conditional debit is the arbiter, so a
// balance drained by a concurrent order routes this one to the gateway
// instead of overdrafting.
func (c *Checkout) Submit(ctx context.Context, userID int64, promoCode string) (*CheckoutResult, error) {
	user, err := c.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	quote, err := c.pricer.BuildQuote(ctx, userID, promoCode)
	if err != nil {
		return nil, err
	}
	if len(quote.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Consume the promo use before pricing is frozen into the order. If
	// the capped increment loses a race the discount is dropped and the
	// order is priced without it.
	if quote.PromoCode != "" {
		if err := c.repo.RedeemPromoCode(ctx, quote.PromoCode); err != nil {
			if !errors.Is(err, repository.ErrPromoExhausted) {
				return nil, err
			}
			quote.Discount = decimal.Zero
			quote.Total = quote.Subtotal
			quote.PromoCode = ""
		}
	}

	order := &models.Order{
		UserID:         userID,
		TotalAmount:    quote.Total,
		DiscountAmount: quote.Discount,
		PromoCode:      quote.PromoCode,
		Status:         models.OrderPending,
		Lines:          quote.Lines,
	}

	orderID, err := c.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = orderID

	now := c.now()
	settlement := repository.OrderSettlement{
		Order:         order,
		Services:      c.provisioner.BuildServices(order, now),
		InvoiceID:     utils.OrderInvoiceID(orderID, now),
		PaymentMethod: models.PaymentMethodBalance,
		DebitBalance:  true,
	}

	err = c.repo.SettleOrder(ctx, settlement)
	if err == nil {
		log.Printf("order %d settled from balance, total %s", orderID, order.TotalAmount)
		return &CheckoutResult{OrderID: orderID, Status: models.OrderPaid}, nil
	}
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		return nil, fmt.Errorf("settling order %d: %w", orderID, err)
	}

	// Balance cannot cover the total: leave the order pending and hand the
	// customer to the gateway.
	initResp, err := c.gateway.InitiatePayment(ctx, PaymentInitRequest{
		MerchantOrderID: fmt.Sprintf("%d", orderID),
		Amount:          order.TotalAmount,
		ProductDetails:  fmt.Sprintf("Order #%d", orderID),
		Email:           user.Email,
		Phone:           user.Phone,
		CustomerName:    user.FullName,
	})
	if err != nil {
		log.Printf("gateway init failed for order %d: %v", orderID, err)
		return nil, err
	}

	log.Printf("order %d routed to gateway, total %s", orderID, order.TotalAmount)
	return &CheckoutResult{
		OrderID:    orderID,
		Status:     models.OrderPending,
		PaymentURL: initResp.PaymentURL,
	}, nil
}

// TopUp starts a balance top-up: a pending transaction plus a gateway
// initiation whose merchant order id is the TOP- invoice id, which is how
// the callback reconciler later tells top-ups from orders.
func (c *Checkout) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*TopUpResult, error) {
	if amount.LessThan(minTopUpAmount) || amount.GreaterThan(maxTopUpAmount) {
		return nil, ErrTopUpAmountInvalid
	}

	user, err := c.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	invoiceID := utils.NewTopUpInvoiceID(c.now())
	if _, err := c.repo.CreatePendingTopUp(ctx, userID, invoiceID, amount); err != nil {
		return nil, err
	}

	initResp, err := c.gateway.InitiatePayment(ctx, PaymentInitRequest{
		MerchantOrderID: invoiceID,
		Amount:          amount,
		ProductDetails:  "Balance top-up",
		Email:           user.Email,
		Phone:           user.Phone,
		CustomerName:    user.FullName,
	})
	if err != nil {
		// The pending transaction is dead without a redirect URL; close it
		// so it does not linger as a settleable invoice.
		if failErr := c.repo.FailTopUp(ctx, invoiceID); failErr != nil {
			log.Printf("failing aborted top-up %s: %v", invoiceID, failErr)
		}
		return nil, err
	}

	return &TopUpResult{InvoiceID: invoiceID, PaymentURL: initResp.PaymentURL}, nil
}
