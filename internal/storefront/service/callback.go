package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/sakuracloud/storefront/internal/storefront/utils"
	"github.com/shopspring/decimal"
)

// Gateway result codes.
const (
	ResultCodeSuccess = "00"
)

// CallbackRequest is the form-encoded payload the gateway posts to the
// webhook endpoint. Delivery is at-least-once and untrusted.
type CallbackRequest struct {
	MerchantCode    string
	Amount          string
	MerchantOrderID string
	ProductDetail   string
	AdditionalParam string
	PaymentCode     string
	ResultCode      string
	MerchantUserID  string
	Reference       string
	Signature       string
}

// Reconciler verifies gateway callbacks and applies them to the order and
// transaction state exactly once.
type Reconciler struct {
	repo         repository.Repository
	provisioner  *Provisioner
	merchantCode string
	apiKey       string
	now          func() time.Time
}

// NewReconciler creates a new callback reconciler
func NewReconciler(repo repository.Repository, provisioner *Provisioner, merchantCode, apiKey string) *Reconciler {
	return &Reconciler{
		repo:         repo,
		provisioner:  provisioner,
		merchantCode: merchantCode,
		apiKey:       apiKey,
		now:          time.Now,
	}
}

// Handle validates and applies one callback delivery. A nil return means
// the callback was applied or recognized as a duplicate no-op; an
// ErrCallbackRejected return means it was refused with no state change.
// Validation order: field presence, merchant code, signature, record
// lookup, then amount. Each check is a hard stop.
func (r *Reconciler) Handle(ctx context.Context, req CallbackRequest) error {
	if req.MerchantCode == "" || req.Amount == "" || req.MerchantOrderID == "" || req.Signature == "" {
		return ErrMissingParams
	}

	if req.MerchantCode != r.merchantCode {
		return ErrMerchantMismatch
	}

	if !utils.VerifyCallbackSignature(req.MerchantCode, req.Amount, req.MerchantOrderID, r.apiKey, req.Signature) {
		log.Printf("callback signature mismatch for merchant order %s", req.MerchantOrderID)
		return ErrSignatureMismatch
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("%w: unparseable amount %q", ErrCallbackRejected, req.Amount)
	}

	if utils.IsTopUpInvoice(req.MerchantOrderID) {
		return r.reconcileTopUp(ctx, req, amount)
	}

	return r.reconcileOrder(ctx, req, amount)
}

func (r *Reconciler) reconcileOrder(ctx context.Context, req CallbackRequest, amount decimal.Decimal) error {
	orderID, err := strconv.ParseInt(req.MerchantOrderID, 10, 64)
	if err != nil {
		return ErrUnknownOrder
	}

	order, err := r.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrUnknownOrder
	}

	// Idempotency boundary: a duplicate or late callback for a settled or
	// cancelled order acknowledges without reprocessing.
	if order.Status != models.OrderPending {
		log.Printf("callback for order %d ignored, status already %s", orderID, order.Status)
		return nil
	}

	// The signature covers the amount the gateway saw, not the amount we
	// charged; a technically valid signature over the wrong total is
	// tampering.
	if !amount.Equal(order.TotalAmount) {
		log.Printf("callback amount %s does not match order %d total %s", amount, orderID, order.TotalAmount)
		return ErrAmountMismatch
	}

	if req.ResultCode != ResultCodeSuccess {
		log.Printf("order %d cancelled by gateway result code %s", orderID, req.ResultCode)
		err := r.repo.CancelOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderAlreadyProcessed) {
			return nil
		}
		return err
	}

	now := r.now()
	settlement := repository.OrderSettlement{
		Order:         order,
		Services:      r.provisioner.BuildServices(order, now),
		InvoiceID:     utils.OrderInvoiceID(order.ID, now),
		PaymentMethod: req.PaymentCode,
		Reference:     req.Reference,
		// Money moved at the gateway; the balance stays untouched.
		DebitBalance: false,
	}

	err = r.repo.SettleOrder(ctx, settlement)
	if errors.Is(err, repository.ErrOrderAlreadyProcessed) {
		log.Printf("order %d already settled, callback treated as duplicate", orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settling order %d from callback: %w", orderID, err)
	}

	log.Printf("order %d settled from gateway, amount %s, reference %s", orderID, amount, req.Reference)
	return nil
}

func (r *Reconciler) reconcileTopUp(ctx context.Context, req CallbackRequest, amount decimal.Decimal) error {
	txn, err := r.repo.GetTransactionByInvoiceID(ctx, req.MerchantOrderID)
	if err != nil {
		return err
	}
	if txn == nil {
		return ErrUnknownOrder
	}

	if txn.Status != models.TransactionPending {
		log.Printf("callback for top-up %s ignored, status already %s", txn.InvoiceID, txn.Status)
		return nil
	}

	if !amount.Equal(txn.Amount) {
		log.Printf("callback amount %s does not match top-up %s amount %s", amount, txn.InvoiceID, txn.Amount)
		return ErrAmountMismatch
	}

	if req.ResultCode != ResultCodeSuccess {
		log.Printf("top-up %s failed with gateway result code %s", txn.InvoiceID, req.ResultCode)
		err := r.repo.FailTopUp(ctx, txn.InvoiceID)
		if errors.Is(err, repository.ErrTopUpAlreadyProcessed) {
			return nil
		}
		return err
	}

	err = r.repo.SettleTopUp(ctx, txn.InvoiceID, req.PaymentCode, req.Reference)
	if errors.Is(err, repository.ErrTopUpAlreadyProcessed) {
		log.Printf("top-up %s already settled, callback treated as duplicate", txn.InvoiceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settling top-up %s: %w", txn.InvoiceID, err)
	}

	log.Printf("top-up %s credited, amount %s", txn.InvoiceID, amount)
	return nil
}
