package service

import (
	"context"
	"testing"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/sakuracloud/storefront/internal/storefront/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMerchant = "D0001"
	testAPIKey   = "secret-api-key"
)

func newReconcilerFixture(mock *MockRepository) *Reconciler {
	r := NewReconciler(mock, NewProvisioner(), testMerchant, testAPIKey)
	r.now = func() time.Time {
		return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	}
	return r
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:          42,
		UserID:      7,
		TotalAmount: decimal.NewFromInt(90000),
		Status:      models.OrderPending,
		Lines: []models.OrderLine{
			{ProductID: 1, Region: "id-jkt", BillingCycle: models.CycleMonthly, Price: decimal.NewFromInt(90000)},
		},
	}
}

func signedCallback(amount, merchantOrderID, resultCode string) CallbackRequest {
	return CallbackRequest{
		MerchantCode:    testMerchant,
		Amount:          amount,
		MerchantOrderID: merchantOrderID,
		PaymentCode:     "VC",
		ResultCode:      resultCode,
		Reference:       "D0001REF123",
		Signature:       utils.CallbackSignature(testMerchant, amount, merchantOrderID, testAPIKey),
	}
}

func TestHandle_SuccessSettlesWithoutDebit(t *testing.T) {
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000", "42", ResultCodeSuccess))

	require.NoError(t, err)
	require.Len(t, mock.Settlements, 1)

	s := mock.Settlements[0]
	assert.False(t, s.DebitBalance, "gateway settlement must not touch the balance")
	assert.Equal(t, "VC", s.PaymentMethod)
	assert.Equal(t, "D0001REF123", s.Reference)
	assert.Equal(t, "INV-20260510-42", s.InvoiceID)
	require.Len(t, s.Services, 1)
	assert.Equal(t, models.ServiceActive, s.Services[0].Status)
}

func TestHandle_DuplicateCallbackIsNoOp(t *testing.T) {
	order := pendingOrder()
	order.Status = models.OrderPaid
	mock := &MockRepository{Order: order}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000", "42", ResultCodeSuccess))

	require.NoError(t, err, "a duplicate must be acknowledged, not rejected")
	assert.Empty(t, mock.Settlements)
}

func TestHandle_SettlementRaceIsNoOp(t *testing.T) {
	// The order read shows pending but a concurrent delivery settles it
	// first; the conditional transition reports it and the reconciler acks.
	mock := &MockRepository{
		Order:     pendingOrder(),
		SettleErr: repository.ErrOrderAlreadyProcessed,
	}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000", "42", ResultCodeSuccess))

	require.NoError(t, err)
}

func TestHandle_SignatureTamperRejected(t *testing.T) {
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	req := signedCallback("90000", "42", ResultCodeSuccess)
	req.Signature = "deadbeefdeadbeefdeadbeefdeadbeef"

	err := rec.Handle(context.Background(), req)

	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.ErrorIs(t, err, ErrCallbackRejected)
	assert.Empty(t, mock.Settlements)
	assert.Empty(t, mock.CancelledIDs)
}

func TestHandle_AmountTamperRejected(t *testing.T) {
	// The signature is valid for the tampered amount, but it does not
	// match the stored order total.
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("1000", "42", ResultCodeSuccess))

	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Empty(t, mock.Settlements)
}

func TestHandle_MerchantMismatchRejected(t *testing.T) {
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	req := signedCallback("90000", "42", ResultCodeSuccess)
	req.MerchantCode = "OTHER"

	err := rec.Handle(context.Background(), req)

	assert.ErrorIs(t, err, ErrMerchantMismatch)
	assert.Empty(t, mock.Settlements)
}

func TestHandle_MissingParamsRejected(t *testing.T) {
	rec := newReconcilerFixture(&MockRepository{})

	err := rec.Handle(context.Background(), CallbackRequest{
		MerchantCode: testMerchant,
		Amount:       "90000",
		// merchantOrderId and signature absent
	})

	assert.ErrorIs(t, err, ErrMissingParams)
}

func TestHandle_UnknownOrderRejected(t *testing.T) {
	mock := &MockRepository{}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000", "999", ResultCodeSuccess))

	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestHandle_FailureResultCancelsOrder(t *testing.T) {
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000", "42", "02"))

	require.NoError(t, err)
	assert.Equal(t, []int64{42}, mock.CancelledIDs)
	assert.Empty(t, mock.Settlements)
}

func TestHandle_AmountFormatVariantsMatch(t *testing.T) {
	// Gateways render amounts with trailing decimals; "90000.00" must
	// still equal the stored 90000.
	mock := &MockRepository{Order: pendingOrder()}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("90000.00", "42", ResultCodeSuccess))

	require.NoError(t, err)
	assert.Len(t, mock.Settlements, 1)
}

func TestHandle_TopUpSuccessCredits(t *testing.T) {
	mock := &MockRepository{
		Transaction: &models.Transaction{
			ID:        5,
			UserID:    7,
			InvoiceID: "TOP-20260510-abc",
			Amount:    decimal.NewFromInt(50000),
			Status:    models.TransactionPending,
		},
	}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("50000", "TOP-20260510-abc", ResultCodeSuccess))

	require.NoError(t, err)
	assert.Equal(t, []string{"TOP-20260510-abc"}, mock.SettledTopUps)
	assert.Empty(t, mock.Settlements, "a top-up must not settle any order")
}

func TestHandle_TopUpDuplicateIsNoOp(t *testing.T) {
	mock := &MockRepository{
		Transaction: &models.Transaction{
			InvoiceID: "TOP-20260510-abc",
			Amount:    decimal.NewFromInt(50000),
			Status:    models.TransactionPaid,
		},
	}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("50000", "TOP-20260510-abc", ResultCodeSuccess))

	require.NoError(t, err)
	assert.Empty(t, mock.SettledTopUps)
}

func TestHandle_TopUpAmountMismatchRejected(t *testing.T) {
	mock := &MockRepository{
		Transaction: &models.Transaction{
			InvoiceID: "TOP-20260510-abc",
			Amount:    decimal.NewFromInt(50000),
			Status:    models.TransactionPending,
		},
	}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("49999", "TOP-20260510-abc", ResultCodeSuccess))

	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Empty(t, mock.SettledTopUps)
}

func TestHandle_TopUpFailureMarksFailed(t *testing.T) {
	mock := &MockRepository{
		Transaction: &models.Transaction{
			InvoiceID: "TOP-20260510-abc",
			Amount:    decimal.NewFromInt(50000),
			Status:    models.TransactionPending,
		},
	}
	rec := newReconcilerFixture(mock)

	err := rec.Handle(context.Background(), signedCallback("50000", "TOP-20260510-abc", "01"))

	require.NoError(t, err)
	assert.Equal(t, []string{"TOP-20260510-abc"}, mock.FailedTopUps)
	assert.Empty(t, mock.SettledTopUps)
}
