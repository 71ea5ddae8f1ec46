package service

import (
	"context"
	"sync"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/shopspring/decimal"
)

// MockRepository implements repository.Repository for testing
type MockRepository struct {
	mu sync.Mutex

	User     *models.User
	Products map[int64]*models.Product
	Cart     []models.CartItem
	Promo    *models.PromoCode

	RedeemErr     error
	RedeemedCodes []string

	NextOrderID  int64
	CreatedOrder *models.Order
	Order        *models.Order

	SettleErr      error
	SettleErrQueue []error
	Settlements    []repository.OrderSettlement
	CancelErr      error
	CancelledIDs   []int64

	Transaction    *models.Transaction
	TopUpInvoices  []string
	SettledTopUps  []string
	FailedTopUps   []string
	SettleTopUpErr error
	FailTopUpErr   error
	CreateTopUpErr error

	Service       *models.Service
	RenewedExpiry *time.Time
	RenewErr      error
	ExpireCalls   int
}

func (m *MockRepository) CreateUser(_ context.Context, _, _, _, _ string) (int64, error) {
	return 0, nil
}

func (m *MockRepository) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return m.User, nil
}

func (m *MockRepository) GetUserByID(_ context.Context, _ int64) (*models.User, error) {
	return m.User, nil
}

func (m *MockRepository) ListAvailableProducts(_ context.Context) ([]models.Product, error) {
	return nil, nil
}

func (m *MockRepository) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	return m.Products[id], nil
}

func (m *MockRepository) GetCartItems(_ context.Context, _ int64) ([]models.CartItem, error) {
	return m.Cart, nil
}

func (m *MockRepository) AddCartItem(_ context.Context, _, _ int64, _ models.BillingCycle) (int64, error) {
	return 0, nil
}

func (m *MockRepository) RemoveCartItem(_ context.Context, _, _ int64) error {
	return nil
}

func (m *MockRepository) ClearCart(_ context.Context, _ int64) error {
	return nil
}

func (m *MockRepository) GetValidPromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	if m.Promo != nil && m.Promo.Code == code {
		return m.Promo, nil
	}
	return nil, nil
}

func (m *MockRepository) RedeemPromoCode(_ context.Context, code string) error {
	m.RedeemedCodes = append(m.RedeemedCodes, code)
	return m.RedeemErr
}

func (m *MockRepository) CreateOrder(_ context.Context, order *models.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedOrder = order
	return m.NextOrderID, nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	if m.Order != nil && m.Order.ID == id {
		return m.Order, nil
	}
	return nil, nil
}

func (m *MockRepository) GetUserOrders(_ context.Context, _ int64) ([]models.Order, error) {
	return nil, nil
}

func (m *MockRepository) CancelOrder(_ context.Context, orderID int64) error {
	m.CancelledIDs = append(m.CancelledIDs, orderID)
	return m.CancelErr
}

func (m *MockRepository) SettleOrder(_ context.Context, s repository.OrderSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Settlements = append(m.Settlements, s)
	if len(m.SettleErrQueue) > 0 {
		err := m.SettleErrQueue[0]
		m.SettleErrQueue = m.SettleErrQueue[1:]
		return err
	}
	return m.SettleErr
}

func (m *MockRepository) CreatePendingTopUp(_ context.Context, _ int64, invoiceID string, _ decimal.Decimal) (int64, error) {
	m.TopUpInvoices = append(m.TopUpInvoices, invoiceID)
	return 1, m.CreateTopUpErr
}

func (m *MockRepository) GetTransactionByInvoiceID(_ context.Context, invoiceID string) (*models.Transaction, error) {
	if m.Transaction != nil && m.Transaction.InvoiceID == invoiceID {
		return m.Transaction, nil
	}
	return nil, nil
}

func (m *MockRepository) GetUserTransactions(_ context.Context, _ int64) ([]models.Transaction, error) {
	return nil, nil
}

func (m *MockRepository) SettleTopUp(_ context.Context, invoiceID, _, _ string) error {
	m.SettledTopUps = append(m.SettledTopUps, invoiceID)
	return m.SettleTopUpErr
}

func (m *MockRepository) FailTopUp(_ context.Context, invoiceID string) error {
	m.FailedTopUps = append(m.FailedTopUps, invoiceID)
	return m.FailTopUpErr
}

func (m *MockRepository) GetUserServices(_ context.Context, _ int64) ([]models.Service, error) {
	return nil, nil
}

func (m *MockRepository) GetServiceByID(_ context.Context, _, serviceID int64) (*models.Service, error) {
	if m.Service != nil && m.Service.ID == serviceID {
		return m.Service, nil
	}
	return nil, nil
}

func (m *MockRepository) RenewService(_ context.Context, _, _ int64, newExpiry, _ time.Time) error {
	m.RenewedExpiry = &newExpiry
	return m.RenewErr
}

func (m *MockRepository) SuspendService(_ context.Context, _, _ int64, _ string) error {
	return nil
}

func (m *MockRepository) ExpireServices(_ context.Context, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpireCalls++
	return 0, nil
}

func (m *MockRepository) expireCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExpireCalls
}

func (m *MockRepository) InitDB(_ string) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

var _ repository.Repository = (*MockRepository)(nil)

// MockGateway implements PaymentInitiator for testing
type MockGateway struct {
	Response *models.GatewayInitResponse
	Err      error
	Requests []PaymentInitRequest
}

func (m *MockGateway) InitiatePayment(_ context.Context, req PaymentInitRequest) (*models.GatewayInitResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

var _ PaymentInitiator = (*MockGateway)(nil)
