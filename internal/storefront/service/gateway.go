package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakuracloud/storefront/internal/storefront/config"
	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/utils"
	"github.com/shopspring/decimal"
)

// PaymentInitRequest is one outbound payment-initiation call.
type PaymentInitRequest struct {
	MerchantOrderID string
	Amount          decimal.Decimal
	ProductDetails  string
	Email           string
	Phone           string
	CustomerName    string
}

// PaymentInitiator begins an external payment and returns the redirect URL
// the customer must be sent to.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, req PaymentInitRequest) (*models.GatewayInitResponse, error)
}

// GatewayClient handles communication with the payment gateway's inquiry
// endpoint.
type GatewayClient struct {
	inquiryURL  string
	merchant    string
	apiKey      string
	callbackURL string
	returnURL   string
	expiryMins  int
	httpClient  *http.Client
}

// NewGatewayClient creates a new gateway client
func NewGatewayClient(cfg *config.Config) *GatewayClient {
	return &GatewayClient{
		inquiryURL:  cfg.GatewayURL,
		merchant:    cfg.MerchantCode,
		apiKey:      cfg.GatewayAPIKey,
		callbackURL: cfg.CallbackURL,
		returnURL:   cfg.ReturnURL,
		expiryMins:  cfg.PaymentExpiryMins,
		httpClient: &http.Client{
			Timeout: cfg.GatewayTimeout,
		},
	}
}

// InitiatePayment posts a signed, form-encoded initiation request. Any
// transport error, non-200 status or response without a redirect URL is an
// init failure; a client timeout is also an init failure, never a partial
// success, because no order state has been touched yet.
func (g *GatewayClient) InitiatePayment(ctx context.Context, req PaymentInitRequest) (*models.GatewayInitResponse, error) {
	amount := req.Amount.String()

	form := url.Values{}
	form.Set("merchantCode", g.merchant)
	form.Set("paymentAmount", amount)
	form.Set("merchantOrderId", req.MerchantOrderID)
	form.Set("productDetails", req.ProductDetails)
	form.Set("email", req.Email)
	form.Set("phoneNumber", req.Phone)
	form.Set("customerVaName", req.CustomerName)
	form.Set("callbackUrl", g.callbackURL)
	form.Set("returnUrl", g.returnURL)
	form.Set("signature", utils.InitSignature(g.merchant, req.MerchantOrderID, amount, g.apiKey))
	form.Set("expiryPeriod", strconv.Itoa(g.expiryMins))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.inquiryURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInit, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayInit, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInit, err)
	}

	var initResp models.GatewayInitResponse
	if err := json.Unmarshal(body, &initResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInit, err)
	}

	if initResp.PaymentURL == "" {
		return nil, fmt.Errorf("%w: response contains no payment URL", ErrGatewayInit)
	}

	return &initResp, nil
}

var _ PaymentInitiator = (*GatewayClient)(nil)
