package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/config"
	"github.com/sakuracloud/storefront/internal/storefront/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayClientFor(serverURL string) *GatewayClient {
	return NewGatewayClient(&config.Config{
		GatewayURL:        serverURL,
		MerchantCode:      testMerchant,
		GatewayAPIKey:     testAPIKey,
		CallbackURL:       "https://shop.example.com/api/payment/callback",
		ReturnURL:         "https://shop.example.com/orders",
		PaymentExpiryMins: 60,
		GatewayTimeout:    2 * time.Second,
	})
}

func TestInitiatePayment_SendsSignedForm(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = map[string]string{}
		for k := range r.PostForm {
			received[k] = r.PostFormValue(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paymentUrl":"https://pay.example.com/redirect/xyz","reference":"D0001REF123","statusCode":"00"}`))
	}))
	defer server.Close()

	client := gatewayClientFor(server.URL)
	resp, err := client.InitiatePayment(context.Background(), PaymentInitRequest{
		MerchantOrderID: "42",
		Amount:          decimal.NewFromInt(90000),
		ProductDetails:  "Cloud VPS 2GB (monthly)",
		Email:           "user@example.com",
		Phone:           "0811111111",
		CustomerName:    "user",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/redirect/xyz", resp.PaymentURL)
	assert.Equal(t, "D0001REF123", resp.Reference)

	assert.Equal(t, testMerchant, received["merchantCode"])
	assert.Equal(t, "90000", received["paymentAmount"])
	assert.Equal(t, "42", received["merchantOrderId"])
	assert.Equal(t, "https://shop.example.com/api/payment/callback", received["callbackUrl"])
	assert.Equal(t, "60", received["expiryPeriod"])
	assert.Equal(t, utils.InitSignature(testMerchant, "42", "90000", testAPIKey), received["signature"])
}

func TestInitiatePayment_MissingPaymentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statusCode":"01","statusMessage":"merchant not found"}`))
	}))
	defer server.Close()

	client := gatewayClientFor(server.URL)
	_, err := client.InitiatePayment(context.Background(), PaymentInitRequest{
		MerchantOrderID: "42",
		Amount:          decimal.NewFromInt(90000),
	})

	assert.ErrorIs(t, err, ErrGatewayInit)
}

func TestInitiatePayment_Non200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := gatewayClientFor(server.URL)
	_, err := client.InitiatePayment(context.Background(), PaymentInitRequest{
		MerchantOrderID: "42",
		Amount:          decimal.NewFromInt(90000),
	})

	assert.ErrorIs(t, err, ErrGatewayInit)
}

func TestInitiatePayment_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client := gatewayClientFor(server.URL)
	_, err := client.InitiatePayment(context.Background(), PaymentInitRequest{
		MerchantOrderID: "42",
		Amount:          decimal.NewFromInt(90000),
	})

	assert.ErrorIs(t, err, ErrGatewayInit)
}

func TestInitiatePayment_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := gatewayClientFor(server.URL)
	_, err := client.InitiatePayment(context.Background(), PaymentInitRequest{
		MerchantOrderID: "42",
		Amount:          decimal.NewFromInt(90000),
	})

	assert.ErrorIs(t, err, ErrGatewayInit)
}
