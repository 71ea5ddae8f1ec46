package utils

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TopUpInvoicePrefix distinguishes top-up invoices from order invoices in
// gateway callbacks.
const TopUpInvoicePrefix = "TOP-"

// InitSignature computes the signature for an outbound payment-initiation
// request. The gateway signs initiation as md5(merchantCode + orderId +
// amount + apiKey); note the field order differs from callbacks.
func InitSignature(merchantCode, merchantOrderID, amount, apiKey string) string {
	sum := md5.Sum([]byte(merchantCode + merchantOrderID + amount + apiKey))
	return hex.EncodeToString(sum[:])
}

// CallbackSignature computes the expected signature of an inbound callback:
// md5(merchantCode + amount + merchantOrderId + apiKey).
func CallbackSignature(merchantCode, amount, merchantOrderID, apiKey string) string {
	sum := md5.Sum([]byte(merchantCode + amount + merchantOrderID + apiKey))
	return hex.EncodeToString(sum[:])
}

// VerifyCallbackSignature checks a callback signature in constant time.
func VerifyCallbackSignature(merchantCode, amount, merchantOrderID, apiKey, signature string) bool {
	expected := CallbackSignature(merchantCode, amount, merchantOrderID, apiKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// OrderInvoiceID derives the invoice id recorded for an order settlement.
// It is a pure function of the order id and settlement date, so a retried
// settlement of the same order can never mint a second invoice.
func OrderInvoiceID(orderID int64, at time.Time) string {
	return fmt.Sprintf("INV-%s-%d", at.Format("20060102"), orderID)
}

// NewTopUpInvoiceID mints a fresh invoice id for a balance top-up.
func NewTopUpInvoiceID(at time.Time) string {
	return fmt.Sprintf("%s%s-%s", TopUpInvoicePrefix, at.Format("20060102"), uuid.NewString())
}

// IsTopUpInvoice reports whether a merchant order id refers to a top-up
// transaction rather than an order.
func IsTopUpInvoice(merchantOrderID string) bool {
	return strings.HasPrefix(merchantOrderID, TopUpInvoicePrefix)
}
