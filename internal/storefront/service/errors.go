package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrGatewayInit        = errors.New("failed to initialize gateway payment")
	ErrTopUpAmountInvalid = errors.New("top-up amount out of allowed range")
	ErrUserNotFound       = errors.New("user not found")
)

// ErrCallbackRejected is the parent of every webhook validation failure.
// A rejected callback causes no state change and maps to HTTP 400; the
// specific reason is wrapped for logs and tests.
var ErrCallbackRejected = errors.New("callback rejected")

var (
	ErrMissingParams     = fmt.Errorf("%w: missing required parameters", ErrCallbackRejected)
	ErrMerchantMismatch  = fmt.Errorf("%w: invalid merchant code", ErrCallbackRejected)
	ErrSignatureMismatch = fmt.Errorf("%w: invalid signature", ErrCallbackRejected)
	ErrUnknownOrder      = fmt.Errorf("%w: unknown merchant order id", ErrCallbackRejected)
	ErrAmountMismatch    = fmt.Errorf("%w: amount does not match stored total", ErrCallbackRejected)
)
