package status

import (
	"errors"
	"strings"
)

var (
	ErrEmptyCart       = errors.New("checkout: cart is empty")
	ErrInvalidQuantity = errors.New("checkout: quantity must be between 1 and 99")
	ErrUnknownSKU      = errors.New("checkout: unknown sku")
	ErrMixedCurrency   = errors.New("checkout: cart mixes currencies")
	ErrSessionConflict = errors.New("checkout: session id already assigned")

	ErrPaymentNotFound = errors.New("payment: payment not found")
	ErrMissingSession  = errors.New("payment: session id required")

	ErrTicketNotFound    = errors.New("ticket: ticket not found")
	ErrTicketNotActive   = errors.New("ticket: ticket not active")
	ErrInvalidTransition = errors.New("status: transition not allowed")

	ErrMissingSignature = errors.New("webhook: missing signature or secret")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
	ErrInvalidPayload   = errors.New("webhook: invalid payload")

	ErrUnauthenticated = errors.New("identity: unauthenticated")
	ErrGateway         = errors.New("gateway: payment processor unavailable")
)

// UnknownSKUError lists the SKUs a cart referenced that are missing or inactive.
type UnknownSKUError struct {
	SKUs []string
}

func (e *UnknownSKUError) Error() string {
	return "checkout: unknown sku(s): " + strings.Join(e.SKUs, ", ")
}

func (e *UnknownSKUError) Is(target error) bool {
	return target == ErrUnknownSKU
}
