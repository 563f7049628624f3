package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"festival-backend/internal/services/identity"
	"festival-backend/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const identityKey = "festival.identity"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Identity, error)
}

// RequireIdentity authenticates the bearer token and stores the caller on
// the request event.
func RequireIdentity(v TokenVerifier) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		token := identity.BearerToken(e.Request.Header.Get("Authorization"))
		if token == "" {
			return apis.NewUnauthorizedError("Missing credentials", nil)
		}

		id, err := v.Verify(e.Request.Context(), token)
		if err != nil {
			slog.Debug("Rejected bearer token", "error", err)
			return apis.NewUnauthorizedError("Invalid credentials", nil)
		}

		e.Set(identityKey, id)
		return e.Next()
	}
}

// CurrentIdentity returns the caller stored by RequireIdentity.
func CurrentIdentity(e *core.RequestEvent) (*identity.Identity, error) {
	id, ok := e.Get(identityKey).(*identity.Identity)
	if !ok || id == nil || id.UID == "" {
		return nil, apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return id, nil
}

// CallerKey identifies the caller for rate limiting: the user id when
// authenticated, otherwise the client address.
func CallerKey(e *core.RequestEvent) string {
	if id, ok := e.Get(identityKey).(*identity.Identity); ok && id != nil {
		return "user:" + id.UID
	}
	return "ip:" + e.RealIP()
}

// apiError maps domain errors onto HTTP responses.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrEmptyCart),
		errors.Is(err, status.ErrInvalidQuantity),
		errors.Is(err, status.ErrUnknownSKU),
		errors.Is(err, status.ErrMixedCurrency),
		errors.Is(err, status.ErrMissingSession):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrUnauthenticated):
		return apis.NewUnauthorizedError("Unauthorized", nil)
	case errors.Is(err, status.ErrPaymentNotFound):
		return apis.NewNotFoundError("Payment not found", nil)
	case errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError("Ticket not found", nil)
	case errors.Is(err, status.ErrTicketNotActive):
		return apis.NewForbiddenError("Ticket is not active", nil)
	case errors.Is(err, status.ErrInvalidTransition):
		return apis.NewApiError(http.StatusConflict, "Ticket state changed, please refresh", nil)
	case errors.Is(err, status.ErrGateway):
		return apis.NewApiError(http.StatusBadGateway, "Payment provider unavailable, please try again", nil)
	}

	slog.Error("Unhandled request error", "error", err)
	return apis.NewInternalServerError("internal error", nil)
}
