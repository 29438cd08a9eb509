package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
)

const (
	msgBodyMissing      = "Request body is missing"
	msgContentType      = "Content-Type must be application/json"
	msgInvalidJSON      = "Invalid JSON body"
	msgMethodNotAllowed = "Method not allowed"
	msgNotFound         = "Not found"
	msgHistoryDisabled  = "History is disabled"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusBadRequest, true
	case core.ErrCatTooLarge:
		return http.StatusRequestEntityTooLarge, true
	case core.ErrCatConfig:
		// The model provider rejected our key or model: the server is
		// misconfigured, but the failure happened upstream.
		if domErr.Code == core.CodeModelAuth || domErr.Code == core.CodeModelNotFound {
			return http.StatusBadGateway, true
		}
		return http.StatusInternalServerError, true
	case core.ErrCatUpstream:
		return http.StatusBadGateway, true
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests, true
	case core.ErrCatUnavailable:
		return http.StatusServiceUnavailable, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondDomainError writes err as {"error": message}. Causes are logged,
// never sent. Non-domain errors become 500 with fallback.
func respondDomainError(w http.ResponseWriter, log *logging.Logger, err error, fallback string) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		log.Error("unexpected error", "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "code", domErr.Code, "status", status, "error", err)
	} else {
		log.Debug("request rejected", "code", domErr.Code, "status", status)
	}
	respondError(w, status, domErr.Message)
}
