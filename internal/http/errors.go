package httpx

import (
	"errors"
	"net/http"

	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checks"
	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
	CodeTokenRequired       = "TOKEN_REQUIRED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeRevealKeyRequired   = "REVEAL_KEY_REQUIRED"
	CodeRevealKeyInvalid    = "REVEAL_KEY_INVALID"
	CodeRevealGrantRequired = "REVEAL_GRANT_REQUIRED"
	CodeRevealGrantInvalid  = "REVEAL_GRANT_INVALID"
	CodePasswordInvalid     = "PASSWORD_INVALID"
	CodeFieldUnknown        = "FIELD_UNKNOWN"
	CodeEntityNotFound      = "ENTITY_NOT_FOUND"
	CodeDomainNotFound      = "DOMAIN_NOT_FOUND"
	CodeWhoisNotConfigured  = "WHOIS_NOT_CONFIGURED"
	CodeWhoisLookupFailed   = "WHOIS_LOOKUP_FAILED"
	CodeExpirationInvalid   = "EXPIRATION_INVALID"
	CodeDNSEmpty            = "DNS_EMPTY"
	CodeNotifyNotConfigured = "NOTIFY_NOT_CONFIGURED"
	CodeNotifyFailed        = "NOTIFY_FAILED"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{auth.ErrTokenRequired, http.StatusUnauthorized, CodeTokenRequired},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, CodeTokenInvalid},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
	{auth.ErrEmailInvalid, http.StatusBadRequest, CodeValidation},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, CodeValidation},
	{auth.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},

	{secrets.ErrRevealKeyRequired, http.StatusBadRequest, CodeRevealKeyRequired},
	{secrets.ErrRevealKeyInvalid, http.StatusBadRequest, CodeRevealKeyInvalid},
	{secrets.ErrRevealGrantRequired, http.StatusUnauthorized, CodeRevealGrantRequired},
	{secrets.ErrRevealGrantInvalid, http.StatusUnauthorized, CodeRevealGrantInvalid},
	{secrets.ErrPasswordInvalid, http.StatusUnauthorized, CodePasswordInvalid},
	{secrets.ErrFieldUnknown, http.StatusBadRequest, CodeFieldUnknown},
	{secrets.ErrEntityNotFound, http.StatusNotFound, CodeEntityNotFound},

	{checks.ErrDomainNotFound, http.StatusNotFound, CodeDomainNotFound},
	{checks.ErrWhoisNotConfigured, http.StatusBadRequest, CodeWhoisNotConfigured},
	{checks.ErrWhoisLookupFailed, http.StatusBadGateway, CodeWhoisLookupFailed},
	{checks.ErrExpirationInvalid, http.StatusUnprocessableEntity, CodeExpirationInvalid},
	{checks.ErrDNSEmpty, http.StatusUnprocessableEntity, CodeDNSEmpty},

	{notify.ErrNotConfigured, http.StatusBadRequest, CodeNotifyNotConfigured},
	{notify.ErrAllFailed, http.StatusBadGateway, CodeNotifyFailed},

	{inventory.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{inventory.ErrInvalid, http.StatusBadRequest, CodeValidation},
	{inventory.ErrDuplicate, http.StatusConflict, CodeConflict},
	{repository.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{repository.ErrConflict, http.StatusConflict, CodeConflict},
	{repository.ErrInvalidArgument, http.StatusBadRequest, CodeValidation},
}

// classify maps a service error onto an HTTP status and code. Unknown errors
// are internal.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// writeServiceError renders err. Internal errors are logged and replaced by
// a generic message.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	var lookup *checks.LookupError
	if errors.As(err, &lookup) {
		body.Details = map[string]any{"attempts": lookup.Attempts}
	}
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}
