package checks

import (
	"errors"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

var (
	ErrDomainNotFound     = errors.New("domain not found")
	ErrWhoisNotConfigured = errors.New("whois api not configured")
	ErrWhoisLookupFailed  = errors.New("whois lookup failed")
	ErrExpirationInvalid  = errors.New("expiration date missing or invalid")
	ErrDNSEmpty           = errors.New("no dns records found")
)

// LookupError carries the per-endpoint diagnostics of a failed sync.
type LookupError struct {
	Attempts []whois.Attempt
}

func (e *LookupError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Error != "" {
			parts = append(parts, a.Error)
		}
	}
	if len(parts) == 0 {
		return ErrWhoisLookupFailed.Error()
	}
	return ErrWhoisLookupFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets callers match ErrWhoisLookupFailed.
func (e *LookupError) Unwrap() error { return ErrWhoisLookupFailed }
