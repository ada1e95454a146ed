// Package domainstate derives a domain's health state from its registry
// status codes, DNS records and expiration date.
package domainstate

import (
	"math"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// ExpiringWindowDays is the inclusive threshold for StateExpiringSoon.
const ExpiringWindowDays = 30

// Classification is the derived part of a domain.
type Classification struct {
	State         domain.DomainState
	DaysRemaining *int
}

// Classify applies the first matching rule: missing DNS, registry holds,
// pending delete, redemption, then days to expiry.
func Classify(status []string, records []domain.DNSRecord, expiration string, now time.Time) Classification {
	days := DaysRemaining(expiration, now)
	out := Classification{DaysRemaining: days}

	codes := make(map[string]bool, len(status))
	for _, code := range NormalizeStatuses(status) {
		codes[code] = true
	}

	switch {
	case len(records) == 0:
		out.State = domain.StateNoDNS
	case codes[StatusClientHold] || codes[StatusServerHold]:
		out.State = domain.StateSuspended
	case codes[StatusPendingDelete]:
		out.State = domain.StatePendingDelete
	case codes[StatusRedemptionPeriod]:
		out.State = domain.StateRedemption
	case days != nil && *days < 0:
		out.State = domain.StateExpired
	case days != nil && *days <= ExpiringWindowDays:
		out.State = domain.StateExpiringSoon
	default:
		out.State = domain.StateNormal
	}
	return out
}

// Apply recomputes d.State and d.DaysRemaining in place.
func Apply(d *domain.Domain, now time.Time) {
	c := Classify(d.Status, d.Records, d.ExpirationDate, now)
	d.State = c.State
	d.DaysRemaining = c.DaysRemaining
}

// DaysRemaining returns whole days from now until the expiration date
// (midnight UTC), rounded down. Nil when the date is not a valid YYYY-MM-DD.
func DaysRemaining(expiration string, now time.Time) *int {
	exp, ok := ParseDate(expiration)
	if !ok {
		return nil
	}
	days := int(math.Floor(exp.Sub(now).Hours() / 24))
	return &days
}
