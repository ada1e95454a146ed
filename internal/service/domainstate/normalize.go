package domainstate

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Canonical EPP status codes.
const (
	StatusOK                       = "ok"
	StatusActive                   = "active"
	StatusInactive                 = "inactive"
	StatusClientHold               = "clientHold"
	StatusServerHold               = "serverHold"
	StatusPendingDelete            = "pendingDelete"
	StatusRedemptionPeriod         = "redemptionPeriod"
	StatusClientDeleteProhibited   = "clientDeleteProhibited"
	StatusServerDeleteProhibited   = "serverDeleteProhibited"
	StatusClientTransferProhibited = "clientTransferProhibited"
	StatusServerTransferProhibited = "serverTransferProhibited"
	StatusClientUpdateProhibited   = "clientUpdateProhibited"
	StatusServerUpdateProhibited   = "serverUpdateProhibited"
	StatusClientRenewProhibited    = "clientRenewProhibited"
	StatusServerRenewProhibited    = "serverRenewProhibited"
	StatusPendingTransfer          = "pendingTransfer"
	StatusPendingRenew             = "pendingRenew"
	StatusPendingUpdate            = "pendingUpdate"
	StatusPendingCreate            = "pendingCreate"
	StatusPendingRestore           = "pendingRestore"
	StatusAddPeriod                = "addPeriod"
	StatusAutoRenewPeriod          = "autoRenewPeriod"
	StatusRenewPeriod              = "renewPeriod"
	StatusTransferPeriod           = "transferPeriod"
)

var taxonomy = func() map[string]string {
	codes := []string{
		StatusOK, StatusActive, StatusInactive,
		StatusClientHold, StatusServerHold,
		StatusPendingDelete, StatusRedemptionPeriod,
		StatusClientDeleteProhibited, StatusServerDeleteProhibited,
		StatusClientTransferProhibited, StatusServerTransferProhibited,
		StatusClientUpdateProhibited, StatusServerUpdateProhibited,
		StatusClientRenewProhibited, StatusServerRenewProhibited,
		StatusPendingTransfer, StatusPendingRenew, StatusPendingUpdate,
		StatusPendingCreate, StatusPendingRestore,
		StatusAddPeriod, StatusAutoRenewPeriod, StatusRenewPeriod, StatusTransferPeriod,
	}
	m := make(map[string]string, len(codes)+4)
	for _, c := range codes {
		m[strings.ToLower(c)] = c
	}
	m["redemption"] = StatusRedemptionPeriod
	m["hold"] = StatusClientHold
	m["registrarhold"] = StatusClientHold
	m["registryhold"] = StatusServerHold
	return m
}()

// NormalizeStatus maps a raw status string such as
// "clientTransferProhibited https://icann.org/epp#clientTransferProhibited"
// or "Redemption Period" to its canonical code. Unknown values return "".
func NormalizeStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(strings.ToLower(s), "http"); i > 0 {
		s = s[:i]
	}
	if i := strings.IndexAny(s, "(["); i > 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return taxonomy[b.String()]
}

// NormalizeStatuses normalizes, filters and deduplicates raw status values,
// keeping first-seen order.
func NormalizeStatuses(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		code := NormalizeStatus(r)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006.01.02",
	"2006.01.02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02.01.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-January-2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// NormalizeDate reduces the supported date formats to YYYY-MM-DD. Values
// that match none of them return "" rather than a guess.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n)
	}
	s = strings.ReplaceAll(s, ",", "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	return ""
}

func fromEpoch(n int64) string {
	switch {
	case n > 1e12:
		return time.UnixMilli(n).UTC().Format(dateLayout)
	case n > 1e8:
		return time.Unix(n, 0).UTC().Format(dateLayout)
	default:
		return ""
	}
}

// ParseDate parses a normalized YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ValidDate reports whether s is a normalized date.
func ValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}
