package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// ServerDown renders the alert for unreachable servers.
func ServerDown(servers []domain.Server, at time.Time) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d server(s) unreachable:\n", len(servers))
	for _, s := range servers {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Name, s.IP)
	}
	b.WriteString("Checked at " + at.UTC().Format(time.RFC3339))
	return Message{Title: "Server down alert", Body: b.String()}
}

// DomainsExpiring renders the alert for domains that newly entered an
// expiring or expired state.
func DomainsExpiring(items []domain.CheckLogItem, at time.Time) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d domain(s) need attention:\n", len(items))
	for _, it := range items {
		days := "unknown"
		if it.DaysRemaining != nil {
			days = fmt.Sprintf("%d days", *it.DaysRemaining)
		}
		fmt.Fprintf(&b, "- %s: %s\n", it.Name, days)
	}
	b.WriteString("Checked at " + at.UTC().Format(time.RFC3339))
	return Message{Title: "Domain expiry alert", Body: b.String()}
}
