package whois

import (
	"net"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

var knownProviders = []struct {
	marker string
	name   string
}{
	{"cloudflare.com", "Cloudflare"},
	{"awsdns", "AWS Route 53"},
	{"azure-dns", "Azure DNS"},
	{"googledomains.com", "Google"},
	{"google.com", "Google"},
	{"domaincontrol.com", "GoDaddy"},
	{"registrar-servers.com", "Namecheap"},
	{"dnspod", "DNSPod"},
	{"alidns.com", "Aliyun"},
	{"hichina.com", "Aliyun"},
	{"digitalocean.com", "DigitalOcean"},
	{"vercel-dns.com", "Vercel"},
	{"nsone.net", "NS1"},
	{"linode.com", "Linode"},
	{"he.net", "Hurricane Electric"},
	{"name.com", "Name.com"},
	{"porkbun.com", "Porkbun"},
	{"gandi.net", "Gandi"},
	{"ovh.net", "OVH"},
	{"hetzner.com", "Hetzner"},
	{"dynect.net", "Dyn"},
	{"ultradns", "UltraDNS"},
}

// ProviderFromNameServers derives a DNS provider label from name servers.
// Unknown providers fall back to the registrable part of the first server.
func ProviderFromNameServers(nameServers []string) string {
	if len(nameServers) == 0 {
		return ""
	}
	for _, ns := range nameServers {
		ns = strings.ToLower(ns)
		for _, p := range knownProviders {
			if matchesProvider(strings.TrimSuffix(ns, "."), p.marker) {
				return p.name
			}
		}
	}
	labels := strings.Split(strings.TrimSuffix(strings.ToLower(nameServers[0]), "."), ".")
	if len(labels) < 2 {
		return ""
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// Markers with a dot are domain suffixes; others are name fragments.
func matchesProvider(ns, marker string) bool {
	if strings.Contains(marker, ".") {
		return ns == marker || strings.HasSuffix(ns, "."+marker)
	}
	return strings.Contains(ns, marker)
}

// LinkServers attaches LinkedServerID to A and AAAA records whose value is a
// known server address. Existing links are recomputed.
func LinkServers(records []domain.DNSRecord, servers []domain.Server) {
	byIP := make(map[string]string, len(servers))
	for _, s := range servers {
		if ip := net.ParseIP(strings.TrimSpace(s.IP)); ip != nil {
			byIP[ip.String()] = s.ID
		}
	}
	for i := range records {
		records[i].LinkedServerID = ""
		if records[i].Type != "A" && records[i].Type != "AAAA" {
			continue
		}
		if ip := net.ParseIP(records[i].Value); ip != nil {
			records[i].LinkedServerID = byIP[ip.String()]
		}
	}
}
