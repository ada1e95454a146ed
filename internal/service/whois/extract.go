package whois

import (
	"strconv"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/domainstate"
)

// The upstream API is loosely specified, so each field is located by an
// ordered list of strategies; the first one that yields a value wins.

type sectionFn func(map[string]any) any

type stringFn func(map[string]any) (string, bool)

type listFn func(map[string]any) ([]string, bool)

func at(path ...string) sectionFn {
	return func(m map[string]any) any {
		var cur any = m
		for _, key := range path {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = obj[key]
			if !ok {
				return nil
			}
		}
		return cur
	}
}

func self(m map[string]any) any { return m }

var whoisSections = []sectionFn{
	at("data", "whois"),
	at("whois"),
	at("data", "whois_data"),
	at("whois_data"),
	at("whoisData"),
	at("data"),
	at("result"),
	self,
}

var registrarFields = []stringFn{
	scalarAt("registrar"),
	scalarAt("registrar", "name"),
	scalarAt("registrar_name"),
	scalarAt("registrarName"),
	scalarAt("sponsoring_registrar"),
}

var expirationFields = []stringFn{
	dateAt("expiration_date"),
	dateAt("expirationDate"),
	dateAt("expiry_date"),
	dateAt("expiryDate"),
	dateAt("registry_expiry_date"),
	dateAt("registrar_registration_expiration_date"),
	dateAt("expires"),
	dateAt("expires_at"),
	dateAt("expire"),
	dateAt("paid-till"),
	dateAt("dates", "expiry"),
}

var statusFields = []listFn{
	statusAt("status"),
	statusAt("domain_status"),
	statusAt("domainStatus"),
	statusAt("statuses"),
	statusAt("epp_status"),
}

var nameServerFields = []listFn{
	hostsAt("name_servers"),
	hostsAt("nameServers"),
	hostsAt("nameservers"),
	hostsAt("name_server"),
	hostsAt("ns"),
}

func extractWhois(payload map[string]any) WhoisData {
	out := WhoisData{Status: []string{}, NameServers: []string{}}
	for _, locate := range whoisSections {
		section, ok := locate(payload).(map[string]any)
		if !ok {
			continue
		}
		candidate := WhoisData{
			Registrar:      firstOf(section, registrarFields),
			ExpirationDate: firstOf(section, expirationFields),
			Status:         firstListOf(section, statusFields),
			NameServers:    firstListOf(section, nameServerFields),
		}
		if !candidate.empty() {
			return candidate
		}
	}
	return out
}

func firstOf(m map[string]any, fns []stringFn) string {
	for _, fn := range fns {
		if v, ok := fn(m); ok {
			return v
		}
	}
	return ""
}

func firstListOf(m map[string]any, fns []listFn) []string {
	for _, fn := range fns {
		if v, ok := fn(m); ok {
			return v
		}
	}
	return []string{}
}

func scalarAt(path ...string) stringFn {
	locate := at(path...)
	return func(m map[string]any) (string, bool) {
		s := scalar(locate(m))
		return s, s != ""
	}
}

func dateAt(path ...string) stringFn {
	locate := at(path...)
	return func(m map[string]any) (string, bool) {
		v := locate(m)
		if list, ok := v.([]any); ok && len(list) > 0 {
			v = list[0]
		}
		d := domainstate.NormalizeDate(scalar(v))
		return d, d != ""
	}
}

func statusAt(key string) listFn {
	return func(m map[string]any) ([]string, bool) {
		codes := domainstate.NormalizeStatuses(stringList(m[key], ",;\n", "status", "name"))
		return codes, len(codes) > 0
	}
}

func hostsAt(key string) listFn {
	return func(m map[string]any) ([]string, bool) {
		raw := stringList(m[key], ",;\n\t ", "name", "host", "hostname", "value")
		out := make([]string, 0, len(raw))
		seen := make(map[string]bool, len(raw))
		for _, h := range raw {
			h = strings.ToLower(strings.TrimSuffix(h, "."))
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
		return out, len(out) > 0
	}
}

// stringList flattens a string, a list of strings or a list of objects into
// trimmed strings. Objects contribute their first non-empty key.
func stringList(v any, seps string, objectKeys ...string) []string {
	var out []string
	add := func(s string) {
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	switch t := v.(type) {
	case string:
		add(t)
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				if s := firstString(it, objectKeys...); s != "" {
					add(s)
				}
			default:
				if s := scalar(it); s != "" {
					add(s)
				}
			}
		}
	}
	return out
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return firstString(t, "name", "value")
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

var dnsSections = []sectionFn{
	at("data", "dns", "records"),
	at("data", "dns"),
	at("dns", "records"),
	at("dns"),
	at("data", "dns_records"),
	at("dns_records"),
	at("dnsRecords"),
	at("data", "records"),
	at("records"),
	at("answers"),
	at("Answer"),
}

var recordTypes = []string{"A", "AAAA", "CNAME", "MX", "TXT", "NS", "SOA", "CAA", "SRV", "PTR"}

var numericTypes = map[int]string{
	1: "A", 2: "NS", 5: "CNAME", 6: "SOA", 12: "PTR", 15: "MX", 16: "TXT", 28: "AAAA", 33: "SRV", 257: "CAA",
}

func extractDNS(payload map[string]any, name string) DNSData {
	for _, locate := range dnsSections {
		if records := recordsFrom(locate(payload), name, true); len(records) > 0 {
			return DNSData{Records: records}
		}
	}
	// Upper-case type buckets directly under data or at the root.
	for _, locate := range []sectionFn{at("data"), self} {
		if records := recordsFrom(locate(payload), name, false); len(records) > 0 {
			return DNSData{Records: records}
		}
	}
	return DNSData{Records: []domain.DNSRecord{}}
}

// recordsFrom reads either a flat list of record objects or per-type buckets.
func recordsFrom(section any, name string, lowerBuckets bool) []domain.DNSRecord {
	var out []domain.DNSRecord
	switch s := section.(type) {
	case []any:
		for _, item := range s {
			if obj, ok := item.(map[string]any); ok {
				if r, ok := recordFrom(obj, "", name); ok {
					out = append(out, r)
				}
			}
		}
	case map[string]any:
		for _, typ := range recordTypes {
			bucket, ok := s[typ]
			if !ok && lowerBuckets {
				bucket, ok = s[strings.ToLower(typ)]
			}
			if !ok {
				continue
			}
			out = append(out, bucketRecords(bucket, typ, name)...)
		}
	}
	return dedupe(out)
}

func bucketRecords(bucket any, typ, name string) []domain.DNSRecord {
	items, ok := bucket.([]any)
	if !ok {
		items = []any{bucket}
	}
	var out []domain.DNSRecord
	for _, item := range items {
		switch it := item.(type) {
		case map[string]any:
			if r, ok := recordFrom(it, typ, name); ok {
				out = append(out, r)
			}
		default:
			if v := scalar(it); v != "" {
				out = append(out, normalizeRecord(typ, name, v, 0, name))
			}
		}
	}
	return out
}

func recordFrom(obj map[string]any, defaultType, domainName string) (domain.DNSRecord, bool) {
	typ := defaultType
	for _, k := range []string{"type", "record_type", "recordType", "rtype"} {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				typ = v
			}
		case float64:
			if t, ok := numericTypes[int(v)]; ok {
				typ = t
			}
		}
		if typ != defaultType {
			break
		}
	}
	value := firstString(obj, "value", "data", "content", "address", "target", "ip", "exchange", "text", "txt", "nsdname")
	if typ == "" || value == "" {
		return domain.DNSRecord{}, false
	}
	ttl := 0
	for _, k := range []string{"ttl", "TTL"} {
		if f, ok := obj[k].(float64); ok {
			ttl = int(f)
			break
		}
	}
	return normalizeRecord(typ, firstString(obj, "name", "host", "hostname", "domain"), value, ttl, domainName), true
}

func normalizeRecord(typ, name, value string, ttl int, domainName string) domain.DNSRecord {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" || name == "@" {
		name = domainName
	}
	if ttl <= 0 {
		ttl = domain.DefaultRecordTTL
	}
	return domain.DNSRecord{
		Type:  strings.ToUpper(strings.TrimSpace(typ)),
		Name:  name,
		Value: strings.TrimSpace(value),
		TTL:   ttl,
	}
}

func dedupe(records []domain.DNSRecord) []domain.DNSRecord {
	out := records[:0]
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		key := r.Type + "|" + strings.ToLower(r.Name) + "|" + r.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// NormalizeRecords applies lookup normalization to hand-entered records and
// drops entries without a type or value.
func NormalizeRecords(records []domain.DNSRecord, domainName string) []domain.DNSRecord {
	out := make([]domain.DNSRecord, 0, len(records))
	for _, r := range records {
		n := normalizeRecord(r.Type, r.Name, r.Value, r.TTL, domainName)
		if n.Type == "" || n.Value == "" {
			continue
		}
		out = append(out, n)
	}
	return dedupe(out)
}
