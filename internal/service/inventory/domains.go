package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/domainstate"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

// DomainInput creates or patches a domain. State and DaysRemaining are not
// accepted; they are recomputed on every write.
type DomainInput struct {
	Name                 *string             `json:"name"`
	Registrar            *string             `json:"registrar"`
	DNSProvider          *string             `json:"dnsProvider"`
	ProviderID           *string             `json:"providerId"`
	NameServers          *[]string           `json:"nameServers"`
	ExpirationDate       *string             `json:"expirationDate"`
	Records              *[]domain.DNSRecord `json:"records"`
	Status               *[]string           `json:"status"`
	DisableAutoOverwrite *bool               `json:"disableAutoOverwrite"`
}

// NormalizeName lower-cases a domain name and strips the scheme, path and
// trailing dot users tend to paste.
func NormalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	if i := strings.IndexAny(name, "/?#"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, ".")
}

// ListDomains returns every domain of the tenant with freshly computed state.
func (s Service) ListDomains(ctx context.Context, tenantID string) ([]domain.Domain, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	for i := range doc.Domains {
		domainstate.Apply(&doc.Domains[i], now)
	}
	return doc.Domains, nil
}

// GetDomain returns one domain with freshly computed state.
func (s Service) GetDomain(ctx context.Context, tenantID, id string) (domain.Domain, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return domain.Domain{}, err
	}
	d := doc.Domain(id)
	if d == nil {
		return domain.Domain{}, ErrNotFound
	}
	domainstate.Apply(d, s.timestamp())
	return *d, nil
}

// CreateDomain adds a domain. Names are unique per tenant.
func (s Service) CreateDomain(ctx context.Context, tenantID string, in DomainInput) (domain.Domain, error) {
	now := s.timestamp()
	d := domain.Domain{
		ID:        uuid.NewString(),
		Records:   []domain.DNSRecord{},
		Status:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	var out domain.Domain
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		if err := s.applyDomain(doc, &d, in); err != nil {
			return err
		}
		doc.Domains = append(doc.Domains, d)
		out = d
		return nil
	})
	if err != nil {
		return domain.Domain{}, err
	}
	s.logger.Info("domain created", "tenant_id", tenantID, "domain", out.Name)
	return out, nil
}

// UpdateDomain patches a domain.
func (s Service) UpdateDomain(ctx context.Context, tenantID, id string, in DomainInput) (domain.Domain, error) {
	var out domain.Domain
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		d := doc.Domain(id)
		if d == nil {
			return ErrNotFound
		}
		next := *d
		if err := s.applyDomain(doc, &next, in); err != nil {
			return err
		}
		next.UpdatedAt = s.timestamp()
		*d = next
		out = next
		return nil
	})
	if err != nil {
		return domain.Domain{}, err
	}
	return out, nil
}

// DeleteDomain removes a domain.
func (s Service) DeleteDomain(ctx context.Context, tenantID, id string) error {
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		for i := range doc.Domains {
			if doc.Domains[i].ID == id {
				doc.Domains = append(doc.Domains[:i], doc.Domains[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	return err
}

func (s Service) applyDomain(doc *domain.Document, d *domain.Domain, in DomainInput) error {
	if in.Name != nil {
		d.Name = NormalizeName(*in.Name)
	}
	if d.Name == "" || !validHostname(d.Name) || !strings.Contains(d.Name, ".") {
		return invalid("domain name %q is invalid", d.Name)
	}
	for _, other := range doc.Domains {
		if other.ID != d.ID && other.Name == d.Name {
			return ErrDuplicate
		}
	}
	if in.Registrar != nil {
		d.Registrar = strings.TrimSpace(*in.Registrar)
	}
	if in.ProviderID != nil {
		d.ProviderID = strings.TrimSpace(*in.ProviderID)
		if d.ProviderID != "" && doc.Provider(d.ProviderID) == nil {
			return invalid("provider %s does not exist", d.ProviderID)
		}
	}
	if in.NameServers != nil {
		d.NameServers = normalizeHosts(*in.NameServers)
	}
	if in.DNSProvider != nil {
		d.DNSProvider = strings.TrimSpace(*in.DNSProvider)
	}
	if d.DNSProvider == "" && len(d.NameServers) > 0 {
		d.DNSProvider = whois.ProviderFromNameServers(d.NameServers)
	}
	if in.ExpirationDate != nil {
		raw := strings.TrimSpace(*in.ExpirationDate)
		d.ExpirationDate = domainstate.NormalizeDate(raw)
		if raw != "" && d.ExpirationDate == "" {
			return invalid("expirationDate %q is not a recognised date", raw)
		}
	}
	if in.Records != nil {
		d.Records = whois.NormalizeRecords(*in.Records, d.Name)
	}
	whois.LinkServers(d.Records, doc.Servers)
	if in.Status != nil {
		d.Status = domainstate.NormalizeStatuses(*in.Status)
	}
	if in.DisableAutoOverwrite != nil {
		d.DisableAutoOverwrite = *in.DisableAutoOverwrite
	}
	domainstate.Apply(d, s.timestamp())
	return nil
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	seen := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
