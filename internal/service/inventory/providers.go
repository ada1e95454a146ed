package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// ProviderInput creates or patches a provider.
type ProviderInput struct {
	Name     *string               `json:"name"`
	URL      *string               `json:"url"`
	Username *string               `json:"username"`
	Password domain.OptionalString `json:"password"`
}

// ProviderView is a provider with its password redacted.
type ProviderView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url,omitempty"`
	Username    string    `json:"username,omitempty"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func providerView(p domain.Provider) ProviderView {
	return ProviderView{
		ID:          p.ID,
		Name:        p.Name,
		URL:         p.URL,
		Username:    p.Username,
		HasPassword: p.Password != "",
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ListProviders returns every provider of the tenant.
func (s Service) ListProviders(ctx context.Context, tenantID string) ([]ProviderView, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]ProviderView, 0, len(doc.Providers))
	for _, p := range doc.Providers {
		out = append(out, providerView(p))
	}
	return out, nil
}

// CreateProvider adds a provider. Name is required.
func (s Service) CreateProvider(ctx context.Context, tenantID string, in ProviderInput) (ProviderView, error) {
	now := s.timestamp()
	p := domain.Provider{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	applyProvider(&p, in)
	if p.Name == "" {
		return ProviderView{}, invalid("name is required")
	}
	if _, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		doc.Providers = append(doc.Providers, p)
		return nil
	}); err != nil {
		return ProviderView{}, err
	}
	return providerView(p), nil
}

// UpdateProvider patches a provider.
func (s Service) UpdateProvider(ctx context.Context, tenantID, id string, in ProviderInput) (ProviderView, error) {
	var out domain.Provider
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		p := doc.Provider(id)
		if p == nil {
			return ErrNotFound
		}
		next := *p
		applyProvider(&next, in)
		if next.Name == "" {
			return invalid("name is required")
		}
		next.UpdatedAt = s.timestamp()
		*p = next
		out = next
		return nil
	})
	if err != nil {
		return ProviderView{}, err
	}
	return providerView(out), nil
}

// DeleteProvider removes a provider and clears references to it.
func (s Service) DeleteProvider(ctx context.Context, tenantID, id string) error {
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		idx := -1
		for i := range doc.Providers {
			if doc.Providers[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		doc.Providers = append(doc.Providers[:idx], doc.Providers[idx+1:]...)
		for i := range doc.Servers {
			if doc.Servers[i].ProviderID == id {
				doc.Servers[i].ProviderID = ""
			}
		}
		for i := range doc.Domains {
			if doc.Domains[i].ProviderID == id {
				doc.Domains[i].ProviderID = ""
			}
		}
		return nil
	})
	return err
}

func applyProvider(p *domain.Provider, in ProviderInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.URL != nil {
		p.URL = strings.TrimSpace(*in.URL)
	}
	if in.Username != nil {
		p.Username = strings.TrimSpace(*in.Username)
	}
	p.Password = in.Password.Apply(p.Password)
}
