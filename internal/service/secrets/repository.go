package secrets

import (
	"context"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
)

// SealedRepository presents plaintext documents to callers while the wrapped
// store only ever sees sealed secret fields.
type SealedRepository struct {
	inner repository.TenantRepository
	codec *Codec
}

// NewSealedRepository decorates inner with codec.
func NewSealedRepository(inner repository.TenantRepository, codec *Codec) *SealedRepository {
	return &SealedRepository{inner: inner, codec: codec}
}

var _ repository.TenantRepository = (*SealedRepository)(nil)

// ListTenantIDs delegates to the wrapped store.
func (r *SealedRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	return r.inner.ListTenantIDs(ctx)
}

// Load returns the document with secrets opened.
func (r *SealedRepository) Load(ctx context.Context, tenantID string) (*domain.Document, error) {
	doc, err := r.inner.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	r.codec.OpenDocument(doc)
	return doc, nil
}

// Update runs fn against the opened document and seals it again before it is
// stored. A secret that could not be opened is handed to fn in its stored
// form and kept unless fn replaced or cleared it.
func (r *SealedRepository) Update(ctx context.Context, tenantID string, fn repository.MutateFunc) (*domain.Document, error) {
	out, err := r.inner.Update(ctx, tenantID, func(doc *domain.Document) error {
		failed := r.codec.openForUpdate(doc)
		if err := fn(doc); err != nil {
			return err
		}
		r.codec.sealForStore(doc, failed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.codec.OpenDocument(out)
	return out, nil
}

// Ping delegates to the wrapped store.
func (r *SealedRepository) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}
