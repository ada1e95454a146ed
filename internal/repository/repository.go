package repository

import (
	"context"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// MutateFunc edits a tenant document in place. Returning an error aborts the
// write and leaves the stored document unchanged.
type MutateFunc func(doc *domain.Document) error

// TenantRepository stores one document per tenant. Update is an atomic
// load-modify-save for a single tenant; updates to different tenants never
// serialise behind each other.
type TenantRepository interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
	Load(ctx context.Context, tenantID string) (*domain.Document, error)
	Update(ctx context.Context, tenantID string, fn MutateFunc) (*domain.Document, error)
	Ping(ctx context.Context) error
}
