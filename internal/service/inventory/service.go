// Package inventory manages the servers, providers, domains and settings a
// tenant owns. Secrets never leave this package in clear text; views report
// only whether a secret is set.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
	ErrDuplicate = errors.New("already exists")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Service performs inventory CRUD through per-tenant Update calls.
type Service struct {
	repo   repository.TenantRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service. repo should seal secrets on write.
func New(repo repository.TenantRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger.With("component", "inventory"), now: time.Now}
}

// WithClock overrides the time source.
func (s Service) WithClock(now func() time.Time) Service {
	s.now = now
	return s
}

func (s Service) load(ctx context.Context, tenantID string) (*domain.Document, error) {
	doc, err := s.repo.Load(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewDocument(tenantID), nil
	}
	return doc, err
}

func (s Service) timestamp() time.Time {
	return s.now().UTC()
}
