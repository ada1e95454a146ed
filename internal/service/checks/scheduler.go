package checks

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
)

const (
	// DefaultTick is the scheduler period.
	DefaultTick = 5 * time.Minute

	tenantParallelism = 4
)

// Scheduler periodically runs due checks for every tenant.
type Scheduler struct {
	repo     repository.TenantRepository
	checks   *Service
	logger   *slog.Logger
	interval time.Duration
	busy     atomic.Bool

	now func() time.Time
}

// NewScheduler constructs a Scheduler ticking every interval.
func NewScheduler(repo repository.TenantRepository, checks *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Scheduler{
		repo:     repo,
		checks:   checks,
		logger:   logger.With("component", "scheduler"),
		interval: interval,
		now:      time.Now,
	}
}

// Run executes the scheduling loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every due check once. A tick that fires while the previous
// one is still running is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("previous iteration still running, skipping tick")
		return
	}
	defer s.busy.Store(false)

	tenants, err := s.repo.ListTenantIDs(ctx)
	if err != nil {
		s.logger.Warn("failed to list tenants", "error", err)
		return
	}
	var eg errgroup.Group
	eg.SetLimit(tenantParallelism)
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			s.runTenant(ctx, tenantID)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Scheduler) runTenant(ctx context.Context, tenantID string) {
	doc, err := s.repo.Load(ctx, tenantID)
	if err != nil {
		s.logger.Warn("failed to load tenant", "tenant_id", tenantID, "error", err)
		return
	}
	now := s.now()
	auto := doc.Settings.AutoCheck
	if auto.ServerEnabled && len(doc.Servers) > 0 && Due(auto.ServerLastRunAt, auto.ServerInterval(), now) {
		if _, err := s.checks.CheckServers(ctx, tenantID, domain.TriggerAuto); err != nil {
			s.logger.Warn("scheduled server check failed", "tenant_id", tenantID, "error", err)
		}
	}
	if auto.DomainEnabled && len(doc.Domains) > 0 && Due(auto.DomainLastRunAt, auto.DomainFrequency.Interval(), now) {
		if _, err := s.checks.CheckDomains(ctx, tenantID, domain.TriggerAuto); err != nil {
			s.logger.Warn("scheduled domain check failed", "tenant_id", tenantID, "error", err)
		}
	}
}
