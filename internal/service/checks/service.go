// Package checks runs server reachability and domain lookups for a tenant,
// records the outcome and raises notifications. Scheduled and manual runs
// share the same path.
package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/service/probe"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
	"github.com/rikouu/serdo-v2-sub001/pkg/metrics"
)

const defaultConcurrency = 8

var tracer = otel.Tracer("github.com/rikouu/serdo-v2-sub001/internal/service/checks")

// Prober checks TCP reachability.
type Prober interface {
	IsReachable(ctx context.Context, host string, ports []int) probe.Result
}

// WhoisLookup resolves registration and DNS data.
type WhoisLookup interface {
	Lookup(ctx context.Context, name string, cfg domain.WhoisSettings) whois.Result
}

// Notifier delivers an alert and reports whether any channel confirmed.
type Notifier interface {
	Send(ctx context.Context, cfg domain.NotificationSettings, title, body string) bool
}

// Recorder streams check-log entries to live subscribers and records
// delivered notifications.
type Recorder interface {
	Publish(tenantID string, entry domain.CheckLogEntry)
	MarkNotified(ctx context.Context, tenantID, entryID string) error
}

// Options tune a Service.
type Options struct {
	Concurrency int
	Now         func() time.Time
}

// Service runs checks against one tenant at a time.
type Service struct {
	repo        repository.TenantRepository
	prober      Prober
	whois       WhoisLookup
	notifier    Notifier
	recorder    Recorder
	logger      *slog.Logger
	concurrency int
	now         func() time.Time

	mu      sync.Mutex
	running map[string]int

	runs     *prometheus.CounterVec
	entities *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New constructs a Service. notifier may be nil.
func New(repo repository.TenantRepository, prober Prober, lookup WhoisLookup, notifier Notifier, recorder Recorder, logger *slog.Logger, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:        repo,
		prober:      prober,
		whois:       lookup,
		notifier:    notifier,
		recorder:    recorder,
		logger:      logger.With("component", "checks"),
		concurrency: opts.Concurrency,
		now:         opts.Now,
		running:     make(map[string]int),
		runs: metrics.CounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "checks",
			Name:      "runs_total",
			Help:      "Check runs by type and trigger",
		}, []string{"type", "trigger"})),
		entities: metrics.CounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "checks",
			Name:      "entities_total",
			Help:      "Checked entities by type and outcome",
		}, []string{"type", "outcome"})),
		duration: metrics.HistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "checks",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of check runs",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"type"})),
	}
}

// snapshot loads the tenant document, treating a missing tenant as empty.
func (s *Service) snapshot(ctx context.Context, tenantID string) (*domain.Document, error) {
	doc, err := s.repo.Load(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewDocument(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return doc, nil
}

func startRun(ctx context.Context, tenantID string, typ domain.CheckType, trigger domain.CheckTrigger) (context.Context, trace.Span) {
	return tracer.Start(ctx, "checks."+string(typ), trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("check.trigger", string(trigger)),
	))
}

func (s *Service) publish(tenantID string, entry domain.CheckLogEntry) {
	s.recorder.Publish(tenantID, entry)
}

// notify dispatches msg and flips NotificationSent on success.
func (s *Service) notify(ctx context.Context, tenantID string, cfg domain.NotificationSettings, entryID, title, body string) bool {
	if s.notifier == nil || !s.notifier.Send(ctx, cfg, title, body) {
		return false
	}
	if err := s.recorder.MarkNotified(ctx, tenantID, entryID); err != nil {
		s.logger.Warn("failed to mark notification sent", "tenant_id", tenantID, "entry_id", entryID, "error", err)
	}
	return true
}

func (s *Service) begin(tenantID string, typ domain.CheckType) func() {
	key := tenantID + "/" + string(typ)
	s.mu.Lock()
	s.running[key]++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.running[key]--; s.running[key] <= 0 {
			delete(s.running, key)
		}
		s.mu.Unlock()
	}
}

func (s *Service) isRunning(tenantID string, typ domain.CheckType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[tenantID+"/"+string(typ)] > 0
}

// runBounded applies fn to every item with at most limit in flight. A panic
// in fn is converted to a result by onPanic so siblings keep running.
func runBounded[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) R, onPanic func(T, any) R) []R {
	out := make([]R, len(items))
	var eg errgroup.Group
	eg.SetLimit(max(limit, 1))
	for i, item := range items {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					out[i] = onPanic(item, r)
				}
			}()
			out[i] = fn(ctx, item)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Due reports whether a check kind with the given last run and interval
// should run at now. A kind that never ran is due.
func Due(last *time.Time, interval time.Duration, now time.Time) bool {
	return last == nil || now.Sub(*last) >= interval
}

func distinct(values []string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
