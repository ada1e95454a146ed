package checks

import (
	"context"
	"fmt"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/domainstate"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

// DomainResult is the per-domain outcome of a check run.
type DomainResult struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Success        bool               `json:"success"`
	State          domain.DomainState `json:"state"`
	DaysRemaining  *int               `json:"daysRemaining"`
	ExpirationDate string             `json:"expirationDate,omitempty"`
	Error          string             `json:"error,omitempty"`
	Fallback       bool               `json:"fallback,omitempty"`
}

// DomainRun is the outcome of CheckDomains.
type DomainRun struct {
	Results []DomainResult       `json:"results"`
	Log     domain.CheckLogEntry `json:"log"`
}

type lookupOutcome struct {
	id     string
	result whois.Result
}

// CheckDomains looks up every domain of the tenant. A failed lookup never
// fails the batch: the item is annotated, prior data is kept and state is
// still recomputed.
func (s *Service) CheckDomains(ctx context.Context, tenantID string, trigger domain.CheckTrigger) (DomainRun, error) {
	ctx, span := startRun(context.WithoutCancel(ctx), tenantID, domain.CheckDomain, trigger)
	defer span.End()
	defer s.begin(tenantID, domain.CheckDomain)()
	started := s.now()

	doc, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return DomainRun{}, err
	}
	cfg := doc.Settings.Whois

	lookups := runBounded(ctx, s.concurrency, doc.Domains, func(ctx context.Context, d domain.Domain) lookupOutcome {
		return lookupOutcome{id: d.ID, result: s.whois.Lookup(ctx, d.Name, cfg)}
	}, func(d domain.Domain, r any) lookupOutcome {
		s.logger.Error("domain lookup panicked", "tenant_id", tenantID, "domain_id", d.ID, "panic", r)
		return lookupOutcome{id: d.ID, result: whois.Result{Domain: d.Name, Error: fmt.Sprint("lookup failed: ", r)}}
	})

	finished := s.now()
	var (
		results []DomainResult
		stored  domain.CheckLogEntry
	)
	updated, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		results = results[:0]
		entry := domain.CheckLogEntry{
			Timestamp:  finished.UTC(),
			Type:       domain.CheckDomain,
			Trigger:    trigger,
			DurationMs: finished.Sub(started).Milliseconds(),
		}
		var errs []string
		for _, l := range lookups {
			d := doc.Domain(l.id)
			if d == nil {
				continue
			}
			previous := d.State
			r := DomainResult{ID: d.ID, Name: d.Name, Success: l.result.Success, Fallback: l.result.Fallback}
			if l.result.Success {
				applyLookup(d, l.result, doc.Servers)
				syncedAt := finished.UTC()
				d.LastSyncAt = &syncedAt
				d.LastSyncError = ""
			} else {
				r.Error = l.result.Error
				d.LastSyncError = l.result.Error
			}
			domainstate.Apply(d, finished)
			d.UpdatedAt = finished.UTC()
			r.State, r.DaysRemaining, r.ExpirationDate = d.State, d.DaysRemaining, d.ExpirationDate
			results = append(results, r)

			entry.Total++
			if r.Success {
				entry.Success++
			} else {
				entry.Failed++
				entry.FailedItems = append(entry.FailedItems, domain.CheckLogItem{ID: d.ID, Name: d.Name, Error: r.Error, State: d.State})
				errs = append(errs, r.Error)
			}
			if d.State.IsExpiring() && previous != d.State {
				entry.ExpiringItems = append(entry.ExpiringItems, domain.CheckLogItem{ID: d.ID, Name: d.Name, State: d.State, DaysRemaining: d.DaysRemaining})
			}
		}
		entry.Errors = distinct(errs, 10)
		if trigger == domain.TriggerAuto {
			ranAt := started.UTC()
			doc.Settings.AutoCheck.DomainLastRunAt = &ranAt
		}
		stored = checklog.Append(doc, entry)
		return nil
	})
	if err != nil {
		return DomainRun{}, fmt.Errorf("store domain results: %w", err)
	}
	for _, r := range results {
		outcome := "ok"
		if !r.Success {
			outcome = "failed"
		}
		s.entities.WithLabelValues(string(domain.CheckDomain), outcome).Inc()
	}
	s.runs.WithLabelValues(string(domain.CheckDomain), string(trigger)).Inc()
	s.duration.WithLabelValues(string(domain.CheckDomain)).Observe(finished.Sub(started).Seconds())
	s.publish(tenantID, stored)
	s.logger.Info("domain check finished", "tenant_id", tenantID, "trigger", trigger, "total", stored.Total, "failed", stored.Failed, "expiring", len(stored.ExpiringItems))

	if len(stored.ExpiringItems) > 0 && updated.Settings.Preferences.NotifyDomainExpiring {
		msg := notify.DomainsExpiring(stored.ExpiringItems, finished)
		if s.notify(ctx, tenantID, updated.Settings.Notifications, stored.ID, msg.Title, msg.Body) {
			stored.NotificationSent = true
		}
	}
	if results == nil {
		results = []DomainResult{}
	}
	return DomainRun{Results: results, Log: stored}, nil
}

// SyncDomain refreshes one domain and persists it only when the result is
// usable: a valid expiration date (unless overwrite is disabled) and at
// least one DNS record.
func (s *Service) SyncDomain(ctx context.Context, tenantID, domainID string) (*domain.Domain, error) {
	ctx = context.WithoutCancel(ctx)
	doc, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	current := doc.Domain(domainID)
	if current == nil {
		return nil, ErrDomainNotFound
	}
	if whois.NormalizeBase(doc.Settings.Whois.APIBase) == "" {
		return nil, ErrWhoisNotConfigured
	}
	res := s.whois.Lookup(ctx, current.Name, doc.Settings.Whois)
	if !res.Success {
		s.logger.Warn("domain sync lookup failed", "tenant_id", tenantID, "domain_id", domainID, "error", res.Error)
		return nil, &LookupError{Attempts: res.Attempts}
	}

	now := s.now()
	var out domain.Domain
	_, err = s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		d := doc.Domain(domainID)
		if d == nil {
			return ErrDomainNotFound
		}
		candidate := *d
		candidate.Records = append([]domain.DNSRecord(nil), d.Records...)
		applyLookup(&candidate, res, doc.Servers)
		if !candidate.DisableAutoOverwrite && !domainstate.ValidDate(candidate.ExpirationDate) {
			return ErrExpirationInvalid
		}
		if len(candidate.Records) == 0 {
			return ErrDNSEmpty
		}
		syncedAt := now.UTC()
		candidate.LastSyncAt = &syncedAt
		candidate.LastSyncError = ""
		candidate.UpdatedAt = syncedAt
		domainstate.Apply(&candidate, now)
		*d = candidate
		out = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("domain synced", "tenant_id", tenantID, "domain_id", domainID, "state", out.State)
	return &out, nil
}

// applyLookup merges a successful lookup into d. Status, name servers and
// records always refresh from the side that answered. Registrar, expiration
// and DNS provider are only overwritten when the domain allows it; an empty
// fresh value keeps the prior one.
func applyLookup(d *domain.Domain, res whois.Result, servers []domain.Server) {
	if res.Whois.Error == "" {
		d.Status = append([]string{}, res.Whois.Status...)
		d.NameServers = append([]string{}, res.Whois.NameServers...)
		if !d.DisableAutoOverwrite {
			if res.Whois.ExpirationDate != "" {
				d.ExpirationDate = res.Whois.ExpirationDate
			}
			if res.Whois.Registrar != "" {
				d.Registrar = res.Whois.Registrar
			}
			if res.DNSProvider != "" {
				d.DNSProvider = res.DNSProvider
			}
		}
	}
	if res.DNS.Error == "" {
		records := append([]domain.DNSRecord{}, res.DNS.Records...)
		whois.LinkServers(records, servers)
		d.Records = records
	}
}
