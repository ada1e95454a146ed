package checks

import (
	"context"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// KindStatus describes the schedule of one check kind.
type KindStatus struct {
	Enabled   bool       `json:"enabled"`
	Interval  string     `json:"interval"`
	LastRunAt *time.Time `json:"lastRunAt"`
	NextRunAt *time.Time `json:"nextRunAt"`
	Due       bool       `json:"due"`
	Running   bool       `json:"running"`
}

// Status is the schedule overview returned by GetCheckStatus.
type Status struct {
	Server          KindStatus                  `json:"server"`
	Domain          KindStatus                  `json:"domain"`
	DomainFrequency domain.DomainCheckFrequency `json:"domainFrequency"`
	ServerHours     int                         `json:"serverIntervalHours"`
}

// GetCheckStatus reports, per kind, whether automatic checks are enabled,
// when they last ran and when they are next due.
func (s *Service) GetCheckStatus(ctx context.Context, tenantID string) (Status, error) {
	doc, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return Status{}, err
	}
	now := s.now()
	auto := doc.Settings.AutoCheck
	return Status{
		Server:          s.kindStatus(tenantID, domain.CheckServer, auto.ServerEnabled, auto.ServerLastRunAt, auto.ServerInterval(), now),
		Domain:          s.kindStatus(tenantID, domain.CheckDomain, auto.DomainEnabled, auto.DomainLastRunAt, auto.DomainFrequency.Interval(), now),
		DomainFrequency: auto.DomainFrequency,
		ServerHours:     int(auto.ServerInterval() / time.Hour),
	}, nil
}

func (s *Service) kindStatus(tenantID string, typ domain.CheckType, enabled bool, last *time.Time, interval time.Duration, now time.Time) KindStatus {
	ks := KindStatus{
		Enabled:   enabled,
		Interval:  interval.String(),
		LastRunAt: last,
		Due:       enabled && Due(last, interval, now),
		Running:   s.isRunning(tenantID, typ),
	}
	if enabled && last != nil {
		next := last.Add(interval)
		ks.NextRunAt = &next
	}
	return ks
}
