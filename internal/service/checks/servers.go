package checks

import (
	"context"
	"fmt"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/probe"
)

// ServerResult is the per-server outcome of a check run.
type ServerResult struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	IP        string              `json:"ip"`
	Status    domain.ServerStatus `json:"status"`
	Port      int                 `json:"port,omitempty"`
	LatencyMs *int64              `json:"latencyMs"`
	Error     string              `json:"error,omitempty"`
}

// ServerRun is the outcome of CheckServers.
type ServerRun struct {
	Results []ServerResult       `json:"results"`
	Log     domain.CheckLogEntry `json:"log"`
}

// CheckServers probes every server of the tenant, persists status and
// latency, appends a check-log entry and alerts on unreachable servers. The
// run is detached from ctx cancellation once started.
func (s *Service) CheckServers(ctx context.Context, tenantID string, trigger domain.CheckTrigger) (ServerRun, error) {
	ctx, span := startRun(context.WithoutCancel(ctx), tenantID, domain.CheckServer, trigger)
	defer span.End()
	defer s.begin(tenantID, domain.CheckServer)()
	started := s.now()

	doc, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return ServerRun{}, err
	}

	results := runBounded(ctx, s.concurrency, doc.Servers, s.probeServer, func(srv domain.Server, r any) ServerResult {
		s.logger.Error("server probe panicked", "tenant_id", tenantID, "server_id", srv.ID, "panic", r)
		return ServerResult{ID: srv.ID, Name: srv.Name, IP: srv.IP, Status: domain.ServerStopped, Error: fmt.Sprint("probe failed: ", r)}
	})

	finished := s.now()
	entry := domain.CheckLogEntry{
		Timestamp:  finished.UTC(),
		Type:       domain.CheckServer,
		Trigger:    trigger,
		Total:      len(results),
		DurationMs: finished.Sub(started).Milliseconds(),
	}
	var errs []string
	for _, r := range results {
		if r.Status == domain.ServerRunning {
			entry.Success++
			s.entities.WithLabelValues(string(domain.CheckServer), "ok").Inc()
			continue
		}
		entry.Failed++
		entry.FailedItems = append(entry.FailedItems, domain.CheckLogItem{ID: r.ID, Name: r.Name, Error: r.Error})
		errs = append(errs, r.Error)
		s.entities.WithLabelValues(string(domain.CheckServer), "failed").Inc()
	}
	entry.Errors = distinct(errs, 10)

	var (
		down   []domain.Server
		stored domain.CheckLogEntry
	)
	updated, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		down = down[:0]
		for _, r := range results {
			srv := doc.Server(r.ID)
			if srv == nil {
				continue
			}
			checkedAt := finished.UTC()
			srv.Status = r.Status
			srv.LastPingMs = r.LatencyMs
			srv.LastCheckedAt = &checkedAt
			if r.Status != domain.ServerRunning {
				down = append(down, *srv)
			}
		}
		if trigger == domain.TriggerAuto {
			ranAt := started.UTC()
			doc.Settings.AutoCheck.ServerLastRunAt = &ranAt
		}
		stored = checklog.Append(doc, entry)
		return nil
	})
	if err != nil {
		return ServerRun{}, fmt.Errorf("store server results: %w", err)
	}
	s.runs.WithLabelValues(string(domain.CheckServer), string(trigger)).Inc()
	s.duration.WithLabelValues(string(domain.CheckServer)).Observe(finished.Sub(started).Seconds())
	s.publish(tenantID, stored)
	s.logger.Info("server check finished", "tenant_id", tenantID, "trigger", trigger, "total", stored.Total, "failed", stored.Failed)

	if len(down) > 0 && updated.Settings.Preferences.NotifyServerDown {
		msg := notify.ServerDown(down, finished)
		if s.notify(ctx, tenantID, updated.Settings.Notifications, stored.ID, msg.Title, msg.Body) {
			stored.NotificationSent = true
		}
	}
	return ServerRun{Results: results, Log: stored}, nil
}

func (s *Service) probeServer(ctx context.Context, srv domain.Server) ServerResult {
	res := ServerResult{ID: srv.ID, Name: srv.Name, IP: srv.IP, Status: domain.ServerStopped}
	if srv.IP == "" {
		res.Error = "no ip configured"
		return res
	}
	p := s.prober.IsReachable(ctx, srv.IP, probe.ServerPorts(srv.SSHPort))
	if !p.Reachable {
		res.Error = "unreachable"
		if p.Err != nil {
			res.Error = "unreachable: " + p.Err.Error()
		}
		return res
	}
	res.Status = domain.ServerRunning
	res.Port = p.Port
	res.LatencyMs = p.LatencyMs
	return res
}
