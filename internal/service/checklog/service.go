package checklog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/ws"
)

// Service exposes check logs to handlers and streams new entries.
type Service struct {
	repo   repository.TenantRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a check-log service.
func New(repo repository.TenantRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Publish streams an entry to the tenant's live subscribers.
func (s Service) Publish(tenantID string, entry domain.CheckLogEntry) {
	if s.hub == nil {
		return
	}
	data, err := MarshalEntry(entry)
	if err != nil {
		s.logger.Warn("failed to marshal check log payload", "error", err)
		return
	}
	s.hub.Broadcast(tenantID, data)
}

// MarkNotified records that the entry's notification was delivered.
func (s Service) MarkNotified(ctx context.Context, tenantID, entryID string) error {
	var updated domain.CheckLogEntry
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		entry, ok := MarkNotified(doc, entryID)
		if !ok {
			return repository.ErrNotFound
		}
		updated = entry
		return nil
	})
	if err != nil {
		return err
	}
	s.Publish(tenantID, updated)
	return nil
}

// List returns a page of the tenant's history.
func (s Service) List(ctx context.Context, tenantID string, page, pageSize int, typeFilter domain.CheckType) (Page, error) {
	doc, err := s.repo.Load(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return Query(nil, page, pageSize, typeFilter), nil
	}
	if err != nil {
		return Page{}, err
	}
	return Query(doc.CheckLogs, page, pageSize, typeFilter), nil
}

// Hub returns the websocket hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// MarshalEntry formats an entry for streaming payloads.
func MarshalEntry(entry domain.CheckLogEntry) ([]byte, error) {
	return json.Marshal(map[string]any{
		"kind":      "checklog",
		"entry":     entry,
		"timestamp": entry.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
