// Package checklog keeps the bounded, newest-first history of check runs
// inside a tenant document.
package checklog

import (
	"github.com/google/uuid"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

const (
	// MaxEntries bounds the history kept per tenant.
	MaxEntries = 100

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Append prepends entry and evicts the oldest entries beyond MaxEntries.
// It returns the stored entry, with an ID assigned if it had none.
func Append(doc *domain.Document, entry domain.CheckLogEntry) domain.CheckLogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	logs := make([]domain.CheckLogEntry, 0, min(len(doc.CheckLogs)+1, MaxEntries))
	logs = append(logs, entry)
	for _, e := range doc.CheckLogs {
		if len(logs) == MaxEntries {
			break
		}
		logs = append(logs, e)
	}
	doc.CheckLogs = logs
	return entry
}

// MarkNotified flips NotificationSent on the entry with id. It is the only
// mutation allowed on a stored entry.
func MarkNotified(doc *domain.Document, id string) (domain.CheckLogEntry, bool) {
	for i := range doc.CheckLogs {
		if doc.CheckLogs[i].ID == id {
			doc.CheckLogs[i].NotificationSent = true
			return doc.CheckLogs[i], true
		}
	}
	return domain.CheckLogEntry{}, false
}

// Page is one slice of the history.
type Page struct {
	Items      []domain.CheckLogEntry `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	TotalPages int                    `json:"totalPages"`
}

// Query returns page (1-based) of logs, newest first, optionally limited to
// one check type. Out-of-range pages are empty.
func Query(logs []domain.CheckLogEntry, page, pageSize int, typeFilter domain.CheckType) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	filtered := logs
	if typeFilter != "" {
		filtered = make([]domain.CheckLogEntry, 0, len(logs))
		for _, e := range logs {
			if e.Type == typeFilter {
				filtered = append(filtered, e)
			}
		}
	}
	out := Page{
		Items:      []domain.CheckLogEntry{},
		Total:      len(filtered),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (len(filtered) + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return out
	}
	end := min(start+pageSize, len(filtered))
	out.Items = append(out.Items, filtered[start:end]...)
	return out
}
