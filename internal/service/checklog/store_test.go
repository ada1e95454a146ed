package checklog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/internal/ws"
)

func entry(i int, typ domain.CheckType) domain.CheckLogEntry {
	return domain.CheckLogEntry{
		ID:        fmt.Sprintf("e-%03d", i),
		Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		Type:      typ,
	}
}

func TestAppendKeepsNewestHundred(t *testing.T) {
	doc := domain.NewDocument("t")
	for i := 1; i <= 101; i++ {
		Append(doc, entry(i, domain.CheckServer))
	}
	require.Len(t, doc.CheckLogs, MaxEntries)
	assert.Equal(t, "e-101", doc.CheckLogs[0].ID)
	assert.Equal(t, "e-002", doc.CheckLogs[MaxEntries-1].ID)
	for i := 1; i < len(doc.CheckLogs); i++ {
		assert.True(t, doc.CheckLogs[i-1].Timestamp.After(doc.CheckLogs[i].Timestamp))
	}
}

func TestAppendAssignsID(t *testing.T) {
	doc := domain.NewDocument("t")
	stored := Append(doc, domain.CheckLogEntry{Type: domain.CheckDomain})
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, stored.ID, doc.CheckLogs[0].ID)
}

func TestMarkNotified(t *testing.T) {
	doc := domain.NewDocument("t")
	Append(doc, entry(1, domain.CheckServer))
	Append(doc, entry(2, domain.CheckServer))

	got, ok := MarkNotified(doc, "e-001")
	require.True(t, ok)
	assert.True(t, got.NotificationSent)
	assert.True(t, doc.CheckLogs[1].NotificationSent)
	assert.False(t, doc.CheckLogs[0].NotificationSent)

	_, ok = MarkNotified(doc, "missing")
	assert.False(t, ok)
}

func TestQueryPagesAndFilters(t *testing.T) {
	doc := domain.NewDocument("t")
	for i := 1; i <= 25; i++ {
		typ := domain.CheckServer
		if i%5 == 0 {
			typ = domain.CheckDomain
		}
		Append(doc, entry(i, typ))
	}

	p := Query(doc.CheckLogs, 2, 10, "")
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	require.Len(t, p.Items, 10)
	assert.Equal(t, "e-015", p.Items[0].ID)

	p = Query(doc.CheckLogs, 1, 0, domain.CheckDomain)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	require.Len(t, p.Items, 5)
	assert.Equal(t, "e-025", p.Items[0].ID)

	p = Query(doc.CheckLogs, 9, 10, "")
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
}

type sink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *sink) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, p)
	return nil
}

func (s *sink) Close() {}

func TestServiceMarkNotifiedPublishes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	hub := ws.NewHub()
	sub := &sink{}
	hub.Register("t", sub)
	svc := New(store, hub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := store.Update(ctx, "t", func(doc *domain.Document) error {
		Append(doc, entry(1, domain.CheckServer))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkNotified(ctx, "t", "e-001"))
	require.Len(t, sub.frames, 1)

	var frame struct {
		Kind  string               `json:"kind"`
		Entry domain.CheckLogEntry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(sub.frames[0], &frame))
	assert.Equal(t, "checklog", frame.Kind)
	assert.True(t, frame.Entry.NotificationSent)

	page, err := svc.List(ctx, "t", 1, 10, "")
	require.NoError(t, err)
	assert.True(t, page.Items[0].NotificationSent)

	page, err = svc.List(ctx, "unknown", 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
