package checks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/probe"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeProber struct {
	up map[string]int64
}

func (f fakeProber) IsReachable(_ context.Context, host string, ports []int) probe.Result {
	if host == "panic" {
		panic("prober exploded")
	}
	if ms, ok := f.up[host]; ok {
		latency := ms
		return probe.Result{Reachable: true, Port: ports[0], LatencyMs: &latency}
	}
	return probe.Result{}
}

type fakeWhois struct {
	mu      sync.Mutex
	results map[string]whois.Result
	calls   int
}

func (f *fakeWhois) Lookup(_ context.Context, name string, _ domain.WhoisSettings) whois.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r, ok := f.results[name]; ok {
		return r
	}
	return whois.Result{Domain: name, Error: "lookup: http 502"}
}

func (f *fakeWhois) set(name string, r whois.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = r
}

type sentMessage struct {
	title, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	ok   bool
	sent []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, _ domain.NotificationSettings, title, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{title: title, body: body})
	return f.ok
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecorder struct {
	store   *memory.Store
	mu      sync.Mutex
	entries []domain.CheckLogEntry
}

func (f *fakeRecorder) Publish(_ string, e domain.CheckLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) MarkNotified(ctx context.Context, tenantID, entryID string) error {
	var updated domain.CheckLogEntry
	_, err := f.store.Update(ctx, tenantID, func(doc *domain.Document) error {
		entry, ok := checklog.MarkNotified(doc, entryID)
		if !ok {
			return repository.ErrNotFound
		}
		updated = entry
		return nil
	})
	if err != nil {
		return err
	}
	f.Publish(tenantID, updated)
	return nil
}

type fixture struct {
	store    *memory.Store
	whois    *fakeWhois
	notifier *fakeNotifier
	recorder *fakeRecorder
	svc      *Service
}

func newFixture(t *testing.T, up map[string]int64) fixture {
	t.Helper()
	store := memory.New()
	f := fixture{
		store:    store,
		whois:    &fakeWhois{results: map[string]whois.Result{}},
		notifier: &fakeNotifier{ok: true},
		recorder: &fakeRecorder{store: store},
	}
	f.svc = New(f.store, fakeProber{up: up}, f.whois, f.notifier, f.recorder,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{Concurrency: 2, Now: func() time.Time { return testNow }})
	return f
}

func (f fixture) seed(t *testing.T, tenantID string, fn func(doc *domain.Document)) {
	t.Helper()
	_, err := f.store.Update(context.Background(), tenantID, func(doc *domain.Document) error {
		doc.Settings.Whois.APIBase = "https://whois.example.com"
		fn(doc)
		return nil
	})
	require.NoError(t, err)
}

func (f fixture) load(t *testing.T, tenantID string) *domain.Document {
	t.Helper()
	doc, err := f.store.Load(context.Background(), tenantID)
	require.NoError(t, err)
	return doc
}

func okLookup(expiration string, records ...domain.DNSRecord) whois.Result {
	if records == nil {
		records = []domain.DNSRecord{}
	}
	return whois.Result{
		Success: true,
		Whois: whois.WhoisData{
			Registrar:      "Fresh Registrar",
			ExpirationDate: expiration,
			Status:         []string{"ok"},
			NameServers:    []string{"ns1.cloudflare.com"},
		},
		DNS:         whois.DNSData{Records: records},
		DNSProvider: "Cloudflare",
	}
}

func aRecord(ip string) domain.DNSRecord {
	return domain.DNSRecord{Type: "A", Name: "example.com", Value: ip, TTL: 300}
}
