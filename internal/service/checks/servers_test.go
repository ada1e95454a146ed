package checks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
)

func seedServers(t *testing.T, f fixture) {
	f.seed(t, "t1", func(doc *domain.Document) {
		doc.Servers = []domain.Server{
			{ID: "a", Name: "alpha", IP: "10.0.0.1", SSHPort: 22, Status: domain.ServerStopped},
			{ID: "b", Name: "bravo", IP: "10.0.0.2", SSHPort: 2222, Status: domain.ServerRunning},
			{ID: "c", Name: "charlie", IP: "panic", SSHPort: 22},
		}
	})
}

func TestCheckServersRecordsResults(t *testing.T) {
	f := newFixture(t, map[string]int64{"10.0.0.1": 12})
	seedServers(t, f)

	run, err := f.svc.CheckServers(context.Background(), "t1", domain.TriggerManual)
	require.NoError(t, err)
	require.Len(t, run.Results, 3)

	assert.Equal(t, domain.ServerRunning, run.Results[0].Status)
	assert.Equal(t, 22, run.Results[0].Port)
	assert.Equal(t, domain.ServerStopped, run.Results[1].Status)
	assert.Equal(t, domain.ServerStopped, run.Results[2].Status)
	assert.Contains(t, run.Results[2].Error, "prober exploded")

	doc := f.load(t, "t1")
	assert.Equal(t, domain.ServerRunning, doc.Servers[0].Status)
	require.NotNil(t, doc.Servers[0].LastPingMs)
	assert.EqualValues(t, 12, *doc.Servers[0].LastPingMs)
	assert.Equal(t, domain.ServerStopped, doc.Servers[1].Status)
	assert.Nil(t, doc.Servers[1].LastPingMs)
	require.NotNil(t, doc.Servers[1].LastCheckedAt)
	assert.Nil(t, doc.Settings.AutoCheck.ServerLastRunAt)

	require.Len(t, doc.CheckLogs, 1)
	entry := doc.CheckLogs[0]
	assert.Equal(t, domain.CheckServer, entry.Type)
	assert.Equal(t, domain.TriggerManual, entry.Trigger)
	assert.Equal(t, 3, entry.Total)
	assert.Equal(t, 1, entry.Success)
	assert.Equal(t, 2, entry.Failed)
	assert.Len(t, entry.FailedItems, 2)
	assert.True(t, entry.NotificationSent)
	assert.True(t, run.Log.NotificationSent)

	require.Equal(t, 1, f.notifier.count())
	msg := f.notifier.sent[0]
	assert.Equal(t, "Server down alert", msg.title)
	assert.Contains(t, msg.body, "bravo (10.0.0.2)")
	assert.Contains(t, msg.body, "charlie (panic)")
	assert.Contains(t, msg.body, "2026-10-15T12:00:00Z")

	require.Len(t, f.recorder.entries, 2)
	assert.False(t, f.recorder.entries[0].NotificationSent)
	assert.True(t, f.recorder.entries[1].NotificationSent)
}

func TestCheckServersNotificationFailureKeepsFlagUnset(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.ok = false
	seedServers(t, f)

	run, err := f.svc.CheckServers(context.Background(), "t1", domain.TriggerManual)
	require.NoError(t, err)
	assert.False(t, run.Log.NotificationSent)
	assert.Equal(t, 1, f.notifier.count())
	assert.False(t, f.load(t, "t1").CheckLogs[0].NotificationSent)
}

func TestCheckServersRespectsPreference(t *testing.T) {
	f := newFixture(t, nil)
	seedServers(t, f)
	f.seed(t, "t1", func(doc *domain.Document) { doc.Settings.Preferences.NotifyServerDown = false })

	_, err := f.svc.CheckServers(context.Background(), "t1", domain.TriggerAuto)
	require.NoError(t, err)
	assert.Zero(t, f.notifier.count())

	doc := f.load(t, "t1")
	require.NotNil(t, doc.Settings.AutoCheck.ServerLastRunAt)
	assert.True(t, doc.Settings.AutoCheck.ServerLastRunAt.Equal(testNow))
	assert.Equal(t, domain.TriggerAuto, doc.CheckLogs[0].Trigger)
}

func TestCheckServersAllUpDoesNotNotify(t *testing.T) {
	f := newFixture(t, map[string]int64{"10.0.0.1": 1})
	f.seed(t, "t1", func(doc *domain.Document) {
		doc.Servers = []domain.Server{{ID: "a", Name: "alpha", IP: "10.0.0.1", SSHPort: 22}}
	})
	run, err := f.svc.CheckServers(context.Background(), "t1", domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Log.Failed)
	assert.Zero(t, f.notifier.count())
}

func TestCheckServersSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, map[string]int64{"10.0.0.1": 1})
	seedServers(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CheckServers(ctx, "t1", domain.TriggerManual)
	require.NoError(t, err)
	assert.Len(t, f.load(t, "t1").CheckLogs, 1)
}

func TestCheckServersMarksNotifiedThroughCheckLog(t *testing.T) {
	f := newFixture(t, map[string]int64{"10.0.0.1": 12})
	seedServers(t, f)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(f.store, fakeProber{up: map[string]int64{"10.0.0.1": 12}}, f.whois, f.notifier,
		checklog.New(f.store, nil, logger), logger, Options{Concurrency: 2, Now: func() time.Time { return testNow }})

	run, err := svc.CheckServers(context.Background(), "t1", domain.TriggerManual)
	require.NoError(t, err)
	assert.True(t, run.Log.NotificationSent)

	doc := f.load(t, "t1")
	require.Len(t, doc.CheckLogs, 1)
	assert.Equal(t, run.Log.ID, doc.CheckLogs[0].ID)
	assert.True(t, doc.CheckLogs[0].NotificationSent)
}
