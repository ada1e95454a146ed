package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/domainstate"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
)

const tenant = "tenant-1"

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	raw := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sealed := secrets.NewSealedRepository(raw, secrets.NewCodec("inventory-test", logger))
	svc := New(sealed, logger).WithClock(func() time.Time { return fixedNow })
	return svc, raw
}

func ptr[T any](v T) *T { return &v }

func TestServerSecretsSealedAndRedacted(t *testing.T) {
	svc, raw := newService(t)
	ctx := context.Background()

	view, err := svc.CreateServer(ctx, tenant, ServerInput{
		Name:     ptr("web"),
		IP:       ptr("10.0.0.1"),
		Password: domain.Value("hunter2"),
	})
	require.NoError(t, err)
	assert.True(t, view.HasPassword)
	assert.False(t, view.HasSSHPassword)
	assert.Equal(t, DefaultSSHPort, view.SSHPort)
	assert.Equal(t, domain.ServerStopped, view.Status)

	stored, err := raw.Load(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, stored.Servers, 1)
	assert.True(t, crypto.IsEnvelope(stored.Servers[0].Password))

	encoded, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "hunter2")
}

func TestServerTriStatePatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.CreateServer(ctx, tenant, ServerInput{
		Name:        ptr("db"),
		IP:          ptr("10.0.0.2"),
		Password:    domain.Value("a"),
		SSHPassword: domain.Value("b"),
	})
	require.NoError(t, err)

	var patch ServerInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"db-1","sshPassword":null}`), &patch))
	updated, err := svc.UpdateServer(ctx, tenant, created.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "db-1", updated.Name)
	assert.True(t, updated.HasPassword)
	assert.False(t, updated.HasSSHPassword)

	_, err = svc.UpdateServer(ctx, tenant, "missing", patch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateServer(ctx, tenant, ServerInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateServer(ctx, tenant, ServerInput{Name: ptr("x"), IP: ptr("1.2.3.4"), SSHPort: ptr(70000)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateServer(ctx, tenant, ServerInput{Name: ptr("x"), IP: ptr("1.2.3.4"), ProviderID: ptr("nope")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDomainCreateClassifiesAndLinks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	srv, err := svc.CreateServer(ctx, tenant, ServerInput{Name: ptr("web"), IP: ptr("10.0.0.1")})
	require.NoError(t, err)

	d, err := svc.CreateDomain(ctx, tenant, DomainInput{
		Name:           ptr("HTTPS://Example.COM/"),
		ExpirationDate: ptr("2026-11-01T00:00:00Z"),
		NameServers:    ptr([]string{"ns1.cloudflare.com."}),
		Records: ptr([]domain.DNSRecord{
			{Type: "a", Name: "@", Value: "10.0.0.1"},
			{Type: "A", Name: "example.com", Value: "10.0.0.1"},
		}),
		Status: ptr([]string{"clientTransferProhibited https://icann.org/epp"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "example.com", d.Name)
	assert.Equal(t, "2026-11-01", d.ExpirationDate)
	assert.Equal(t, domain.StateExpiringSoon, d.State)
	require.NotNil(t, d.DaysRemaining)
	assert.Equal(t, 16, *d.DaysRemaining)
	require.Len(t, d.Records, 1)
	assert.Equal(t, domain.DefaultRecordTTL, d.Records[0].TTL)
	assert.Equal(t, srv.ID, d.Records[0].LinkedServerID)
	assert.Equal(t, []string{domainstate.StatusClientTransferProhibited}, d.Status)
	assert.NotEmpty(t, d.DNSProvider)

	require.NoError(t, svc.DeleteServer(ctx, tenant, srv.ID))
	got, err := svc.GetDomain(ctx, tenant, d.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Records[0].LinkedServerID)
}

func TestDomainValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateDomain(ctx, tenant, DomainInput{Name: ptr("localhost")})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateDomain(ctx, tenant, DomainInput{Name: ptr("example.org"), ExpirationDate: ptr("someday")})
	assert.ErrorIs(t, err, ErrInvalid)

	d, err := svc.CreateDomain(ctx, tenant, DomainInput{Name: ptr("example.org")})
	require.NoError(t, err)
	assert.Equal(t, domain.StateNoDNS, d.State)
	assert.Nil(t, d.DaysRemaining)

	_, err = svc.CreateDomain(ctx, tenant, DomainInput{Name: ptr("Example.org.")})
	assert.ErrorIs(t, err, ErrDuplicate)

	cleared, err := svc.UpdateDomain(ctx, tenant, d.ID, DomainInput{ExpirationDate: ptr("")})
	require.NoError(t, err)
	assert.Empty(t, cleared.ExpirationDate)
}

func TestDeleteProviderClearsReferences(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.CreateProvider(ctx, tenant, ProviderInput{Name: ptr("Hetzner"), Password: domain.Value("pw")})
	require.NoError(t, err)
	assert.True(t, p.HasPassword)

	srv, err := svc.CreateServer(ctx, tenant, ServerInput{Name: ptr("a"), IP: ptr("1.1.1.1"), ProviderID: ptr(p.ID)})
	require.NoError(t, err)
	assert.Equal(t, p.ID, srv.ProviderID)

	require.NoError(t, svc.DeleteProvider(ctx, tenant, p.ID))
	got, err := svc.GetServer(ctx, tenant, srv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProviderID)

	assert.ErrorIs(t, svc.DeleteProvider(ctx, tenant, p.ID), ErrNotFound)
}

func TestSettingsPatch(t *testing.T) {
	svc, raw := newService(t)
	ctx := context.Background()

	var patch SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{
		"whois": {"apiBase": " https://whois.example/api ", "apiKey": "k-1", "method": "post"},
		"autoCheck": {"serverEnabled": true, "serverIntervalHours": 6, "domainFrequency": "weekly"},
		"notifications": {"bark": {"enabled": true, "key": "bark-key"}, "smtp": {"password": "mail-pw", "to": ["ops@example.com"]}}
	}`), &patch))

	view, err := svc.UpdateSettings(ctx, tenant, patch)
	require.NoError(t, err)
	assert.Equal(t, "https://whois.example/api", view.Whois.APIBase)
	assert.Equal(t, "POST", view.Whois.Method)
	assert.True(t, view.Whois.HasAPIKey)
	assert.True(t, view.Notifications.Bark.HasKey)
	assert.True(t, view.Notifications.SMTP.HasPassword)
	assert.Equal(t, 6, view.AutoCheck.ServerIntervalHours)
	assert.Equal(t, domain.FrequencyWeekly, view.AutoCheck.DomainFrequency)

	stored, err := raw.Load(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, crypto.IsEnvelope(stored.Settings.Whois.APIKey))
	assert.True(t, crypto.IsEnvelope(stored.Settings.Notifications.Bark.Key))

	opened, err := svc.Settings(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, "k-1", opened.Whois.APIKey)

	var clear SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"whois": {"apiKey": null}, "notifications": {"bark": {"enabled": false}}}`), &clear))
	view, err = svc.UpdateSettings(ctx, tenant, clear)
	require.NoError(t, err)
	assert.False(t, view.Whois.HasAPIKey)
	assert.True(t, view.Notifications.Bark.HasKey)
	assert.True(t, view.Notifications.SMTP.HasPassword)
}

func TestSettingsValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	bad := []SettingsPatch{
		{AutoCheck: &AutoCheckPatch{ServerIntervalHours: ptr(0)}},
		{AutoCheck: &AutoCheckPatch{DomainFrequency: ptr(domain.DomainCheckFrequency("hourly"))}},
		{Whois: &WhoisPatch{Method: ptr("PUT")}},
		{Notifications: &NotifyPatch{SMTP: &SMTPPatch{To: ptr([]string{"not an address"})}}},
	}
	for _, p := range bad {
		_, err := svc.UpdateSettings(ctx, tenant, p)
		assert.ErrorIs(t, err, ErrInvalid)
	}

	view, err := svc.GetSettings(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, view.AutoCheck.ServerIntervalHours)
	assert.Equal(t, "GET", view.Whois.Method)
}
