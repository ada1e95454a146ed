package httpx

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checks"
	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/probe"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
	"github.com/rikouu/serdo-v2-sub001/internal/ws"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
)

const (
	testJWTSecret = "router-test-jwt"
	testPassword  = "correct horse"
)

type upProber struct{}

func (upProber) IsReachable(_ context.Context, _ string, ports []int) probe.Result {
	ms := int64(3)
	return probe.Result{Reachable: true, Port: ports[0], LatencyMs: &ms}
}

type stubWhois struct {
	result whois.Result
}

func (s stubWhois) Lookup(_ context.Context, name string, _ domain.WhoisSettings) whois.Result {
	r := s.result
	r.Domain = name
	return r
}

type silentNotifier struct{}

func (silentNotifier) Send(context.Context, domain.NotificationSettings, string, string) bool {
	return false
}

type stubNotifyTester struct {
	results []notify.ChannelResult
	err     error
}

func (s stubNotifyTester) Test(context.Context, domain.NotificationSettings) ([]notify.ChannelResult, error) {
	return s.results, s.err
}

type harness struct {
	router *Router
	raw    *memory.Store
}

func newHarness(t *testing.T, tester NotifyTester) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	raw := memory.New()
	codec := secrets.NewCodec("router-test-secret", logger)
	sealed := secrets.NewSealedRepository(raw, codec)
	logs := checklog.New(sealed, ws.NewHub(), logger)
	lookup := stubWhois{result: whois.Result{Success: false, Error: "upstream down", Attempts: []whois.Attempt{{Endpoint: whois.EndpointLookup, Error: "http 502"}}}}
	if tester == nil {
		tester = stubNotifyTester{err: notify.ErrNotConfigured}
	}
	router := NewRouter(Deps{
		Logger:    logger,
		Auth:      auth.New(raw, sealed, logger, testJWTSecret, time.Hour),
		Inventory: inventory.New(sealed, logger),
		Checks:    checks.New(sealed, upProber{}, lookup, silentNotifier{}, logs, logger, checks.Options{}),
		CheckLogs: logs,
		Revealer:  secrets.NewRevealer(raw, raw, codec, testJWTSecret, 5*time.Minute, logger),
		Whois:     lookup,
		Notifier:  tester,
		DBHealth:  raw.Ping,
	})
	t.Cleanup(router.Close)
	return &harness{router: router, raw: raw}
}

func (h *harness) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) signup(t *testing.T, email string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/signup", "", credentials{Email: email, Password: testPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorBody](t, rec).Code
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/servers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenRequired, errorCode(t, rec))

	rec = h.do(t, http.MethodGet, "/servers", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenInvalid, errorCode(t, rec))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t, nil)
	h.signup(t, "erin@example.com")

	rec := h.do(t, http.MethodPost, "/auth/login", "", credentials{Email: "erin@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidCredentials, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/auth/login", "", credentials{Email: "erin@example.com", Password: testPassword})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerCRUDRedactsSecrets(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "frank@example.com")

	rec := h.do(t, http.MethodPost, "/servers", token, map[string]any{"name": "web", "ip": "10.0.0.1", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter2")
	created := decodeBody[inventory.ServerView](t, rec)
	assert.True(t, created.HasPassword)

	rec = h.do(t, http.MethodPatch, "/servers/"+created.ID, token, map[string]any{"password": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[inventory.ServerView](t, rec).HasPassword)

	rec = h.do(t, http.MethodGet, "/servers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]inventory.ServerView](t, rec), 1)

	rec = h.do(t, http.MethodDelete, "/servers/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/servers/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/servers", token, map[string]any{"name": "no-ip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(t, rec))
}

func TestTenantsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.signup(t, "alice@example.com")
	bob := h.signup(t, "bob@example.com")

	rec := h.do(t, http.MethodPost, "/servers", alice, map[string]any{"name": "a", "ip": "10.0.0.1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[inventory.ServerView](t, rec).ID

	rec = h.do(t, http.MethodGet, "/servers/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevealFlow(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "grace@example.com")

	rec := h.do(t, http.MethodPost, "/servers", token, map[string]any{"name": "db", "ip": "10.0.0.2", "password": "s3cret"})
	require.Equal(t, http.StatusCreated, rec.Code)
	serverID := decodeBody[inventory.ServerView](t, rec).ID
	path := "/secrets/server/" + serverID + "/password"

	rec = h.do(t, http.MethodPost, "/auth/reveal-key", token, map[string]string{"currentPassword": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodePasswordInvalid, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/auth/reveal-key", token, map[string]string{"currentPassword": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	issued := decodeBody[struct {
		RevealKey string `json:"revealKey"`
		Grant     string `json:"grant"`
		ExpiresIn int64  `json:"expiresIn"`
	}](t, rec)
	assert.Equal(t, int64(300), issued.ExpiresIn)

	rec = h.do(t, http.MethodGet, path, token, nil, HeaderRevealKey, issued.RevealKey, HeaderRevealGrant, issued.Grant)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	disclosure := decodeBody[secrets.Disclosure](t, rec)
	require.False(t, disclosure.Empty)
	key, err := base64.StdEncoding.DecodeString(issued.RevealKey)
	require.NoError(t, err)
	plain, err := crypto.Open(key, disclosure.Envelope())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(plain))

	rec = h.do(t, http.MethodGet, "/secrets/server/"+serverID+"/sshPassword", token, nil, HeaderRevealKey, issued.RevealKey, HeaderRevealGrant, issued.Grant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[secrets.Disclosure](t, rec).Empty)

	other := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, crypto.KeySize))
	cases := []struct {
		name    string
		token   string
		headers []string
		status  int
		code    string
	}{
		{"no bearer", "", []string{HeaderRevealKey, issued.RevealKey, HeaderRevealGrant, issued.Grant}, http.StatusUnauthorized, CodeTokenRequired},
		{"no key", token, []string{HeaderRevealGrant, issued.Grant}, http.StatusBadRequest, CodeRevealKeyRequired},
		{"short key", token, []string{HeaderRevealKey, base64.StdEncoding.EncodeToString([]byte("short")), HeaderRevealGrant, issued.Grant}, http.StatusBadRequest, CodeRevealKeyInvalid},
		{"no grant", token, []string{HeaderRevealKey, issued.RevealKey}, http.StatusUnauthorized, CodeRevealGrantRequired},
		{"foreign key", token, []string{HeaderRevealKey, other, HeaderRevealGrant, issued.Grant}, http.StatusUnauthorized, CodeRevealGrantInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, path, tc.token, nil, tc.headers...)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec = h.do(t, http.MethodGet, "/secrets/server/"+serverID+"/ip", token, nil, HeaderRevealKey, issued.RevealKey, HeaderRevealGrant, issued.Grant)
	assert.Equal(t, CodeFieldUnknown, errorCode(t, rec))

	rec = h.do(t, http.MethodGet, "/secrets/server/missing/password", token, nil, HeaderRevealKey, issued.RevealKey, HeaderRevealGrant, issued.Grant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeEntityNotFound, errorCode(t, rec))
}

func TestManualServerCheckAndLogs(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "heidi@example.com")

	rec := h.do(t, http.MethodPost, "/servers", token, map[string]any{"name": "web", "ip": "10.0.0.1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodPost, "/checks/servers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decodeBody[struct {
		Success bool                  `json:"success"`
		Results []checks.ServerResult `json:"results"`
		Log     domain.CheckLogEntry  `json:"log"`
	}](t, rec)
	assert.True(t, run.Success)
	require.Len(t, run.Results, 1)
	assert.Equal(t, domain.ServerRunning, run.Results[0].Status)
	assert.Equal(t, domain.TriggerManual, run.Log.Trigger)

	rec = h.do(t, http.MethodGet, "/checks/logs?type=server&pageSize=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[checklog.Page](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.PageSize)

	rec = h.do(t, http.MethodGet, "/checks/logs?type=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/checks/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[checks.Status](t, rec)
	assert.Nil(t, status.Server.LastRunAt)
}

func TestSyncDomainErrors(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "ivan@example.com")

	rec := h.do(t, http.MethodPost, "/domains/missing/sync", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeDomainNotFound, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/domains", token, map[string]any{"name": "example.net"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[domain.Domain](t, rec).ID

	rec = h.do(t, http.MethodPost, "/domains/"+id+"/sync", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeWhoisNotConfigured, errorCode(t, rec))

	rec = h.do(t, http.MethodPatch, "/settings", token, map[string]any{"whois": map[string]any{"apiBase": "https://whois.example"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/domains/"+id+"/sync", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, CodeWhoisLookupFailed, body.Code)
	assert.NotNil(t, body.Details)

	rec = h.do(t, http.MethodPost, "/settings/whois/test", token, map[string]any{"domain": "example.org"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeWhoisLookupFailed, errorCode(t, rec))
}

func TestNotificationTest(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "judy@example.com")
	rec := h.do(t, http.MethodPost, "/notifications/test", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeNotifyNotConfigured, errorCode(t, rec))

	failing := newHarness(t, stubNotifyTester{
		results: []notify.ChannelResult{{Channel: "bark", Error: "http 500"}},
		err:     notify.ErrAllFailed,
	})
	token = failing.signup(t, "judy@example.com")
	rec = failing.do(t, http.MethodPost, "/notifications/test", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeNotifyFailed, errorCode(t, rec))

	ok := newHarness(t, stubNotifyTester{results: []notify.ChannelResult{{Channel: "bark", Sent: true}}})
	token = ok.signup(t, "judy@example.com")
	rec = ok.do(t, http.MethodPost, "/notifications/test", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent":true`)
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, nil)
	var last *httptest.ResponseRecorder
	for i := 0; i <= rateLimitLogin; i++ {
		last = h.do(t, http.MethodPost, "/auth/login", "", credentials{Email: "x@example.com", Password: "whatever1"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, CodeRateLimited, errorCode(t, last))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPut, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, CodeMethodNotAllowed, errorCode(t, rec))
}

func TestCheckLogWebsocketFeed(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "ken@example.com")
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + routeWSCheckLogs + "?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return h.router.checkLogs.Hub().Count(tenantOf(t, h, token)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := h.do(t, http.MethodPost, "/checks/servers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg struct {
		Kind  string               `json:"kind"`
		Entry domain.CheckLogEntry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "checklog", msg.Kind)
	assert.Equal(t, domain.CheckServer, msg.Entry.Type)
}

func tenantOf(t *testing.T, h *harness, token string) string {
	t.Helper()
	_, claims, err := h.router.auth.Authorize(context.Background(), token)
	require.NoError(t, err)
	return claims.TenantID
}
