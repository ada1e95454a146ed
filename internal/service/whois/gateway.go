// Package whois talks to the external WHOIS/DNS aggregation API.
package whois

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/domainstate"
	"github.com/rikouu/serdo-v2-sub001/pkg/metrics"
)

const (
	// DefaultTimeout bounds each upstream call during checks and syncs.
	DefaultTimeout = 15 * time.Second
	// TestTimeout bounds the settings connectivity test.
	TestTimeout = 10 * time.Second

	apiKeyHeader = "X-API-Key"
	maxBodyBytes = 4 << 20
)

// ErrNotConfigured indicates the tenant has no API base configured.
var ErrNotConfigured = errors.New("whois api not configured")

var tracer = otel.Tracer("github.com/rikouu/serdo-v2-sub001/internal/service/whois")

// Endpoint names the three upstream paths.
type Endpoint string

const (
	EndpointLookup Endpoint = "lookup"
	EndpointWhois  Endpoint = "whois"
	EndpointDNS    Endpoint = "dns"
)

// WhoisData is the registration half of a lookup.
type WhoisData struct {
	Registrar      string   `json:"registrar,omitempty"`
	ExpirationDate string   `json:"expirationDate,omitempty"`
	Status         []string `json:"status"`
	NameServers    []string `json:"nameServers"`
	Error          string   `json:"error,omitempty"`
}

func (w WhoisData) empty() bool {
	return w.Registrar == "" && w.ExpirationDate == "" && len(w.Status) == 0 && len(w.NameServers) == 0
}

// DNSData is the record half of a lookup.
type DNSData struct {
	Records []domain.DNSRecord `json:"records"`
	Error   string             `json:"error,omitempty"`
}

// Attempt records one upstream call for diagnostics.
type Attempt struct {
	Endpoint Endpoint `json:"endpoint"`
	Error    string   `json:"error,omitempty"`
}

// Result is the outcome of Lookup. When Success is false only Error and
// Attempts are meaningful.
type Result struct {
	Success       bool               `json:"success"`
	Domain        string             `json:"domain"`
	Whois         WhoisData          `json:"whois"`
	DNS           DNSData            `json:"dns"`
	DNSProvider   string             `json:"dnsProvider,omitempty"`
	State         domain.DomainState `json:"state,omitempty"`
	DaysRemaining *int               `json:"daysRemaining"`
	Fallback      bool               `json:"fallback"`
	Error         string             `json:"error,omitempty"`
	Attempts      []Attempt          `json:"attempts,omitempty"`
}

// Gateway performs lookups with a combined-then-separate fallback.
type Gateway struct {
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	requests *prometheus.CounterVec
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithClock overrides the clock used for classification.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New constructs a Gateway whose calls are each bounded by timeout.
func New(timeout time.Duration, logger *slog.Logger, opts ...Option) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &Gateway{
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		requests: metrics.CounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "whois",
			Name:      "requests_total",
			Help:      "Upstream WHOIS API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"})),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithTimeout returns a copy of g using a different per-call timeout.
func (g *Gateway) WithTimeout(timeout time.Duration) *Gateway {
	cp := *g
	cp.timeout = timeout
	return &cp
}

var baseSuffixes = []string{"/api/lookup", "/api/whois", "/api/dns", "/lookup", "/whois", "/dns", "/api"}

// NormalizeBase strips whitespace, trailing slashes and a known endpoint
// suffix from a configured API base.
func NormalizeBase(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	lower := strings.ToLower(base)
	for _, suffix := range baseSuffixes {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}
	return strings.TrimRight(base, "/")
}

// Lookup resolves registration and DNS data for name. The combined endpoint
// is tried first; on any failure the whois and dns endpoints are called once
// each, independently.
func (g *Gateway) Lookup(ctx context.Context, name string, cfg domain.WhoisSettings) Result {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	res := Result{Domain: name, Whois: WhoisData{Status: []string{}, NameServers: []string{}}, DNS: DNSData{Records: []domain.DNSRecord{}}}
	base := NormalizeBase(cfg.APIBase)
	if base == "" {
		res.Error = ErrNotConfigured.Error()
		return res
	}

	ctx, span := tracer.Start(ctx, "whois.Lookup")
	span.SetAttributes(attribute.String("whois.domain", name))
	defer span.End()

	payload, err := g.call(ctx, base, EndpointLookup, name, cfg)
	if err == nil {
		whois, dns := extractWhois(payload), extractDNS(payload, name)
		if whois.empty() && len(dns.Records) == 0 {
			err = errors.New("response carried no whois or dns data")
		} else {
			res.Success = true
			res.Whois, res.DNS = whois, dns
			res.Attempts = append(res.Attempts, Attempt{Endpoint: EndpointLookup})
		}
	}
	if err != nil {
		res.Attempts = append(res.Attempts, Attempt{Endpoint: EndpointLookup, Error: err.Error()})
		res.Fallback = true
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("error", err.Error())))
		g.logger.Debug("combined lookup failed, falling back", "domain", name, "error", err)
		g.separate(ctx, base, name, cfg, &res)
	}

	if !res.Success {
		res.Error = diagnostics(res.Attempts)
		span.SetStatus(codes.Error, res.Error)
		return res
	}
	res.DNSProvider = ProviderFromNameServers(res.Whois.NameServers)
	c := domainstate.Classify(res.Whois.Status, res.DNS.Records, res.Whois.ExpirationDate, g.now())
	res.State, res.DaysRemaining = c.State, c.DaysRemaining
	return res
}

func (g *Gateway) separate(ctx context.Context, base, name string, cfg domain.WhoisSettings, res *Result) {
	var (
		whoisErr, dnsErr error
		whois            WhoisData
		dns              DNSData
	)
	var eg errgroup.Group
	eg.Go(func() error {
		payload, err := g.call(ctx, base, EndpointWhois, name, cfg)
		if err != nil {
			whoisErr = err
			return nil
		}
		whois = extractWhois(payload)
		if whois.empty() {
			whoisErr = errors.New("response carried no whois data")
		}
		return nil
	})
	eg.Go(func() error {
		payload, err := g.call(ctx, base, EndpointDNS, name, cfg)
		if err != nil {
			dnsErr = err
			return nil
		}
		dns = extractDNS(payload, name)
		return nil
	})
	_ = eg.Wait()

	res.Attempts = append(res.Attempts, attempt(EndpointWhois, whoisErr), attempt(EndpointDNS, dnsErr))
	if whoisErr == nil {
		res.Whois = whois
	} else {
		res.Whois.Error = whoisErr.Error()
	}
	if dnsErr == nil {
		res.DNS = dns
	} else {
		res.DNS.Error = dnsErr.Error()
	}
	res.Success = whoisErr == nil || dnsErr == nil
}

// call performs one bounded request and returns the decoded JSON object.
func (g *Gateway) call(ctx context.Context, base string, endpoint Endpoint, name string, cfg domain.WhoisSettings) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := g.newRequest(ctx, base, endpoint, name, cfg)
	if err != nil {
		return nil, err
	}
	payload, err := g.do(req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	g.requests.WithLabelValues(string(endpoint), outcome).Inc()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return payload, nil
}

func (g *Gateway) newRequest(ctx context.Context, base string, endpoint Endpoint, name string, cfg domain.WhoisSettings) (*http.Request, error) {
	target := base + "/api/" + string(endpoint)
	var (
		req *http.Request
		err error
	)
	if strings.EqualFold(cfg.Method, http.MethodPost) {
		body, _ := json.Marshal(map[string]string{"domain": name})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target+"?domain="+url.QueryEscape(name), nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	return req, nil
}

func (g *Gateway) do(req *http.Request) (map[string]any, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := apiError(decodeObject(raw)); msg != "" {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	payload := decodeObject(raw)
	if payload == nil {
		return nil, errors.New("malformed response body")
	}
	if msg := apiError(payload); msg != "" {
		return nil, errors.New(msg)
	}
	return payload, nil
}

func decodeObject(raw []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

// apiError returns the upstream-reported error, if any: success:false or a
// non-empty error field.
func apiError(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	msg := ""
	switch v := payload["error"].(type) {
	case string:
		msg = strings.TrimSpace(v)
	case map[string]any:
		msg = firstString(v, "message", "msg", "detail")
		if msg == "" {
			msg = "upstream error"
		}
	}
	if msg != "" {
		return msg
	}
	if ok, present := payload["success"].(bool); present && !ok {
		if m := firstString(payload, "message", "msg"); m != "" {
			return m
		}
		return "upstream reported failure"
	}
	return ""
}

func attempt(endpoint Endpoint, err error) Attempt {
	a := Attempt{Endpoint: endpoint}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func diagnostics(attempts []Attempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if a.Error != "" {
			parts = append(parts, a.Error)
		}
	}
	return strings.Join(parts, "; ")
}
