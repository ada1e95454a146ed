package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checks"
	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

func (r *Router) handleCheckServers(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	run, err := r.checks.CheckServers(req.Context(), info.TenantID, domain.TriggerManual)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": run.Results,
		"log":     run.Log,
	})
}

func (r *Router) handleCheckDomains(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	run, err := r.checks.CheckDomains(req.Context(), info.TenantID, domain.TriggerManual)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": run.Results,
		"log":     run.Log,
	})
}

func (r *Router) handleSyncDomain(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	d, err := r.checks.SyncDomain(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "domain": d})
}

func (r *Router) handleCheckStatus(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	status, err := r.checks.GetCheckStatus(req.Context(), info.TenantID)
	r.respond(w, req, http.StatusOK, status, err)
}

func (r *Router) handleCheckLogs(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	var typeFilter domain.CheckType
	switch t := domain.CheckType(strings.ToLower(strings.TrimSpace(q.Get("type")))); t {
	case "", "all":
	case domain.CheckServer, domain.CheckDomain:
		typeFilter = t
	default:
		writeError(w, http.StatusBadRequest, CodeValidation, "type must be server or domain")
		return
	}
	out, err := r.checkLogs.List(req.Context(), info.TenantID, page, pageSize, typeFilter)
	r.respond(w, req, http.StatusOK, out, err)
}

// handleWhoisTest runs one lookup against the stored WHOIS settings, with
// optional overrides from the body so a form can be tested before saving.
func (r *Router) handleWhoisTest(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var payload struct {
		Domain  string  `json:"domain"`
		APIBase *string `json:"apiBase"`
		APIKey  *string `json:"apiKey"`
		Method  *string `json:"method"`
	}
	if err := decodeJSON(req, &payload, true); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	settings, err := r.inventory.Settings(req.Context(), info.TenantID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	cfg := settings.Whois
	if payload.APIBase != nil {
		cfg.APIBase = *payload.APIBase
	}
	if payload.APIKey != nil && *payload.APIKey != "" {
		cfg.APIKey = *payload.APIKey
	}
	if payload.Method != nil {
		cfg.Method = strings.ToUpper(strings.TrimSpace(*payload.Method))
	}
	if whois.NormalizeBase(cfg.APIBase) == "" {
		r.writeServiceError(w, req, checks.ErrWhoisNotConfigured)
		return
	}
	name := inventory.NormalizeName(payload.Domain)
	if name == "" {
		name = whoisProbeDomain
	}
	res := r.whois.Lookup(req.Context(), name, cfg)
	if !res.Success {
		r.writeServiceError(w, req, &checks.LookupError{Attempts: res.Attempts})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (r *Router) handleNotifyTest(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	settings, err := r.inventory.Settings(req.Context(), info.TenantID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	results, err := r.notifier.Test(req.Context(), settings.Notifications)
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, errorBody{Error: err.Error(), Code: code, Details: map[string]any{"channels": results}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "channels": results})
}
