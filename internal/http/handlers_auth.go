package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
)

// Reveal protocol headers.
const (
	HeaderRevealKey   = "X-Reveal-Key"
	HeaderRevealGrant = "X-Reveal-Grant"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func authResponse(user *domain.User, token auth.Token) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":       user.ID,
			"email":    user.Email,
			"tenantId": user.TenantID,
		},
		"accessToken": token.AccessToken,
		"expiresIn":   int64(token.ExpiresIn.Seconds()),
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	var payload credentials
	if err := decodeJSON(req, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	user, token, err := r.auth.Signup(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(user, token))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload credentials
	if err := decodeJSON(req, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	user, token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(user, token))
}

func (r *Router) handleRevealKey(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var payload struct {
		CurrentPassword string `json:"currentPassword"`
	}
	if err := decodeJSON(req, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	grant, err := r.revealer.IssueKey(req.Context(), info.UserID, payload.CurrentPassword)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"revealKey": grant.Key,
		"grant":     grant.Grant,
		"expiresIn": int64(grant.ExpiresIn.Seconds()),
	})
}

func (r *Router) handleReveal(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	ref := secrets.FieldRef{
		Kind:  chi.URLParam(req, "kind"),
		ID:    chi.URLParam(req, "id"),
		Field: chi.URLParam(req, "field"),
	}
	out, err := r.revealer.Reveal(req.Context(), info.UserID, info.TenantID, ref,
		req.Header.Get(HeaderRevealKey), req.Header.Get(HeaderRevealGrant))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, out)
}
