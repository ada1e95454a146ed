package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
)

type authContextKey string

type authInfo struct {
	UserID   string
	TenantID string
}

const contextKeyAuth authContextKey = "serdo-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
// Streaming endpoints may pass the token as ?access_token= since browsers
// cannot set headers on websocket and EventSource requests.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if errors.Is(err, auth.ErrTokenRequired) && isStreamPath(req.URL.Path) {
		if q := strings.TrimSpace(req.URL.Query().Get("access_token")); q != "" {
			token, err = q, nil
		}
	}
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		status, code := classify(err)
		writeError(w, status, code, "authentication required")
		return req.Context(), authInfo{}, false
	}
	user, claims, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			r.writeServiceError(w, req, err)
			return req.Context(), authInfo{}, false
		}
		writeError(w, status, code, "authentication failed")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{UserID: user.ID, TenantID: claims.TenantID}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", auth.ErrTokenRequired
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", auth.ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}

func isStreamPath(path string) bool {
	return path == routeWSCheckLogs || path == routeSSECheckLogs
}
