package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
)

func (r *Router) handleListServers(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.ListServers(req.Context(), info.TenantID)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleGetServer(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.GetServer(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleCreateServer(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.ServerInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.CreateServer(req.Context(), info.TenantID, in)
	r.respond(w, req, http.StatusCreated, out, err)
}

func (r *Router) handleUpdateServer(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.ServerInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.UpdateServer(req.Context(), info.TenantID, chi.URLParam(req, "id"), in)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleDeleteServer(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	err := r.inventory.DeleteServer(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	r.respondNoContent(w, req, err)
}

func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.ListProviders(req.Context(), info.TenantID)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleCreateProvider(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.ProviderInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.CreateProvider(req.Context(), info.TenantID, in)
	r.respond(w, req, http.StatusCreated, out, err)
}

func (r *Router) handleUpdateProvider(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.ProviderInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.UpdateProvider(req.Context(), info.TenantID, chi.URLParam(req, "id"), in)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleDeleteProvider(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	err := r.inventory.DeleteProvider(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	r.respondNoContent(w, req, err)
}

func (r *Router) handleListDomains(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.ListDomains(req.Context(), info.TenantID)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleGetDomain(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.GetDomain(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleCreateDomain(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.DomainInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.CreateDomain(req.Context(), info.TenantID, in)
	r.respond(w, req, http.StatusCreated, out, err)
}

func (r *Router) handleUpdateDomain(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var in inventory.DomainInput
	if !r.decode(w, req, &in) {
		return
	}
	out, err := r.inventory.UpdateDomain(req.Context(), info.TenantID, chi.URLParam(req, "id"), in)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleDeleteDomain(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	err := r.inventory.DeleteDomain(req.Context(), info.TenantID, chi.URLParam(req, "id"))
	r.respondNoContent(w, req, err)
}

func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	out, err := r.inventory.GetSettings(req.Context(), info.TenantID)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) handleUpdateSettings(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	var patch inventory.SettingsPatch
	if !r.decode(w, req, &patch) {
		return
	}
	out, err := r.inventory.UpdateSettings(req.Context(), info.TenantID, patch)
	r.respond(w, req, http.StatusOK, out, err)
}

func (r *Router) decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	if err := decodeJSON(req, dst, false); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (r *Router) respond(w http.ResponseWriter, req *http.Request, status int, payload any, err error) {
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, status, payload)
}

func (r *Router) respondNoContent(w http.ResponseWriter, req *http.Request, err error) {
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
