package httpx

import (
	"net/http"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/ws"
)

func (r *Router) handleCheckLogsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.checkLogs.Hub()
	hub.Register(info.TenantID, client)
	go func() {
		defer func() {
			hub.Unregister(info.TenantID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleCheckLogsSSE(w http.ResponseWriter, req *http.Request) {
	info, ok := r.tenant(w, req)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternal, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	hub := r.checkLogs.Hub()
	hub.Register(info.TenantID, client)
	defer func() {
		hub.Unregister(info.TenantID, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
