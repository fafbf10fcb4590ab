package httptransport

import (
	"net/http"

	"casino-relay/internal/relay"
	"casino-relay/internal/upstream"

	"github.com/rs/zerolog/log"
)

type AdminHandlers struct {
	svc *relay.Service
}

func NewAdminHandlers(svc *relay.Service) *AdminHandlers {
	return &AdminHandlers{svc: svc}
}

// Health fails when the result store is unreachable or the upstream client
// has given up reconnecting.
func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := h.svc.GetConnectionStatus()
		resp := map[string]any{"ok": true, "db": "up", "upstream": st.State}
		status := http.StatusOK
		if err := h.svc.Ready(r.Context()); err != nil {
			resp["ok"] = false
			resp["db"] = "down"
			status = http.StatusServiceUnavailable
		}
		if st.State == upstream.StateFailed {
			resp["ok"] = false
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func (h *AdminHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.svc.GetConnectionStatus())
	}
}

func (h *AdminHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.svc.GetStats())
	}
}

func (h *AdminHandlers) Cleanup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCleanupTotal.Add(1)
		n, err := h.svc.Cleanup(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("admin_cleanup_failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricAdminCleanupDeleted.Add(n)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": n})
	}
}

// Reconnect restarts the upstream loop; it only acts from the failed state.
func (h *AdminHandlers) Reconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		woke := h.svc.ReconnectUpstream()
		if !woke {
			writeJSON(w, http.StatusConflict, map[string]any{
				"ok":    false,
				"error": "upstream_not_failed",
				"state": h.svc.GetConnectionStatus().State,
			})
			return
		}
		log.Info().Msg("admin_upstream_reconnect")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
