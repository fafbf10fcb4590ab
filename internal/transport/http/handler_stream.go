package httptransport

import (
	"errors"
	"net/http"

	"casino-relay/internal/broadcast"
	"casino-relay/internal/broadcast/stream"
	"casino-relay/internal/config"
	"casino-relay/internal/relay"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type StreamHandlers struct {
	svc *relay.Service
}

func NewStreamHandlers(svc *relay.Service) *StreamHandlers {
	return &StreamHandlers{svc: svc}
}

// Game streams every table of a game, or the subset named in ?tables=a,b.
func (h *StreamHandlers) Game() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "game_id")
		h.serve(w, r, gameID, splitCSV(r.URL.Query().Get("tables")))
	}
}

// Table streams a single table; its game comes from the catalog.
func (h *StreamHandlers) Table() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, "", []string{chi.URLParam(r, "table_id")})
	}
}

func (h *StreamHandlers) serve(w http.ResponseWriter, r *http.Request, gameID string, tableIDs []string) {
	metricSSEStreamsTotal.Add(1)
	metricSSEStreamsActive.Add(1)
	defer metricSSEStreamsActive.Add(-1)

	err := h.svc.InitSSEConnection(w, r, gameID, tableIDs)
	switch {
	case err == nil:
	case errors.Is(err, broadcast.ErrClientWrite):
		log.Debug().Err(err).Str("game_id", gameID).Msg("sse_stream_closed")
	default:
		metricSSEStreamErrors.Add(1)
		log.Debug().Err(err).Str("game_id", gameID).Strs("tables", tableIDs).Msg("sse_stream_rejected")
	}
}

func (h *StreamHandlers) Preflight(cfg config.ServerConfig) http.HandlerFunc {
	origins := broadcast.AllowedOrigins(cfg)
	return func(w http.ResponseWriter, r *http.Request) {
		if !stream.SetCORSHeaders(w, r.Header.Get("Origin"), origins) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	}
}
