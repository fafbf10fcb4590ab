package httptransport

import (
	"errors"
	"net/http"
	"slices"

	"casino-relay/internal/relay"
	"casino-relay/internal/results"

	"github.com/go-chi/chi/v5"
)

type GameHandlers struct {
	svc *relay.Service
}

func NewGameHandlers(svc *relay.Service) *GameHandlers {
	return &GameHandlers{svc: svc}
}

func (h *GameHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": h.svc.Catalog().ActiveGames()})
	}
}

func (h *GameHandlers) Game() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetGameData(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			if errors.Is(err, relay.ErrUnknownGame) {
				WriteHTTPError(w, http.StatusNotFound, "game_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *GameHandlers) Results() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricResultsQueryTotal.Add(1)
		gameID := chi.URLParam(r, "game_id")
		game, ok := h.svc.Catalog().FindGame(gameID)
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "game_not_found")
			return
		}
		tableID := r.URL.Query().Get("table_id")
		if tableID != "" && !slices.Contains(game.TableIDs, tableID) {
			WriteHTTPError(w, http.StatusNotFound, "table_not_found")
			return
		}
		since, ok := ParseSince(r.URL.Query().Get("since"))
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		q := results.RecentQuery{
			GameID:  gameID,
			TableID: tableID,
			Limit:   ParseLimit(r, results.DefaultRecentLimit, results.MaxRecentLimit),
			Since:   since,
		}
		items, err := h.svc.QueryResults(r.Context(), q)
		if err != nil {
			metricResultsQueryErrors.Add(1)
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if items == nil {
			items = []results.GameResult{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": q.Limit})
	}
}
