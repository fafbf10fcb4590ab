// Package relay wires the upstream feed, subscription registry, ingest
// pipeline, broadcast manager and retention store into one service.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"casino-relay/internal/broadcast"
	"casino-relay/internal/catalog"
	"casino-relay/internal/config"
	"casino-relay/internal/ingest"
	"casino-relay/internal/notify"
	"casino-relay/internal/results"
	"casino-relay/internal/retention"
	"casino-relay/internal/store"
	"casino-relay/internal/subscription"
	"casino-relay/internal/upstream"

	"github.com/rs/zerolog/log"
)

var ErrUnknownGame = broadcast.ErrUnknownGame

// GameRepo is the games table, used as catalog source and seed target.
type GameRepo interface {
	catalog.GameStore
	UpsertGame(ctx context.Context, g store.Game) error
}

// Deps overrides the default collaborators. Zero values fall back to an
// in-memory result store and the catalog selected by config.
type Deps struct {
	Results       retention.Store
	Games         GameRepo
	CatalogSource catalog.Source
}

type Service struct {
	cfg config.AppConfig

	upstream  *upstream.Client
	registry  *subscription.Registry
	catalog   *catalog.Refresher
	pipeline  *ingest.Pipeline
	broadcast *broadcast.Manager
	results   retention.Store
	sweeper   *retention.Sweeper
	games     GameRepo
	notify    *notify.Manager
	notifyErr error

	ingestSink *subscription.FuncSink
	ingestAll  []string
	startedAt  time.Time
}

func New(cfg config.AppConfig, deps Deps) *Service {
	s := &Service{cfg: cfg, games: deps.Games}

	s.results = deps.Results
	if s.results == nil {
		s.results = retention.NewMemoryStore()
	}

	s.upstream = upstream.NewClient(upstream.ConfigFromApp(cfg.Upstream))
	s.registry = subscription.NewRegistry(s.upstream)

	src := deps.CatalogSource
	switch {
	case src != nil:
	case cfg.Catalog.Path != "":
		src = catalog.FileSource{Path: cfg.Catalog.Path}
	case deps.Games != nil:
		src = catalog.StoreSource{Store: deps.Games}
	default:
		src = catalog.EmbeddedSource{}
	}
	s.catalog = catalog.NewRefresher(src, time.Duration(cfg.Catalog.RefreshSec)*time.Second, cfg.Catalog.MissCacheSize)

	s.broadcast = broadcast.NewManager(broadcast.ConfigFromApp(cfg.Stream, cfg.Server), s.registry, s.catalog, s.results)
	ncfg, err := notify.ConfigFromApp(cfg.Notify)
	if err != nil {
		s.notifyErr = err
	}
	s.notify = notify.NewManager(ncfg)
	s.pipeline = ingest.New(ingest.ConfigFromApp(cfg.Retention), s.catalog, s.results, fanout{s.broadcast, s.notify})
	s.sweeper = retention.NewSweeper(s.results, time.Duration(cfg.Retention.CleanupIntervalMin)*time.Minute)
	s.ingestSink = subscription.NewFuncSink(func(subscription.TableUpdate) error { return nil })

	s.upstream.OnConnected(func() {
		n := s.registry.Resubscribe()
		log.Info().Int("tables", n).Msg("upstream_resubscribed")
	})
	s.upstream.OnStateChange(s.notify.OnUpstreamState)
	s.upstream.OnTableUpdate(s.handleUpdate)
	return s
}

// fanout hands each stored result to every downstream publisher in order.
type fanout []ingest.Publisher

func (f fanout) PublishResult(rec results.GameResult) {
	for _, p := range f {
		p.PublishResult(rec)
	}
}

// Init loads the catalog and starts every background loop.
func (s *Service) Init(ctx context.Context) error {
	s.startedAt = time.Now()
	if s.notifyErr != nil {
		return fmt.Errorf("load notify targets: %w", s.notifyErr)
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if s.games != nil && s.cfg.Catalog.Path != "" {
		s.seedGames(ctx)
	}
	s.catalog.Start(ctx)
	s.pipeline.Start(ctx)
	s.broadcast.Start(ctx)
	s.sweeper.Start(ctx)
	if err := s.notify.Start(ctx); err != nil {
		return fmt.Errorf("start notify: %w", err)
	}
	s.upstream.Start(ctx)

	if s.cfg.Server.IngestAllActive {
		for _, g := range s.catalog.ActiveGames() {
			s.registry.SubscribeToGame(g.GameID, g.TableIDs, s.ingestSink)
			s.ingestAll = append(s.ingestAll, g.GameID)
		}
		log.Info().Int("games", len(s.ingestAll)).Msg("ingest_all_active")
	}
	log.Info().Int("games", len(s.catalog.ActiveGames())).Str("upstream", s.cfg.Upstream.URL).Msg("relay_started")
	return nil
}

func (s *Service) seedGames(ctx context.Context) {
	for _, g := range s.catalog.ActiveGames() {
		if err := s.games.UpsertGame(ctx, catalog.ToStore(g)); err != nil {
			log.Warn().Err(err).Str("game_id", g.GameID).Msg("catalog_seed_failed")
		}
	}
}

// Shutdown notifies SSE clients, disconnects upstream and drains pending writes.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.broadcast.Shutdown(ctx)
	for _, gameID := range s.ingestAll {
		s.registry.UnsubscribeFromGame(gameID, s.ingestSink)
	}
	s.ingestAll = nil
	s.upstream.Stop()
	s.pipeline.Stop()
	s.sweeper.Stop()
	s.catalog.Stop()
	s.notify.Stop()
	log.Info().Msg("relay_stopped")
	return err
}

func (s *Service) handleUpdate(u subscription.TableUpdate) {
	s.registry.Dispatch(u)
	if _, err := s.pipeline.OnUpstreamUpdate(u); err != nil {
		if errors.Is(err, ingest.ErrUnconfiguredTable) {
			log.Debug().Str("table_id", u.TableID).Msg("ingest_table_unconfigured")
			return
		}
		log.Warn().Err(err).Str("table_id", u.TableID).Msg("ingest_update_failed")
	}
}

func (s *Service) SubscribeToGame(gameID string, tableIDs []string, sink subscription.ResultSink) {
	s.registry.SubscribeToGame(gameID, tableIDs, sink)
}

func (s *Service) UnsubscribeFromGame(gameID string, sink subscription.ResultSink) {
	s.registry.UnsubscribeFromGame(gameID, sink)
}

type GameData struct {
	Game    catalog.GameInfo       `json:"game"`
	Live    *subscription.GameData `json:"live,omitempty"`
	Clients int                    `json:"clients"`
	Recent  []results.GameResult   `json:"recent"`
}

// GetGameData returns catalog info, live subscription state and recent results.
func (s *Service) GetGameData(ctx context.Context, gameID string) (GameData, error) {
	game, ok := s.catalog.FindGame(gameID)
	if !ok {
		return GameData{}, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}
	out := GameData{Game: game, Clients: s.broadcast.Stats().ByGame[gameID]}
	if live, ok := s.registry.GameData(gameID); ok {
		out.Live = &live
	}
	recent, err := s.results.QueryRecent(ctx, results.RecentQuery{GameID: gameID, Limit: s.cfg.Stream.HistoryLimit})
	if err != nil {
		return out, err
	}
	out.Recent = recent
	return out, nil
}

func (s *Service) QueryResults(ctx context.Context, q results.RecentQuery) ([]results.GameResult, error) {
	if q.GameID != "" {
		if _, ok := s.catalog.FindGame(q.GameID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGame, q.GameID)
		}
	}
	return s.results.QueryRecent(ctx, q)
}

func (s *Service) GetConnectionStatus() upstream.Status {
	return s.upstream.Status()
}

func (s *Service) BroadcastToGame(gameID, event string, payload any) int {
	return s.broadcast.BroadcastToGame(gameID, event, payload)
}

func (s *Service) BroadcastToTable(tableID, event string, payload any) int {
	return s.broadcast.BroadcastToTable(tableID, event, payload)
}

func (s *Service) InitSSEConnection(w http.ResponseWriter, r *http.Request, gameID string, tableIDs []string) error {
	return s.broadcast.InitConnection(w, r, gameID, tableIDs)
}

type Stats struct {
	UptimeSec int64                  `json:"uptime_sec"`
	Upstream  upstream.Status        `json:"upstream"`
	Registry  subscription.Stats     `json:"registry"`
	Broadcast broadcast.Stats        `json:"broadcast"`
	Ingest    ingest.Stats           `json:"ingest"`
	Catalog   catalog.Stats          `json:"catalog"`
	Retention retention.SweepStats   `json:"retention"`
	Notify    notify.Stats           `json:"notify"`
	Clients   []broadcast.ClientInfo `json:"clients"`
}

func (s *Service) GetStats() Stats {
	var uptime int64
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}
	return Stats{
		UptimeSec: uptime,
		Upstream:  s.upstream.Status(),
		Registry:  s.registry.Stats(),
		Broadcast: s.broadcast.Stats(),
		Ingest:    s.pipeline.Stats(),
		Catalog:   s.catalog.Stats(),
		Retention: s.sweeper.Stats(),
		Notify:    s.notify.Stats(),
		Clients:   s.broadcast.Clients(),
	}
}

// Cleanup runs one retention sweep now.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	return s.sweeper.RunOnce(ctx)
}

// ReconnectUpstream restarts the upstream loop after a terminal failure.
func (s *Service) ReconnectUpstream() bool {
	return s.upstream.Wake()
}

// Ready reports whether the result store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.results.Ping(ctx)
}

func (s *Service) Catalog() catalog.Catalog { return s.catalog }
