package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"casino-relay/internal/config"
	"casino-relay/internal/store"
)

//go:embed default_games.json
var defaultGames []byte

// Source loads the full game list.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]GameInfo, error)
}

// TableLookup is implemented by sources that can resolve a single table
// outside the periodic refresh.
type TableLookup interface {
	LookupTable(ctx context.Context, tableID string) (GameInfo, bool, error)
}

// FileSource reads a JSON catalog from disk on every Load.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Load(context.Context) ([]GameInfo, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return ParseJSON(raw)
}

// EmbeddedSource serves the catalog compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Load(context.Context) ([]GameInfo, error) {
	return ParseJSON(defaultGames)
}

// ParseJSON accepts either {"games":[...]} or a bare array.
func ParseJSON(raw []byte) ([]GameInfo, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty catalog")
	}
	var games []GameInfo
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &games); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	} else {
		var doc struct {
			Games []GameInfo `json:"games"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		games = doc.Games
	}
	for i := range games {
		if err := config.Validate(games[i]); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return games, nil
}

type GameStore interface {
	ListActiveGames(ctx context.Context) ([]store.Game, error)
	FindGameByTable(ctx context.Context, tableID string) (store.Game, error)
}

// StoreSource reads the games table.
type StoreSource struct {
	Store GameStore
}

func (s StoreSource) Name() string { return "postgres" }

func (s StoreSource) Load(ctx context.Context) ([]GameInfo, error) {
	rows, err := s.Store.ListActiveGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GameInfo, 0, len(rows))
	for _, g := range rows {
		out = append(out, fromStore(g))
	}
	return out, nil
}

func (s StoreSource) LookupTable(ctx context.Context, tableID string) (GameInfo, bool, error) {
	g, err := s.Store.FindGameByTable(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return GameInfo{}, false, nil
	}
	if err != nil {
		return GameInfo{}, false, err
	}
	return fromStore(g), true, nil
}

func fromStore(g store.Game) GameInfo {
	return GameInfo{GameID: g.GameID, GameType: g.GameType, Name: g.Name, TableIDs: g.TableIDs, IsActive: g.IsActive}
}

// ToStore converts a catalog entry for UpsertGame.
func ToStore(g GameInfo) store.Game {
	return store.Game{GameID: g.GameID, GameType: g.GameType, Name: g.Name, TableIDs: g.TableIDs, IsActive: g.IsActive}
}
