// Package catalog maps provider table ids to the games they belong to.
package catalog

import "sort"

type GameInfo struct {
	GameID   string   `json:"game_id" validate:"required"`
	GameType string   `json:"game_type"`
	Name     string   `json:"name"`
	TableIDs []string `json:"table_ids" validate:"dive,required"`
	IsActive bool     `json:"is_active"`
}

// Catalog answers lookups from an in-memory index. Implementations must be safe
// for concurrent use and must not block on I/O for indexed keys.
type Catalog interface {
	ActiveGames() []GameInfo
	FindByTableID(tableID string) (GameInfo, bool)
	FindGame(gameID string) (GameInfo, bool)
}

type index struct {
	games   map[string]GameInfo
	byTable map[string]string
}

func buildIndex(games []GameInfo) *index {
	idx := &index{games: map[string]GameInfo{}, byTable: map[string]string{}}
	for _, g := range games {
		if g.GameID == "" {
			continue
		}
		g.TableIDs = append([]string(nil), g.TableIDs...)
		idx.games[g.GameID] = g
		if !g.IsActive {
			continue
		}
		for _, t := range g.TableIDs {
			// first active game wins on overlapping table ids
			if _, taken := idx.byTable[t]; !taken {
				idx.byTable[t] = g.GameID
			}
		}
	}
	return idx
}

func (idx *index) active() []GameInfo {
	out := make([]GameInfo, 0, len(idx.games))
	for _, g := range idx.games {
		if g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Static is a fixed Catalog, mainly for tests and tools.
type Static struct {
	idx *index
}

func NewStatic(games ...GameInfo) *Static {
	return &Static{idx: buildIndex(games)}
}

func (s *Static) ActiveGames() []GameInfo { return s.idx.active() }

func (s *Static) FindByTableID(tableID string) (GameInfo, bool) {
	id, ok := s.idx.byTable[tableID]
	if !ok {
		return GameInfo{}, false
	}
	return s.idx.games[id], true
}

func (s *Static) FindGame(gameID string) (GameInfo, bool) {
	g, ok := s.idx.games[gameID]
	return g, ok
}
