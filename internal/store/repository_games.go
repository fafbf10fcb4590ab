package store

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

const gameColumns = `game_id, game_type, name, table_ids, is_active, updated_at`

func (s *Store) ListActiveGames(ctx context.Context) ([]Game, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE is_active ORDER BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGame(ctx context.Context, gameID string) (Game, error) {
	g, err := scanGame(s.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id = $1`, gameID))
	if err != nil {
		return Game{}, mapNotFound(err)
	}
	return g, nil
}

// FindGameByTable returns the active game that lists tableID.
func (s *Store) FindGameByTable(ctx context.Context, tableID string) (Game, error) {
	g, err := scanGame(s.Pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE is_active AND $1 = ANY(table_ids) ORDER BY game_id LIMIT 1`, tableID))
	if err != nil {
		return Game{}, mapNotFound(err)
	}
	return g, nil
}

func (s *Store) UpsertGame(ctx context.Context, g Game) error {
	tables := g.TableIDs
	if tables == nil {
		tables = []string{}
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO games (game_id, game_type, name, table_ids, is_active, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (game_id) DO UPDATE SET game_type = EXCLUDED.game_type, name = EXCLUDED.name,
			table_ids = EXCLUDED.table_ids, is_active = EXCLUDED.is_active, updated_at = now()`,
		g.GameID, g.GameType, g.Name, tables, g.IsActive)
	return err
}

func scanGame(row pgx.Row) (Game, error) {
	var g Game
	if err := row.Scan(&g.GameID, &g.GameType, &g.Name, &g.TableIDs, &g.IsActive, &g.UpdatedAt); err != nil {
		return Game{}, err
	}
	return g, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
