package store

import "time"

// Game is a row of the games catalog table.
type Game struct {
	GameID    string    `json:"game_id"`
	GameType  string    `json:"game_type"`
	Name      string    `json:"name"`
	TableIDs  []string  `json:"table_ids"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}
