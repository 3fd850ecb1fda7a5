package models

import "time"

// StandingsEntry is mutated only by the standings aggregator worker.
type StandingsEntry struct {
	PlayerID  string    `json:"player_id"`
	Played    int       `json:"played"`
	Wins      int       `json:"wins"`
	Draws     int       `json:"draws"`
	Losses    int       `json:"losses"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}
