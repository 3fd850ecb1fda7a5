package protocol

import "github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"

// Payload shapes for each message type. One struct per direction; all are
// decoded strictly (unknown fields rejected).

type RegisterParams struct {
	Role      models.Role `json:"role"`
	GameTypes []string    `json:"game_types"`
	Endpoint  string      `json:"endpoint"`
}

type RegisterResult struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Participant carries the identity and callback address a referee needs to
// reach one player of an assigned match.
type Participant struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

type MatchAssignParams struct {
	MatchID  string      `json:"match_id"`
	Round    int         `json:"round"`
	GameType string      `json:"game_type"`
	PlayerA  Participant `json:"player_a"`
	PlayerB  Participant `json:"player_b"`
}

type MatchAssignResult struct {
	Accepted bool `json:"accepted"`
}

type MatchInviteParams struct {
	MatchID  string `json:"match_id"`
	Round    int    `json:"round"`
	GameType string `json:"game_type"`
	Opponent string `json:"opponent"`
}

type MatchInviteResult struct {
	Accept bool `json:"accept"`
}

type ChoiceRequestParams struct {
	MatchID string `json:"match_id"`
}

type ChoiceRequestResult struct {
	Choice models.Parity `json:"choice"`
}

// MatchResultParams notifies a participant of the final outcome. Reason is
// set when the outcome is a technical loss, carrying the specific error
// code that caused it.
type MatchResultParams struct {
	MatchID string         `json:"match_id"`
	Outcome models.Outcome `json:"outcome"`
	Draw    *int           `json:"draw,omitempty"`
	Reason  ErrorCode      `json:"reason,omitempty"`
}

type ResultReportParams struct {
	Result models.MatchResult `json:"result"`
}

type ResultReportResult struct {
	Accepted bool `json:"accepted"`
}

type RoundStartParams struct {
	Round   int      `json:"round"`
	Matches []string `json:"matches"`
}

type StandingsUpdateParams struct {
	Round     int                     `json:"round"`
	Standings []models.StandingsEntry `json:"standings"`
}

type TournamentEndParams struct {
	Champion  string                  `json:"champion"`
	Standings []models.StandingsEntry `json:"standings"`
}

// Ack is the generic acknowledgment result for notification messages.
type Ack struct {
	OK bool `json:"ok"`
}
