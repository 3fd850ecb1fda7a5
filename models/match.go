package models

import (
	"encoding/json"
	"time"
)

type MatchState string

const (
	MatchCreated         MatchState = "CREATED"
	MatchAwaitingJoin    MatchState = "AWAITING_JOIN"
	MatchAwaitingChoices MatchState = "AWAITING_CHOICES"
	MatchResolving       MatchState = "RESOLVING"
	MatchReporting       MatchState = "REPORTING"
	MatchDone            MatchState = "DONE"
)

type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

func (p Parity) Valid() bool {
	return p == ParityEven || p == ParityOdd
}

type Outcome string

const (
	OutcomeWinA           Outcome = "WIN_A"
	OutcomeWinB           Outcome = "WIN_B"
	OutcomeDraw           Outcome = "DRAW"
	OutcomeTechnicalLossA Outcome = "TECHNICAL_LOSS_A"
	OutcomeTechnicalLossB Outcome = "TECHNICAL_LOSS_B"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWinA, OutcomeWinB, OutcomeDraw, OutcomeTechnicalLossA, OutcomeTechnicalLossB:
		return true
	}
	return false
}

// TranscriptEntry records one envelope (or response) exchanged during a match.
type TranscriptEntry struct {
	Direction string          `json:"direction"` // "sent" or "received"
	Peer      string          `json:"peer"`
	Body      json.RawMessage `json:"body"`
	At        time.Time       `json:"at"`
}

// Match is owned exclusively by the referee instance driving it until the
// result has been reported; after that it is read-only history.
type Match struct {
	ID                  string            `json:"id"` // R{round}M{index}
	Round               int               `json:"round"`
	GameType            string            `json:"game_type"`
	PlayerA             string            `json:"player_a"`
	PlayerB             string            `json:"player_b"`
	Referee             string            `json:"referee"`
	State               MatchState        `json:"state"`
	Draw                *int              `json:"draw,omitempty"`
	ChoiceA             *Parity           `json:"choice_a,omitempty"`
	ChoiceB             *Parity           `json:"choice_b,omitempty"`
	Outcome             *Outcome          `json:"outcome,omitempty"`
	FailureCode         string            `json:"failure_code,omitempty"`
	NeedsReconciliation bool              `json:"needs_reconciliation,omitempty"`
	Transcript          []TranscriptEntry `json:"transcript,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
}

// MatchResult is the unit consumed by the standings aggregator.
type MatchResult struct {
	MatchID     string  `json:"match_id"`
	Round       int     `json:"round"`
	PlayerA     string  `json:"player_a"`
	PlayerB     string  `json:"player_b"`
	Outcome     Outcome `json:"outcome"`
	Draw        *int    `json:"draw,omitempty"`
	FailureCode string  `json:"failure_code,omitempty"`
}
