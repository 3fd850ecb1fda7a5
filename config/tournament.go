package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GameTypeParity is the only game type this arena supports.
const GameTypeParity = "parity"

type PlayerSpec struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"` // "random", "even" or "odd"
}

// Timeouts expresses every budget in abstract time-units scaled by Unit,
// mirroring how the protocol describes them. All values are injectable;
// tests shrink Unit to milliseconds.
type Timeouts struct {
	UnitMillis       int `yaml:"unit_millis"`
	InviteUnits      int `yaml:"invite_units"`
	ChoiceUnits      int `yaml:"choice_units"`
	ReportUnits      int `yaml:"report_units"`
	BackoffBaseUnits int `yaml:"backoff_base_units"`
	BackoffCapUnits  int `yaml:"backoff_cap_units"`
}

type ScoringSpec struct {
	Win  int `yaml:"win"`
	Draw int `yaml:"draw"`
	Loss int `yaml:"loss"`
}

// Tournament is the static definition of one tournament run, loaded once
// from YAML and immutable afterwards.
type Tournament struct {
	ID         string       `yaml:"id"`
	GameType   string       `yaml:"game_type"`
	Players    []PlayerSpec `yaml:"players"`
	Referees   int          `yaml:"referees"`
	MaxRetries int          `yaml:"max_retries"`
	Timeouts   Timeouts     `yaml:"timeouts"`
	Scoring    ScoringSpec  `yaml:"scoring"`
}

func defaultTournament() Tournament {
	return Tournament{
		ID:         "local",
		GameType:   GameTypeParity,
		Referees:   2,
		MaxRetries: 3,
		Timeouts: Timeouts{
			UnitMillis:       1000,
			InviteUnits:      5,
			ChoiceUnits:      30,
			ReportUnits:      10,
			BackoffBaseUnits: 2,
			BackoffCapUnits:  30,
		},
		Scoring: ScoringSpec{Win: 3, Draw: 1, Loss: 0},
	}
}

// LoadTournament parses and validates the tournament YAML; unset fields
// fall back to the documented defaults.
func LoadTournament(path string) (*Tournament, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tournament file: %w", err)
	}
	return ParseTournament(raw)
}

func ParseTournament(raw []byte) (*Tournament, error) {
	t := defaultTournament()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse tournament file: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tournament) validate() error {
	if t.GameType != GameTypeParity {
		return fmt.Errorf("unsupported game type %q", t.GameType)
	}
	if len(t.Players) < 2 {
		return fmt.Errorf("at least two players are required, got %d", len(t.Players))
	}
	seen := make(map[string]bool, len(t.Players))
	for _, p := range t.Players {
		if p.Name == "" {
			return fmt.Errorf("every player needs a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate player name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if t.Referees < 1 {
		return fmt.Errorf("at least one referee is required, got %d", t.Referees)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if t.Timeouts.UnitMillis <= 0 {
		return fmt.Errorf("timeouts.unit_millis must be positive")
	}
	return nil
}

func (t *Tournament) unit() time.Duration {
	return time.Duration(t.Timeouts.UnitMillis) * time.Millisecond
}

func (t *Tournament) InviteTimeout() time.Duration { return time.Duration(t.Timeouts.InviteUnits) * t.unit() }
func (t *Tournament) ChoiceTimeout() time.Duration { return time.Duration(t.Timeouts.ChoiceUnits) * t.unit() }
func (t *Tournament) ReportTimeout() time.Duration { return time.Duration(t.Timeouts.ReportUnits) * t.unit() }
func (t *Tournament) BackoffBase() time.Duration {
	return time.Duration(t.Timeouts.BackoffBaseUnits) * t.unit()
}
func (t *Tournament) BackoffCap() time.Duration {
	return time.Duration(t.Timeouts.BackoffCapUnits) * t.unit()
}
