// Package scheduler produces the round-robin fixture list for a tournament
// using the circle rotation method, with referees assigned by rotation.
// Output is deterministic for a given input ordering.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

var (
	ErrNotEnoughPlayers = errors.New("at least two players are required")
	ErrNoReferees       = errors.New("at least one referee is required")
)

type Params struct {
	Players  []string
	Referees []string
	GameType string
}

// FixtureList groups the generated matches by round. Generated once,
// immutable thereafter.
type FixtureList struct {
	Rounds [][]*models.Match
}

func (f *FixtureList) TotalMatches() int {
	n := 0
	for _, r := range f.Rounds {
		n += len(r)
	}
	return n
}

func (f *FixtureList) Flatten() []*models.Match {
	out := make([]*models.Match, 0, f.TotalMatches())
	for _, r := range f.Rounds {
		out = append(out, r...)
	}
	return out
}

// byeSlot pads an odd field; pairs touching it are skipped.
const byeSlot = ""

// Schedule generates n*(n-1)/2 unordered pairs grouped into rounds where no
// player appears twice, and assigns referees round-robin across fixtures.
func Schedule(p Params) (*FixtureList, error) {
	if len(p.Players) < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotEnoughPlayers, len(p.Players))
	}
	if len(p.Referees) == 0 {
		return nil, ErrNoReferees
	}

	slots := make([]string, len(p.Players))
	copy(slots, p.Players)
	if len(slots)%2 != 0 {
		slots = append(slots, byeSlot)
	}

	m := len(slots)
	roundCount := m - 1
	now := time.Now().UTC()

	list := &FixtureList{Rounds: make([][]*models.Match, 0, roundCount)}
	refIdx := 0
	for round := 1; round <= roundCount; round++ {
		fixtures := make([]*models.Match, 0, m/2)
		index := 1
		for i := 0; i < m/2; i++ {
			a, b := slots[i], slots[m-1-i]
			if a == byeSlot || b == byeSlot {
				continue
			}
			fixtures = append(fixtures, &models.Match{
				ID:        fmt.Sprintf("R%dM%d", round, index),
				Round:     round,
				GameType:  p.GameType,
				PlayerA:   a,
				PlayerB:   b,
				Referee:   p.Referees[refIdx%len(p.Referees)],
				State:     models.MatchCreated,
				CreatedAt: now,
			})
			index++
			refIdx++
		}
		list.Rounds = append(list.Rounds, fixtures)

		// Rotate all slots but the first one position clockwise.
		rotated := make([]string, 0, m)
		rotated = append(rotated, slots[0], slots[m-1])
		rotated = append(rotated, slots[1:m-1]...)
		slots = rotated
	}
	return list, nil
}
