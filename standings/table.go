// Package standings holds the standings table and the sequential aggregator
// that is its only writer. Match code never mutates the table directly; it
// enqueues results and the single worker applies them one at a time.
package standings

import (
	"fmt"
	"sort"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

type Scoring struct {
	Win  int
	Draw int
	Loss int
}

func DefaultScoring() Scoring {
	return Scoring{Win: 3, Draw: 1, Loss: 0}
}

// Table is not safe for concurrent use. It is owned by the aggregator
// worker goroutine; every other reader goes through Aggregator.Standings.
type Table struct {
	entries map[string]*models.StandingsEntry
	scoring Scoring
}

func NewTable(scoring Scoring) *Table {
	return &Table{
		entries: make(map[string]*models.StandingsEntry),
		scoring: scoring,
	}
}

// Seed ensures an entry exists for every registered player so the final
// table contains players that never scored.
func (t *Table) Seed(playerIDs []string) {
	for _, id := range playerIDs {
		t.ensure(id)
	}
}

// Restore replaces the table contents from a persisted snapshot.
func (t *Table) Restore(entries []models.StandingsEntry) {
	t.entries = make(map[string]*models.StandingsEntry, len(entries))
	for _, e := range entries {
		copied := e
		t.entries[e.PlayerID] = &copied
	}
}

// Apply folds one match result into the table.
func (t *Table) Apply(res models.MatchResult) error {
	if res.PlayerA == "" || res.PlayerB == "" {
		return fmt.Errorf("result %s has empty participant", res.MatchID)
	}
	if !res.Outcome.Valid() {
		return fmt.Errorf("result %s has unknown outcome %q", res.MatchID, res.Outcome)
	}

	a := t.ensure(res.PlayerA)
	b := t.ensure(res.PlayerB)
	a.Played++
	b.Played++

	switch res.Outcome {
	case models.OutcomeWinA, models.OutcomeTechnicalLossB:
		t.win(a)
		t.loss(b)
	case models.OutcomeWinB, models.OutcomeTechnicalLossA:
		t.win(b)
		t.loss(a)
	case models.OutcomeDraw:
		t.draw(a)
		t.draw(b)
	}

	now := time.Now().UTC()
	a.UpdatedAt = now
	b.UpdatedAt = now
	return nil
}

func (t *Table) win(e *models.StandingsEntry) {
	e.Wins++
	e.Points += t.scoring.Win
}

func (t *Table) draw(e *models.StandingsEntry) {
	e.Draws++
	e.Points += t.scoring.Draw
}

func (t *Table) loss(e *models.StandingsEntry) {
	e.Losses++
	e.Points += t.scoring.Loss
}

// Sorted returns entry copies ordered by (points desc, wins desc, id asc),
// the deterministic tiebreak order.
func (t *Table) Sorted() []models.StandingsEntry {
	out := make([]models.StandingsEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

func (t *Table) ensure(playerID string) *models.StandingsEntry {
	if e, ok := t.entries[playerID]; ok {
		return e
	}
	e := &models.StandingsEntry{PlayerID: playerID}
	t.entries[playerID] = e
	return e
}
