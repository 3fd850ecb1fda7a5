// Package coordinator owns the tournament: agent registration, fixture
// dispatch, the round loop, and acceptance of referee result reports into
// the single-writer standings aggregator.
package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/live"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/registry"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/standings"
)

// ID is the coordinator's fixed agent identity.
const ID = "C01"

// MatchArchiver mirrors finished matches into durable history.
type MatchArchiver interface {
	ArchiveMatch(ctx context.Context, match *models.Match) error
}

type Coordinator struct {
	registry *registry.Registry
	agg      *standings.Aggregator
	logger   *slog.Logger

	hub     *live.Hub // optional
	room    string
	archive MatchArchiver // optional

	token string

	// mu guards the dispatched-fixture bookkeeping. Standings are never
	// touched here; results only flow into the aggregator queue.
	mu       sync.Mutex
	expected map[string]*models.Match
	reported map[string]bool
	done     map[string]chan struct{}
}

type Option func(*Coordinator)

func WithHub(hub *live.Hub, tournamentID string) Option {
	return func(c *Coordinator) {
		c.hub = hub
		c.room = live.RoomID(tournamentID)
	}
}

func WithMatchArchiver(a MatchArchiver) Option {
	return func(c *Coordinator) { c.archive = a }
}

func New(reg *registry.Registry, agg *standings.Aggregator, logger *slog.Logger, opts ...Option) *Coordinator {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	c := &Coordinator{
		registry: reg,
		agg:      agg,
		logger:   logger,
		token:    hex.EncodeToString(buf),
		expected: make(map[string]*models.Match),
		reported: make(map[string]bool),
		done:     make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Registry() *registry.Registry { return c.registry }

// Token is the coordinator's own bearer token for outbound envelopes.
func (c *Coordinator) Token() string { return c.token }

// Expect records a dispatched fixture so its report can be matched against
// the assigned referee and awaited.
func (c *Coordinator) Expect(m *models.Match) {
	copied := *m
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.expected[m.ID]; exists {
		return
	}
	c.expected[m.ID] = &copied
	c.done[m.ID] = make(chan struct{})
}

// HandleResultReport validates and applies one referee report. Re-delivered
// reports (client retries, correlated by match id) are acknowledged without
// duplicating the standings side effect.
func (c *Coordinator) HandleResultReport(ctx context.Context, sender *models.Registration, params protocol.ResultReportParams) *protocol.Error {
	res := params.Result

	c.mu.Lock()
	m, ok := c.expected[res.MatchID]
	if !ok {
		c.mu.Unlock()
		return protocol.NewError(protocol.CodeUnknownMatch, "match %s was never dispatched", res.MatchID)
	}
	if m.Referee != sender.ID {
		c.mu.Unlock()
		return protocol.NewError(protocol.CodeSenderMismatch,
			"match %s is assigned to %s, not %s", res.MatchID, m.Referee, sender.ID)
	}
	if res.PlayerA != m.PlayerA || res.PlayerB != m.PlayerB {
		c.mu.Unlock()
		return protocol.NewError(protocol.CodeInvalidParams,
			"report participants do not match fixture %s", res.MatchID)
	}
	if !res.Outcome.Valid() {
		c.mu.Unlock()
		return protocol.NewError(protocol.CodeInvalidParams,
			"unknown outcome %q for match %s", res.Outcome, res.MatchID)
	}
	if c.reported[res.MatchID] {
		c.mu.Unlock()
		return nil
	}
	c.reported[res.MatchID] = true

	now := time.Now().UTC()
	m.State = models.MatchDone
	outcome := res.Outcome
	m.Outcome = &outcome
	m.Draw = res.Draw
	m.FailureCode = res.FailureCode
	m.CompletedAt = &now
	archived := *m
	doneCh := c.done[res.MatchID]
	c.mu.Unlock()

	c.agg.Enqueue(res)
	close(doneCh)

	c.logger.Info("match result accepted",
		slog.String("match", res.MatchID),
		slog.String("referee", sender.ID),
		slog.String("outcome", string(res.Outcome)))

	if c.archive != nil {
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.archive.ArchiveMatch(archiveCtx, &archived); err != nil {
				c.logger.Error("match archive failed",
					slog.String("match", archived.ID), slog.Any("error", err))
			}
		}()
	}
	if c.hub != nil {
		c.hub.BroadcastToRoom(c.room, live.Event{Type: live.EventMatchCompleted, Payload: archived})
	}
	return nil
}

// voidMatch resolves a fixture the coordinator could not hand to its
// referee. The match is scored as a draw and flagged for reconciliation.
func (c *Coordinator) voidMatch(matchID string, code protocol.ErrorCode) {
	c.mu.Lock()
	m, ok := c.expected[matchID]
	if !ok || c.reported[matchID] {
		c.mu.Unlock()
		return
	}
	c.reported[matchID] = true

	now := time.Now().UTC()
	outcome := models.OutcomeDraw
	m.State = models.MatchDone
	m.Outcome = &outcome
	m.FailureCode = string(code)
	m.NeedsReconciliation = true
	m.CompletedAt = &now
	res := models.MatchResult{
		MatchID:     m.ID,
		Round:       m.Round,
		PlayerA:     m.PlayerA,
		PlayerB:     m.PlayerB,
		Outcome:     outcome,
		FailureCode: string(code),
	}
	doneCh := c.done[matchID]
	c.mu.Unlock()

	c.agg.Enqueue(res)
	close(doneCh)
}

// WaitMatches blocks until every listed fixture has been reported.
func (c *Coordinator) WaitMatches(ctx context.Context, matchIDs []string) error {
	for _, id := range matchIDs {
		c.mu.Lock()
		ch, ok := c.done[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Standings reads the table through the aggregator worker.
func (c *Coordinator) Standings(ctx context.Context) ([]models.StandingsEntry, error) {
	return c.agg.Standings(ctx)
}

// Matches returns read-only copies of all dispatched fixtures.
func (c *Coordinator) Matches() []*models.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Match, 0, len(c.expected))
	for _, m := range c.expected {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Coordinator) Match(id string) (*models.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.expected[id]
	if !ok {
		return nil, false
	}
	copied := *m
	return &copied, true
}
