package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/live"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/scheduler"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/storage"
)

// broadcastConcurrency bounds the notification fan-out per round.
const broadcastConcurrency = 8

// Orchestrator drives the round loop: announce the round, dispatch its
// fixtures to referees, wait for every report, flush standings, announce the
// table, and finally crown the champion.
type Orchestrator struct {
	c      *Coordinator
	client *rpc.Client
	t      *config.Tournament
	logger *slog.Logger

	// Optional final-standings upload.
	uploader storage.FileUploader
}

type OrchestratorOption func(*Orchestrator)

func WithUploader(u storage.FileUploader) OrchestratorOption {
	return func(o *Orchestrator) { o.uploader = u }
}

func NewOrchestrator(c *Coordinator, client *rpc.Client, t *config.Tournament, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{c: c, client: client, t: t, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run plays the full tournament and returns the champion's standings entry.
// Agents must already be registered when it is called.
func (o *Orchestrator) Run(ctx context.Context) (models.StandingsEntry, error) {
	players := o.c.registry.List(models.RolePlayer)
	referees := o.c.registry.List(models.RoleReferee)

	playerIDs := make([]string, len(players))
	endpoints := make(map[string]string, len(players)+len(referees))
	for i, p := range players {
		playerIDs[i] = p.ID
		endpoints[p.ID] = p.Endpoint
	}
	refereeIDs := make([]string, len(referees))
	for i, r := range referees {
		refereeIDs[i] = r.ID
		endpoints[r.ID] = r.Endpoint
	}

	fixtures, err := scheduler.Schedule(scheduler.Params{
		Players:  playerIDs,
		Referees: refereeIDs,
		GameType: o.t.GameType,
	})
	if err != nil {
		return models.StandingsEntry{}, fmt.Errorf("schedule tournament: %w", err)
	}
	o.logger.Info("tournament scheduled",
		slog.Int("rounds", len(fixtures.Rounds)),
		slog.Int("matches", fixtures.TotalMatches()),
		slog.Int("players", len(players)),
		slog.Int("referees", len(referees)))

	everyone := append(append([]*models.Registration(nil), players...), referees...)

	for roundIdx, round := range fixtures.Rounds {
		roundNo := roundIdx + 1
		matchIDs := make([]string, len(round))
		for i, m := range round {
			matchIDs[i] = m.ID
		}

		o.broadcast(ctx, everyone, protocol.MsgRoundStart,
			protocol.RoundStartParams{Round: roundNo, Matches: matchIDs})
		if o.c.hub != nil {
			o.c.hub.BroadcastToRoom(o.c.room, live.Event{
				Type:    live.EventRoundStarted,
				Payload: protocol.RoundStartParams{Round: roundNo, Matches: matchIDs},
			})
		}

		o.dispatchRound(ctx, round, endpoints)

		if err := o.c.WaitMatches(ctx, matchIDs); err != nil {
			return models.StandingsEntry{}, fmt.Errorf("round %d aborted: %w", roundNo, err)
		}
		if err := o.c.agg.Flush(ctx); err != nil {
			return models.StandingsEntry{}, fmt.Errorf("round %d standings flush: %w", roundNo, err)
		}

		entries, err := o.c.agg.Standings(ctx)
		if err != nil {
			return models.StandingsEntry{}, fmt.Errorf("round %d standings read: %w", roundNo, err)
		}
		o.broadcast(ctx, everyone, protocol.MsgStandingsUpdate,
			protocol.StandingsUpdateParams{Round: roundNo, Standings: entries})
		o.logger.Info("round completed", slog.Int("round", roundNo))
	}

	champion, err := o.c.agg.Champion(ctx)
	if err != nil {
		return models.StandingsEntry{}, fmt.Errorf("determine champion: %w", err)
	}
	final, err := o.c.agg.Standings(ctx)
	if err != nil {
		return models.StandingsEntry{}, fmt.Errorf("final standings read: %w", err)
	}

	o.broadcast(ctx, everyone, protocol.MsgTournamentEnd,
		protocol.TournamentEndParams{Champion: champion.PlayerID, Standings: final})
	if o.c.hub != nil {
		o.c.hub.BroadcastToRoom(o.c.room, live.Event{
			Type:    live.EventTournamentCompleted,
			Payload: protocol.TournamentEndParams{Champion: champion.PlayerID, Standings: final},
		})
	}
	if o.uploader != nil {
		key := "tournaments/" + o.t.ID + "/final_standings.json"
		if _, err := storage.UploadJSON(ctx, o.uploader, key, final); err != nil {
			o.logger.Error("final standings upload failed", slog.Any("error", err))
		}
	}

	o.logger.Info("tournament completed", slog.String("champion", champion.PlayerID))
	return champion, nil
}

// dispatchRound hands each fixture of a round to its referee. Every fixture
// is registered as expected before any assignment goes out, so late reports
// never race the bookkeeping. A referee that stays unreachable through all
// retries voids its fixture as a reconciliation-flagged draw; the round must
// still complete.
func (o *Orchestrator) dispatchRound(ctx context.Context, round []*models.Match, endpoints map[string]string) {
	for _, m := range round {
		o.c.Expect(m)
	}

	var g errgroup.Group
	g.SetLimit(broadcastConcurrency)
	for _, m := range round {
		m := m
		g.Go(func() error {
			params := protocol.MatchAssignParams{
				MatchID:  m.ID,
				Round:    m.Round,
				GameType: m.GameType,
				PlayerA:  protocol.Participant{ID: m.PlayerA, Endpoint: endpoints[m.PlayerA]},
				PlayerB:  protocol.Participant{ID: m.PlayerB, Endpoint: endpoints[m.PlayerB]},
			}
			env, err := protocol.NewEnvelope(protocol.MsgMatchAssign, models.RoleCoordinator, ID, o.c.token, params)
			if err != nil {
				o.logger.Error("assignment envelope failed", slog.String("match", m.ID), slog.Any("error", err))
				o.c.voidMatch(m.ID, protocol.CodeInternal)
				return nil
			}
			resp, err := o.client.Call(ctx, endpoints[m.Referee], env, o.t.ReportTimeout())
			if err != nil {
				o.logger.Error("match assignment failed, voiding fixture",
					slog.String("match", m.ID),
					slog.String("referee", m.Referee),
					slog.Any("error", err))
				o.c.voidMatch(m.ID, failureCode(err))
				return nil
			}
			var ack protocol.MatchAssignResult
			if err := resp.DecodeResult(&ack); err != nil || !ack.Accepted {
				o.logger.Error("match assignment rejected, voiding fixture",
					slog.String("match", m.ID), slog.String("referee", m.Referee))
				o.c.voidMatch(m.ID, protocol.CodeInvalidParams)
				return nil
			}
			return nil
		})
	}
	g.Wait()
}

// broadcast fans a notification out to every target concurrently. Failures
// are collected and logged; a deaf agent never stalls the tournament.
func (o *Orchestrator) broadcast(ctx context.Context, targets []*models.Registration, t protocol.MessageType, payload any) {
	var g errgroup.Group
	g.SetLimit(broadcastConcurrency)

	var mu sync.Mutex
	var failed []string
	for _, target := range targets {
		target := target
		g.Go(func() error {
			env, err := protocol.NewEnvelope(t, models.RoleCoordinator, ID, o.c.token, payload)
			if err == nil {
				_, err = o.client.Call(ctx, target.Endpoint, env, o.t.InviteTimeout())
			}
			if err != nil {
				mu.Lock()
				failed = append(failed, target.ID)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(failed) > 0 {
		o.logger.Warn("broadcast not fully delivered",
			slog.String("type", string(t)),
			slog.Any("unreachable", failed))
	}
}

// failureCode extracts the transport classification from an exhausted call.
func failureCode(err error) protocol.ErrorCode {
	var failure *rpc.Failure
	if errors.As(err, &failure) {
		return failure.Code
	}
	return protocol.CodeInternal
}
