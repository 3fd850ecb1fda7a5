package referee

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/game"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/storage"
)

// stepOutcome is the per-participant result of one concurrent step.
type stepOutcome struct {
	resp *protocol.Response
	err  error
}

func (o stepOutcome) failCode() protocol.ErrorCode {
	var failure *rpc.Failure
	if errors.As(o.err, &failure) {
		return failure.Code
	}
	return protocol.CodeInternal
}

// runMatch drives one match through its lifecycle. The match record is
// owned by this goroutine; nothing is shared with sibling matches except
// the coordinator's aggregator at the final reporting step.
func (a *Agent) runMatch(ctx context.Context, m *models.Match, players [2]protocol.Participant) {
	logger := a.logger.With(slog.String("match", m.ID))
	logger.Info("match started",
		slog.String("player_a", players[0].ID),
		slog.String("player_b", players[1].ID))

	// Invitation step: both participants are invited concurrently, each
	// call under its own timeout budget.
	a.setState(m, models.MatchAwaitingJoin)
	invites := [2]any{
		protocol.MatchInviteParams{MatchID: m.ID, Round: m.Round, GameType: m.GameType, Opponent: players[1].ID},
		protocol.MatchInviteParams{MatchID: m.ID, Round: m.Round, GameType: m.GameType, Opponent: players[0].ID},
	}
	outcomes := a.callBoth(ctx, m, players, protocol.MsgMatchInvite, invites, a.cfg.Budgets.Invite)
	for i := range outcomes {
		if outcomes[i].err != nil {
			a.finishTechnical(ctx, m, players, i, outcomes[i].failCode(), logger)
			return
		}
		var ack protocol.MatchInviteResult
		if err := outcomes[i].resp.DecodeResult(&ack); err != nil || !ack.Accept {
			a.finishTechnical(ctx, m, players, i, protocol.CodeInvalidParams, logger)
			return
		}
	}

	// Choice step: a larger budget covers thinking time.
	a.setState(m, models.MatchAwaitingChoices)
	choiceReqs := [2]any{
		protocol.ChoiceRequestParams{MatchID: m.ID},
		protocol.ChoiceRequestParams{MatchID: m.ID},
	}
	outcomes = a.callBoth(ctx, m, players, protocol.MsgChoiceRequest, choiceReqs, a.cfg.Budgets.Choice)
	var choices [2]models.Parity
	for i := range outcomes {
		if outcomes[i].err != nil {
			a.finishTechnical(ctx, m, players, i, outcomes[i].failCode(), logger)
			return
		}
		var reply protocol.ChoiceRequestResult
		if err := outcomes[i].resp.DecodeResult(&reply); err != nil {
			a.finishTechnical(ctx, m, players, i, protocol.CodeInvalidParams, logger)
			return
		}
		if !reply.Choice.Valid() {
			a.finishTechnical(ctx, m, players, i, protocol.CodeInvalidChoice, logger)
			return
		}
		choices[i] = reply.Choice
	}

	// Resolution: the draw happens exactly once and is recorded before
	// either player is evaluated against it.
	a.setState(m, models.MatchResolving)
	a.mu.Lock()
	m.ChoiceA = &choices[0]
	m.ChoiceB = &choices[1]
	a.mu.Unlock()

	draw, err := a.cfg.DrawFn()
	if err != nil {
		logger.Error("draw failed, voiding match as draw", slog.Any("error", err))
		a.mu.Lock()
		m.FailureCode = string(protocol.CodeInternal)
		m.NeedsReconciliation = true
		a.mu.Unlock()
		a.finish(ctx, m, players, models.OutcomeDraw, protocol.CodeInternal, logger)
		return
	}
	a.mu.Lock()
	m.Draw = &draw
	a.mu.Unlock()

	a.finish(ctx, m, players, game.Resolve(choices[0], choices[1], draw), "", logger)
}

// finishTechnical awards the opponent a technical win and moves the match
// straight to REPORTING, recording the error code that caused it.
func (a *Agent) finishTechnical(ctx context.Context, m *models.Match, players [2]protocol.Participant, loser int, code protocol.ErrorCode, logger *slog.Logger) {
	outcome := models.OutcomeTechnicalLossA
	if loser == 1 {
		outcome = models.OutcomeTechnicalLossB
	}
	logger.Warn("technical loss",
		slog.String("player", players[loser].ID),
		slog.String("code", string(code)))

	a.mu.Lock()
	m.FailureCode = string(code)
	a.mu.Unlock()
	a.finish(ctx, m, players, outcome, code, logger)
}

// finish notifies both players (best effort), reports the result to the
// coordinator (must succeed, retried by the client), and archives the
// finished record.
func (a *Agent) finish(ctx context.Context, m *models.Match, players [2]protocol.Participant, outcome models.Outcome, reason protocol.ErrorCode, logger *slog.Logger) {
	a.mu.Lock()
	m.Outcome = &outcome
	draw := m.Draw
	a.mu.Unlock()
	a.setState(m, models.MatchReporting)

	// Result notifications are fire-and-forget: a player that cannot hear
	// the verdict does not change it.
	notice := protocol.MatchResultParams{MatchID: m.ID, Outcome: outcome, Draw: draw, Reason: reason}
	notices := [2]any{notice, notice}
	noticeOutcomes := a.callBoth(ctx, m, players, protocol.MsgMatchResult, notices, a.cfg.Budgets.Invite)
	for i := range noticeOutcomes {
		if noticeOutcomes[i].err != nil {
			logger.Warn("result notification failed",
				slog.String("player", players[i].ID),
				slog.Any("error", noticeOutcomes[i].err))
		}
	}

	// Reporting to the coordinator is the one step that must eventually
	// succeed; exhausted retries here threaten standings correctness.
	result := models.MatchResult{
		MatchID:     m.ID,
		Round:       m.Round,
		PlayerA:     m.PlayerA,
		PlayerB:     m.PlayerB,
		Outcome:     outcome,
		Draw:        draw,
		FailureCode: string(reason),
	}
	env, err := protocol.NewEnvelope(protocol.MsgResultReport, models.RoleReferee, a.id, a.token,
		protocol.ResultReportParams{Result: result})
	if err == nil {
		a.record(m, "sent", "coordinator", env)
		var resp *protocol.Response
		resp, err = a.client.Call(ctx, a.cfg.CoordinatorURL, env, a.cfg.Budgets.Report)
		if err == nil {
			a.record(m, "received", "coordinator", resp)
		}
	}
	if err != nil {
		logger.Error("failed to report match result, flagging for manual reconciliation",
			slog.Any("error", err))
		a.mu.Lock()
		m.NeedsReconciliation = true
		a.mu.Unlock()
	}

	now := time.Now().UTC()
	a.mu.Lock()
	m.CompletedAt = &now
	a.mu.Unlock()
	a.setState(m, models.MatchDone)
	logger.Info("match finished", slog.String("outcome", string(outcome)))

	a.persist(ctx, m, logger)
}

func (a *Agent) persist(ctx context.Context, m *models.Match, logger *slog.Logger) {
	snapshot, _ := a.Match(m.ID)
	if a.cfg.Store != nil {
		if err := a.cfg.Store.SaveMatch(ctx, snapshot); err != nil {
			logger.Error("match snapshot failed", slog.Any("error", err))
		}
	}
	if a.cfg.Uploader != nil {
		if _, err := storage.UploadJSON(ctx, a.cfg.Uploader, "transcripts/"+m.ID+".json", snapshot); err != nil {
			logger.Error("transcript upload failed", slog.Any("error", err))
		}
	}
}

// callBoth issues the same step to both participants concurrently so a
// single slow peer does not double the cost of the step. The group carries
// no cancelation: one participant's failure must not abort the sibling
// call, the caller decides per-participant.
func (a *Agent) callBoth(ctx context.Context, m *models.Match, players [2]protocol.Participant, t protocol.MessageType, payloads [2]any, timeout time.Duration) [2]stepOutcome {
	var g errgroup.Group
	var out [2]stepOutcome
	for i := range players {
		i := i
		g.Go(func() error {
			env, err := protocol.NewEnvelope(t, models.RoleReferee, a.id, a.token, payloads[i])
			if err != nil {
				out[i] = stepOutcome{err: err}
				return nil
			}
			a.record(m, "sent", players[i].ID, env)
			resp, err := a.client.Call(ctx, players[i].Endpoint, env, timeout)
			if err != nil {
				out[i] = stepOutcome{err: err}
				a.record(m, "received", players[i].ID, failureNote{Error: err.Error()})
				return nil
			}
			out[i] = stepOutcome{resp: resp}
			a.record(m, "received", players[i].ID, resp)
			return nil
		})
	}
	g.Wait()
	return out
}

type failureNote struct {
	Error string `json:"error"`
}

func (a *Agent) setState(m *models.Match, s models.MatchState) {
	a.mu.Lock()
	m.State = s
	a.mu.Unlock()
	a.logger.Debug("match state", slog.String("match", m.ID), slog.String("state", string(s)))
}

func (a *Agent) record(m *models.Match, direction, peer string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		a.logger.Warn("transcript entry dropped", slog.String("match", m.ID), slog.Any("error", err))
		return
	}
	a.mu.Lock()
	m.Transcript = append(m.Transcript, models.TranscriptEntry{
		Direction: direction,
		Peer:      peer,
		Body:      raw,
		At:        time.Now().UTC(),
	})
	a.mu.Unlock()
}
