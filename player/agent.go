// Package player implements the player agent: it registers with the
// coordinator, acknowledges invitations, answers choice requests through a
// pluggable strategy, and acknowledges notifications.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/handlers"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
)

type Config struct {
	Name            string
	CoordinatorURL  string
	Endpoint        string
	Strategy        Strategy
	RegisterTimeout time.Duration
}

type Agent struct {
	cfg    Config
	client *rpc.Client
	logger *slog.Logger

	id    string
	token string

	mu      sync.Mutex
	invites map[string]protocol.MatchInviteParams
	results map[string]protocol.MatchResultParams
}

func New(cfg Config, client *rpc.Client, logger *slog.Logger) *Agent {
	if cfg.Strategy == nil {
		cfg.Strategy = RandomStrategy{}
	}
	if cfg.RegisterTimeout == 0 {
		cfg.RegisterTimeout = 5 * time.Second
	}
	return &Agent{
		cfg:     cfg,
		client:  client,
		logger:  logger.With(slog.String("player_name", cfg.Name)),
		invites: make(map[string]protocol.MatchInviteParams),
		results: make(map[string]protocol.MatchResultParams),
	}
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) Register(ctx context.Context) error {
	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RolePlayer, "unregistered", "", protocol.RegisterParams{
		Role:      models.RolePlayer,
		GameTypes: []string{config.GameTypeParity},
		Endpoint:  a.cfg.Endpoint,
	})
	if err != nil {
		return err
	}
	resp, err := a.client.Call(ctx, a.cfg.CoordinatorURL, env, a.cfg.RegisterTimeout)
	if err != nil {
		return fmt.Errorf("player registration: %w", err)
	}
	var result protocol.RegisterResult
	if err := resp.DecodeResult(&result); err != nil {
		return fmt.Errorf("player registration: %w", err)
	}
	a.id = result.ID
	a.token = result.Token
	a.logger = a.logger.With(slog.String("player", a.id))
	a.logger.Info("player registered")
	return nil
}

func (a *Agent) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.Recoverer)
	router.Post("/rpc", a.rpc)
	return router
}

func (a *Agent) rpc(w http.ResponseWriter, r *http.Request) {
	raw, err := handlers.ReadBody(w, r)
	if err != nil {
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeParse, "%v", err))
		return
	}
	env, perr := protocol.Validate(raw)
	if perr != nil {
		handlers.WriteProtocolError(w, perr)
		return
	}

	switch env.MessageType {
	case protocol.MsgMatchInvite:
		a.handleInvite(w, env)
	case protocol.MsgChoiceRequest:
		a.handleChoiceRequest(w, r.Context(), env)
	case protocol.MsgMatchResult:
		a.handleMatchResult(w, env)
	case protocol.MsgRoundStart, protocol.MsgStandingsUpdate, protocol.MsgTournamentEnd:
		handlers.WriteResult(w, protocol.Ack{OK: true})
	default:
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeUnknownType,
			"player does not serve %s", env.MessageType))
	}
}

func (a *Agent) handleInvite(w http.ResponseWriter, env *protocol.Envelope) {
	var params protocol.MatchInviteParams
	if perr := env.DecodePayload(&params); perr != nil {
		handlers.WriteProtocolError(w, perr)
		return
	}
	a.mu.Lock()
	a.invites[params.MatchID] = params
	a.mu.Unlock()
	a.logger.Info("invitation accepted",
		slog.String("match", params.MatchID),
		slog.String("opponent", params.Opponent))
	handlers.WriteResult(w, protocol.MatchInviteResult{Accept: true})
}

func (a *Agent) handleChoiceRequest(w http.ResponseWriter, ctx context.Context, env *protocol.Envelope) {
	var params protocol.ChoiceRequestParams
	if perr := env.DecodePayload(&params); perr != nil {
		handlers.WriteProtocolError(w, perr)
		return
	}
	a.mu.Lock()
	_, invited := a.invites[params.MatchID]
	a.mu.Unlock()
	if !invited {
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeUnknownMatch,
			"no invitation for match %s", params.MatchID))
		return
	}

	choice, err := a.cfg.Strategy.Choose(ctx, params.MatchID)
	if err != nil {
		a.logger.Error("strategy failed", slog.String("match", params.MatchID), slog.Any("error", err))
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeInternal, "strategy failed"))
		return
	}
	a.logger.Info("choice submitted",
		slog.String("match", params.MatchID),
		slog.String("choice", string(choice)))
	handlers.WriteResult(w, protocol.ChoiceRequestResult{Choice: choice})
}

func (a *Agent) handleMatchResult(w http.ResponseWriter, env *protocol.Envelope) {
	var params protocol.MatchResultParams
	if perr := env.DecodePayload(&params); perr != nil {
		handlers.WriteProtocolError(w, perr)
		return
	}
	a.mu.Lock()
	a.results[params.MatchID] = params
	a.mu.Unlock()
	a.logger.Info("result received",
		slog.String("match", params.MatchID),
		slog.String("outcome", string(params.Outcome)))
	handlers.WriteResult(w, protocol.Ack{OK: true})
}

// Results returns the outcomes this player has been notified of, keyed by
// match id.
func (a *Agent) Results() map[string]protocol.MatchResultParams {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]protocol.MatchResultParams, len(a.results))
	for k, v := range a.results {
		out[k] = v
	}
	return out
}
