// Package referee implements the referee agent: an HTTP endpoint accepting
// match assignments from the coordinator, and one state machine per match
// driving invitation, choice collection, resolution and result reporting.
package referee

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/game"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/handlers"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/storage"
)

// Budgets holds the per-step timeout budgets of the match state machine.
type Budgets struct {
	Register time.Duration
	Invite   time.Duration
	Choice   time.Duration
	Report   time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		Register: 5 * time.Second,
		Invite:   5 * time.Second,
		Choice:   30 * time.Second,
		Report:   10 * time.Second,
	}
}

type Config struct {
	CoordinatorURL string
	Endpoint       string
	GameTypes      []string
	Budgets        Budgets

	// DrawFn is injectable for tests; nil means game.CryptoDraw.
	DrawFn game.DrawFunc

	// Optional persistence of finished matches.
	Store    *storage.SnapshotStore
	Uploader storage.FileUploader
}

type Agent struct {
	cfg    Config
	client *rpc.Client
	logger *slog.Logger

	ctx context.Context // root context for spawned matches

	id    string
	token string

	// mu guards the matches map and every match record it holds; match
	// records are only written by their own state machine goroutine, but
	// accessors may read concurrently.
	mu      sync.Mutex
	matches map[string]*models.Match
}

func New(ctx context.Context, cfg Config, client *rpc.Client, logger *slog.Logger) *Agent {
	if cfg.DrawFn == nil {
		cfg.DrawFn = game.CryptoDraw
	}
	if len(cfg.GameTypes) == 0 {
		cfg.GameTypes = []string{config.GameTypeParity}
	}
	return &Agent{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		ctx:     ctx,
		matches: make(map[string]*models.Match),
	}
}

func (a *Agent) ID() string { return a.id }

// Register announces this referee to the coordinator and stores the issued
// identity and token.
func (a *Agent) Register(ctx context.Context) error {
	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RoleReferee, "unregistered", "", protocol.RegisterParams{
		Role:      models.RoleReferee,
		GameTypes: a.cfg.GameTypes,
		Endpoint:  a.cfg.Endpoint,
	})
	if err != nil {
		return err
	}
	resp, err := a.client.Call(ctx, a.cfg.CoordinatorURL, env, a.cfg.Budgets.Register)
	if err != nil {
		return fmt.Errorf("referee registration: %w", err)
	}
	var result protocol.RegisterResult
	if err := resp.DecodeResult(&result); err != nil {
		return fmt.Errorf("referee registration: %w", err)
	}
	a.id = result.ID
	a.token = result.Token
	a.logger = a.logger.With(slog.String("referee", a.id))
	a.logger.Info("referee registered")
	return nil
}

// Handler serves the referee's RPC endpoint.
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
	case protocol.MsgMatchAssign:
		a.handleAssign(w, env)
	case protocol.MsgRoundStart, protocol.MsgStandingsUpdate, protocol.MsgTournamentEnd:
		handlers.WriteResult(w, protocol.Ack{OK: true})
	default:
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeUnknownType,
			"referee does not serve %s", env.MessageType))
	}
}

func (a *Agent) handleAssign(w http.ResponseWriter, env *protocol.Envelope) {
	if role, _ := env.SenderParts(); role != models.RoleCoordinator {
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeSenderMismatch,
			"only the coordinator assigns matches"))
		return
	}

	var params protocol.MatchAssignParams
	if perr := env.DecodePayload(&params); perr != nil {
		handlers.WriteProtocolError(w, perr)
		return
	}
	if !slices.Contains(a.cfg.GameTypes, params.GameType) {
		handlers.WriteProtocolError(w, protocol.NewError(protocol.CodeUnsupportedGame,
			"game type %q is not supported", params.GameType))
		return
	}

	a.mu.Lock()
	if _, exists := a.matches[params.MatchID]; exists {
		// Re-delivered assignment (coordinator retry); the running state
		// machine is the side effect, so just acknowledge again.
		a.mu.Unlock()
		handlers.WriteResult(w, protocol.MatchAssignResult{Accepted: true})
		return
	}
	m := &models.Match{
		ID:        params.MatchID,
		Round:     params.Round,
		GameType:  params.GameType,
		PlayerA:   params.PlayerA.ID,
		PlayerB:   params.PlayerB.ID,
		Referee:   a.id,
		State:     models.MatchCreated,
		CreatedAt: time.Now().UTC(),
	}
	a.matches[params.MatchID] = m
	a.mu.Unlock()

	go a.runMatch(a.ctx, m, [2]protocol.Participant{params.PlayerA, params.PlayerB})

	handlers.WriteResult(w, protocol.MatchAssignResult{Accepted: true})
}

// Matches returns copies of every match this referee has seen.
func (a *Agent) Matches() []*models.Match {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*models.Match, 0, len(a.matches))
	for _, m := range a.matches {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match returns a copy of one match record.
func (a *Agent) Match(id string) (*models.Match, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.matches[id]
	if !ok {
		return nil, false
	}
	copied := *m
	return &copied, true
}
