package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/handlers"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/player"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/referee"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/registry"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/standings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listen reserves a loopback port so an agent knows its own endpoint before
// its server starts.
func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln, fmt.Sprintf("http://%s/rpc", ln.Addr())
}

func serveAgent(t *testing.T, ln net.Listener, handler http.Handler) {
	t.Helper()
	srv := &httptest.Server{Listener: ln, Config: &http.Server{Handler: handler}}
	srv.Start()
	t.Cleanup(srv.Close)
}

func newCoordinatorUnderTest(t *testing.T, ctx context.Context) (*Coordinator, *registry.Registry) {
	t.Helper()
	reg := registry.New(testLogger())
	agg := standings.NewAggregator(standings.NewTable(standings.DefaultScoring()), testLogger())
	agg.Start(ctx)
	return New(reg, agg, testLogger()), reg
}

func refereeRegistration(t *testing.T, reg *registry.Registry) *models.Registration {
	t.Helper()
	r, err := reg.Register(models.RoleReferee, registry.Meta{Endpoint: "http://127.0.0.1:8200/rpc"})
	require.NoError(t, err)
	return r
}

func sampleResult(matchID string) protocol.ResultReportParams {
	return protocol.ResultReportParams{Result: models.MatchResult{
		MatchID: matchID,
		Round:   1,
		PlayerA: "P01",
		PlayerB: "P02",
		Outcome: models.OutcomeWinA,
	}}
}

func TestHandleResultReportUnknownMatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, reg := newCoordinatorUnderTest(t, ctx)
	ref := refereeRegistration(t, reg)

	perr := c.HandleResultReport(ctx, ref, sampleResult("R9M9"))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeUnknownMatch, perr.Code)
}

func TestHandleResultReportWrongReferee(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, reg := newCoordinatorUnderTest(t, ctx)
	ref := refereeRegistration(t, reg)

	c.Expect(&models.Match{ID: "R1M1", Round: 1, PlayerA: "P01", PlayerB: "P02", Referee: "R02"})

	perr := c.HandleResultReport(ctx, ref, sampleResult("R1M1"))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeSenderMismatch, perr.Code)
}

func TestHandleResultReportParticipantMismatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, reg := newCoordinatorUnderTest(t, ctx)
	ref := refereeRegistration(t, reg)

	c.Expect(&models.Match{ID: "R1M1", Round: 1, PlayerA: "P03", PlayerB: "P04", Referee: ref.ID})

	perr := c.HandleResultReport(ctx, ref, sampleResult("R1M1"))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestHandleResultReportIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, reg := newCoordinatorUnderTest(t, ctx)
	ref := refereeRegistration(t, reg)

	c.Expect(&models.Match{ID: "R1M1", Round: 1, PlayerA: "P01", PlayerB: "P02", Referee: ref.ID})

	require.Nil(t, c.HandleResultReport(ctx, ref, sampleResult("R1M1")))
	// Re-delivery of the same report acknowledges without double scoring.
	require.Nil(t, c.HandleResultReport(ctx, ref, sampleResult("R1M1")))
	require.NoError(t, c.agg.Flush(ctx))

	entries, err := c.Standings(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, 1, e.Played, "player %s scored twice", e.PlayerID)
	}

	require.NoError(t, c.WaitMatches(ctx, []string{"R1M1"}))
	m, ok := c.Match("R1M1")
	require.True(t, ok)
	assert.Equal(t, models.MatchDone, m.State)
	require.NotNil(t, m.Outcome)
	assert.Equal(t, models.OutcomeWinA, *m.Outcome)
}

func TestVoidMatchScoresDrawWithReconciliation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, reg := newCoordinatorUnderTest(t, ctx)
	refereeRegistration(t, reg)

	c.Expect(&models.Match{ID: "R1M1", Round: 1, PlayerA: "P01", PlayerB: "P02", Referee: "R01"})
	c.voidMatch("R1M1", protocol.CodeConnection)

	require.NoError(t, c.WaitMatches(ctx, []string{"R1M1"}))
	require.NoError(t, c.agg.Flush(ctx))

	m, ok := c.Match("R1M1")
	require.True(t, ok)
	assert.True(t, m.NeedsReconciliation)
	assert.Equal(t, string(protocol.CodeConnection), m.FailureCode)
	require.NotNil(t, m.Outcome)
	assert.Equal(t, models.OutcomeDraw, *m.Outcome)

	entries, err := c.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Points)
}

// TestTournamentEndToEnd plays a full four-player tournament over real HTTP:
// the coordinator, two referees and four players each serve their own
// endpoint, and every exchange crosses the wire.
func TestTournamentEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := testLogger()
	reg := registry.New(logger)
	table := standings.NewTable(standings.DefaultScoring())
	agg := standings.NewAggregator(table, logger)
	coord := New(reg, agg, logger)

	client := rpc.NewClient(rpc.Policy{
		MaxRetries:  1,
		BackoffBase: 5 * time.Millisecond,
		BackoffCap:  20 * time.Millisecond,
	}, logger)

	router := chi.NewRouter()
	router.Post("/rpc", handlers.NewCoordinatorHandler(reg, coord, logger).RPC)
	coordSrv := httptest.NewServer(router)
	defer coordSrv.Close()
	coordinatorURL := coordSrv.URL + "/rpc"

	budgets := referee.Budgets{
		Register: time.Second,
		Invite:   time.Second,
		Choice:   time.Second,
		Report:   2 * time.Second,
	}

	// Two referees with a fixed odd draw so results are deterministic.
	for i := 0; i < 2; i++ {
		ln, endpoint := listen(t)
		agent := referee.New(ctx, referee.Config{
			CoordinatorURL: coordinatorURL,
			Endpoint:       endpoint,
			Budgets:        budgets,
			DrawFn:         func() (int, error) { return 7, nil },
		}, client, logger)
		serveAgent(t, ln, agent.Handler())
		require.NoError(t, agent.Register(ctx))
	}

	// Two odd players, two even players. With an odd draw the odd players
	// beat the even ones and draw among themselves.
	strategies := []player.Strategy{
		player.FixedStrategy(models.ParityOdd),
		player.FixedStrategy(models.ParityOdd),
		player.FixedStrategy(models.ParityEven),
		player.FixedStrategy(models.ParityEven),
	}
	playerIDs := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		ln, endpoint := listen(t)
		agent := player.New(player.Config{
			Name:           "player",
			CoordinatorURL: coordinatorURL,
			Endpoint:       endpoint,
			Strategy:       strategy,
		}, client, logger)
		serveAgent(t, ln, agent.Handler())
		require.NoError(t, agent.Register(ctx))
		playerIDs = append(playerIDs, agent.ID())
	}

	table.Seed(playerIDs)
	agg.Start(ctx)

	tournament := &config.Tournament{
		ID:         "e2e",
		GameType:   config.GameTypeParity,
		Referees:   2,
		MaxRetries: 1,
		Timeouts: config.Timeouts{
			UnitMillis:       100,
			InviteUnits:      10,
			ChoiceUnits:      10,
			ReportUnits:      20,
			BackoffBaseUnits: 1,
			BackoffCapUnits:  2,
		},
		Scoring: config.ScoringSpec{Win: 3, Draw: 1, Loss: 0},
	}

	champion, err := NewOrchestrator(coord, client, tournament, logger).Run(ctx)
	require.NoError(t, err)

	// Round robin over four players: three rounds, six matches, all done.
	matches := coord.Matches()
	require.Len(t, matches, 6)
	for _, m := range matches {
		assert.Equal(t, models.MatchDone, m.State, "match %s not finished", m.ID)
		require.NotNil(t, m.Outcome)
		assert.False(t, m.NeedsReconciliation, "match %s flagged", m.ID)
	}

	entries, err := coord.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	totalPlayed := 0
	for _, e := range entries {
		assert.Equal(t, 3, e.Played, "player %s played %d matches", e.PlayerID, e.Played)
		totalPlayed += e.Played
	}
	assert.Equal(t, 12, totalPlayed)

	// P01 and P02 both finish on 7 points and 2 wins; identity breaks the tie.
	assert.Equal(t, "P01", champion.PlayerID)
	assert.Equal(t, 7, champion.Points)
	assert.Equal(t, entries[0].PlayerID, champion.PlayerID)
	assert.Equal(t, "P02", entries[1].PlayerID)
}
