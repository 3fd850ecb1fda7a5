package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/coordinator"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/db"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/handlers"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/live"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/player"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/referee"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/registry"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/repositories"
	api "github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/routes"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/rpc"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/standings"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.CoordinatorPort))

	tournament, err := config.LoadTournament(cfg.TournamentFile)
	if err != nil {
		logger.Error("failed to load tournament definition", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("tournament definition loaded",
		slog.String("tournament", tournament.ID),
		slog.Int("players", len(tournament.Players)),
		slog.Int("referees", tournament.Referees))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		logger.Error("failed to initialize snapshot store", slog.Any("error", err))
		os.Exit(1)
	}

	// Optional Postgres archive: match history and standings snapshots.
	var matchArchive coordinator.MatchArchiver
	var standingArchive standings.Archiver
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			}
		}()
		matchArchive = repositories.NewPostgresMatchArchiveRepository(dbConn)
		standingArchive = repositories.NewPostgresStandingSnapshotRepository(dbConn)
		logger.Info("database connection established")
	}

	// Optional R2 object storage for transcripts and the final table.
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewR2Uploader(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	}

	hub := live.NewHub(logger)
	go hub.Run(ctx)

	reg := registry.New(logger)

	table := standings.NewTable(standings.Scoring{
		Win:  tournament.Scoring.Win,
		Draw: tournament.Scoring.Draw,
		Loss: tournament.Scoring.Loss,
	})
	if restored, err := store.LoadStandings(); err != nil {
		logger.Error("failed to restore standings snapshot", slog.Any("error", err))
		os.Exit(1)
	} else if len(restored) > 0 {
		table.Restore(restored)
		logger.Info("standings restored from snapshot", slog.Int("entries", len(restored)))
	}

	aggOpts := []standings.AggregatorOption{standings.WithSnapshotSink(store)}
	if standingArchive != nil {
		aggOpts = append(aggOpts, standings.WithArchiver(standingArchive))
	}
	aggOpts = append(aggOpts, standings.WithBroadcaster(&hubBroadcaster{
		hub:  hub,
		room: live.RoomID(tournament.ID),
	}))
	agg := standings.NewAggregator(table, logger, aggOpts...)

	coordOpts := []coordinator.Option{coordinator.WithHub(hub, tournament.ID)}
	if matchArchive != nil {
		coordOpts = append(coordOpts, coordinator.WithMatchArchiver(matchArchive))
	}
	coord := coordinator.New(reg, agg, logger, coordOpts...)

	client := rpc.NewClient(rpc.Policy{
		MaxRetries:  tournament.MaxRetries,
		BackoffBase: tournament.BackoffBase(),
		BackoffCap:  tournament.BackoffCap(),
	}, logger)

	// Coordinator HTTP surface.
	coordinatorHandler := handlers.NewCoordinatorHandler(reg, coord, logger)
	var operatorHandler *handlers.OperatorHandler
	if cfg.OperatorAPIEnabled() {
		operatorHandler = handlers.NewOperatorHandler(
			[]byte(cfg.JWTSecretKey), cfg.OperatorPasswordHash, coord, coord, logger)
	}
	webSocketHandler := handlers.NewWebSocketHandler(hub, logger)

	router := chi.NewRouter()
	api.SetupCoordinatorRoutes(router, coordinatorHandler, operatorHandler, webSocketHandler, []byte(cfg.JWTSecretKey))

	servers := make([]*http.Server, 0, 1+tournament.Referees+len(tournament.Players))
	serverErrors := make(chan error, 1)

	coordServer, err := serve(router, cfg.CoordinatorPort, logger, serverErrors)
	if err != nil {
		logger.Error("failed to start coordinator server", slog.Any("error", err))
		os.Exit(1)
	}
	servers = append(servers, coordServer)
	coordinatorURL := fmt.Sprintf("http://%s:%d/rpc", cfg.AgentHost, cfg.CoordinatorPort)
	logger.Info("coordinator listening", slog.String("url", coordinatorURL))

	budgets := referee.Budgets{
		Register: tournament.InviteTimeout(),
		Invite:   tournament.InviteTimeout(),
		Choice:   tournament.ChoiceTimeout(),
		Report:   tournament.ReportTimeout(),
	}

	// Referee agents, each on its own port.
	referees := make([]*referee.Agent, 0, tournament.Referees)
	for i := 0; i < tournament.Referees; i++ {
		port := cfg.RefereeBasePort + i
		agent := referee.New(ctx, referee.Config{
			CoordinatorURL: coordinatorURL,
			Endpoint:       fmt.Sprintf("http://%s:%d/rpc", cfg.AgentHost, port),
			Budgets:        budgets,
			Store:          store,
			Uploader:       uploader,
		}, client, logger)

		srv, err := serve(agent.Handler(), port, logger, serverErrors)
		if err != nil {
			logger.Error("failed to start referee server", slog.Int("port", port), slog.Any("error", err))
			os.Exit(1)
		}
		servers = append(servers, srv)
		referees = append(referees, agent)
	}

	// Player agents, each on its own port.
	players := make([]*player.Agent, 0, len(tournament.Players))
	for i, spec := range tournament.Players {
		strategy, err := player.StrategyForName(spec.Strategy)
		if err != nil {
			logger.Error("invalid player strategy", slog.String("player", spec.Name), slog.Any("error", err))
			os.Exit(1)
		}
		port := cfg.PlayerBasePort + i
		agent := player.New(player.Config{
			Name:           spec.Name,
			CoordinatorURL: coordinatorURL,
			Endpoint:       fmt.Sprintf("http://%s:%d/rpc", cfg.AgentHost, port),
			Strategy:       strategy,
		}, client, logger)

		srv, err := serve(agent.Handler(), port, logger, serverErrors)
		if err != nil {
			logger.Error("failed to start player server", slog.Int("port", port), slog.Any("error", err))
			os.Exit(1)
		}
		servers = append(servers, srv)
		players = append(players, agent)
	}

	// All endpoints are listening; agents can announce themselves.
	for _, agent := range referees {
		if err := agent.Register(ctx); err != nil {
			logger.Error("referee registration failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
	playerIDs := make([]string, 0, len(players))
	for _, agent := range players {
		if err := agent.Register(ctx); err != nil {
			logger.Error("player registration failed", slog.Any("error", err))
			os.Exit(1)
		}
		playerIDs = append(playerIDs, agent.ID())
	}

	// Seed before the worker starts so unscored players still rank.
	table.Seed(playerIDs)
	agg.Start(ctx)

	orchOpts := []coordinator.OrchestratorOption{}
	if uploader != nil {
		orchOpts = append(orchOpts, coordinator.WithUploader(uploader))
	}
	orchestrator := coordinator.NewOrchestrator(coord, client, tournament, logger, orchOpts...)

	runErrors := make(chan error, 1)
	go func() {
		champion, err := orchestrator.Run(ctx)
		if err != nil {
			runErrors <- err
			return
		}
		logger.Info("champion crowned",
			slog.String("player", champion.PlayerID),
			slog.Int("points", champion.Points))
		runErrors <- nil
	}()

	exitCode := 0
	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.Any("error", err))
		exitCode = 1
	case err := <-runErrors:
		if err != nil {
			logger.Error("tournament failed", slog.Any("error", err))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("address", srv.Addr), slog.Any("error", err))
		}
	}
	logger.Info("application exited")
	os.Exit(exitCode)
}

// serve binds the port synchronously so registration never races a server
// that is not listening yet, then accepts in the background.
func serve(handler http.Handler, port int, logger *slog.Logger, serverErrors chan<- error) (*http.Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:         listener.Addr().String(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	go func() {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	return srv, nil
}

// hubBroadcaster adapts the websocket hub to the aggregator's broadcast
// hook.
type hubBroadcaster struct {
	hub  *live.Hub
	room string
}

func (b *hubBroadcaster) StandingsUpdated(entries []models.StandingsEntry) {
	b.hub.BroadcastToRoom(b.room, live.Event{Type: live.EventStandingsUpdated, Payload: entries})
}
