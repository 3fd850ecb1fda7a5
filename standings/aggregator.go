package standings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

// SnapshotSink persists the table after each applied result
// (write-temp-then-rename on the file implementation).
type SnapshotSink interface {
	SaveStandings(ctx context.Context, entries []models.StandingsEntry) error
}

// Archiver mirrors applied tables into durable history (Postgres). Failures
// are logged, never propagated into the tournament.
type Archiver interface {
	ArchiveStandings(ctx context.Context, entries []models.StandingsEntry) error
}

// Broadcaster pushes the updated table to live spectators.
type Broadcaster interface {
	StandingsUpdated(entries []models.StandingsEntry)
}

var ErrStopped = errors.New("aggregator is stopped")

type queueItem struct {
	result *models.MatchResult
	flush  chan struct{}
	query  chan []models.StandingsEntry
}

// Aggregator serializes concurrent match-result updates: many producers
// enqueue, one worker drains an item at a time and is the sole writer of
// the table. A malformed item is logged and skipped, never stalling the
// queue.
type Aggregator struct {
	queue   chan queueItem
	table   *Table
	logger  *slog.Logger
	sink    SnapshotSink
	archive Archiver
	live    Broadcaster
	done    chan struct{}
}

type AggregatorOption func(*Aggregator)

func WithSnapshotSink(s SnapshotSink) AggregatorOption {
	return func(a *Aggregator) { a.sink = s }
}

func WithArchiver(ar Archiver) AggregatorOption {
	return func(a *Aggregator) { a.archive = ar }
}

func WithBroadcaster(b Broadcaster) AggregatorOption {
	return func(a *Aggregator) { a.live = b }
}

func NewAggregator(table *Table, logger *slog.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		queue:  make(chan queueItem, 256),
		table:  table,
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the single worker. It drains until ctx is canceled.
func (a *Aggregator) Start(ctx context.Context) {
	go a.run(ctx)
}

func (a *Aggregator) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-a.queue:
			switch {
			case item.result != nil:
				a.apply(ctx, *item.result)
			case item.flush != nil:
				close(item.flush)
			case item.query != nil:
				item.query <- a.table.Sorted()
			}
		}
	}
}

func (a *Aggregator) apply(ctx context.Context, res models.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregator item panicked, skipping",
				slog.String("match", res.MatchID), slog.Any("panic", r))
		}
	}()

	if err := a.table.Apply(res); err != nil {
		a.logger.Error("aggregator item rejected, skipping",
			slog.String("match", res.MatchID), slog.Any("error", err))
		return
	}

	entries := a.table.Sorted()
	if a.sink != nil {
		if err := a.sink.SaveStandings(ctx, entries); err != nil {
			a.logger.Error("standings snapshot failed",
				slog.String("match", res.MatchID), slog.Any("error", err))
		}
	}
	if a.archive != nil {
		if err := a.archive.ArchiveStandings(ctx, entries); err != nil {
			a.logger.Error("standings archive failed",
				slog.String("match", res.MatchID), slog.Any("error", err))
		}
	}
	if a.live != nil {
		a.live.StandingsUpdated(entries)
	}
	a.logger.Info("standings updated",
		slog.String("match", res.MatchID),
		slog.String("outcome", string(res.Outcome)))
}

// Enqueue hands a result to the worker. Callers never hold a lock; the
// buffered queue absorbs bursts from concurrently finishing matches.
func (a *Aggregator) Enqueue(res models.MatchResult) {
	select {
	case a.queue <- queueItem{result: &res}:
	case <-a.done:
	}
}

// Flush blocks until every item enqueued before it has been applied.
func (a *Aggregator) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	select {
	case a.queue <- queueItem{flush: marker}:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-marker:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Standings reads the current table through the worker, preserving the
// single-owner discipline: no reader ever touches the table concurrently
// with a write.
func (a *Aggregator) Standings(ctx context.Context) ([]models.StandingsEntry, error) {
	reply := make(chan []models.StandingsEntry, 1)
	select {
	case a.queue <- queueItem{query: reply}:
	case <-a.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case entries := <-reply:
		return entries, nil
	case <-a.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Champion returns the top-ranked entry once all results are in.
func (a *Aggregator) Champion(ctx context.Context) (models.StandingsEntry, error) {
	entries, err := a.Standings(ctx)
	if err != nil {
		return models.StandingsEntry{}, err
	}
	if len(entries) == 0 {
		return models.StandingsEntry{}, errors.New("no standings entries")
	}
	return entries[0], nil
}
