package standings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu    sync.Mutex
	saves int
	last  []models.StandingsEntry
}

func (s *recordingSink) SaveStandings(_ context.Context, entries []models.StandingsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last = entries
	return nil
}

func TestAggregatorAppliesConcurrentResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := NewAggregator(NewTable(DefaultScoring()), testLogger())
	agg.Start(ctx)

	const producers = 8
	const perProducer = 10

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				a := fmt.Sprintf("P%02d", p+1)
				b := fmt.Sprintf("P%02d", producers+p+1)
				agg.Enqueue(models.MatchResult{
					MatchID: fmt.Sprintf("R%dM%d", p+1, i+1),
					Round:   p + 1,
					PlayerA: a,
					PlayerB: b,
					Outcome: models.OutcomeWinA,
				})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, agg.Flush(ctx))

	entries, err := agg.Standings(ctx)
	require.NoError(t, err)

	totalPlayed := 0
	for _, e := range entries {
		totalPlayed += e.Played
	}
	// Every result touches exactly two players.
	assert.Equal(t, 2*producers*perProducer, totalPlayed)

	for _, e := range entries {
		if e.Wins > 0 {
			assert.Equal(t, perProducer, e.Wins)
			assert.Equal(t, 3*perProducer, e.Points)
		}
	}
}

func TestAggregatorSkipsMalformedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := NewAggregator(NewTable(DefaultScoring()), testLogger())
	agg.Start(ctx)

	agg.Enqueue(models.MatchResult{MatchID: "bad", PlayerA: "P01", Outcome: models.OutcomeWinA})
	agg.Enqueue(models.MatchResult{MatchID: "R1M1", PlayerA: "P01", PlayerB: "P02", Outcome: models.OutcomeDraw})
	require.NoError(t, agg.Flush(ctx))

	entries, err := agg.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Played)
}

func TestAggregatorNotifiesSinkPerResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	agg := NewAggregator(NewTable(DefaultScoring()), testLogger(), WithSnapshotSink(sink))
	agg.Start(ctx)

	agg.Enqueue(models.MatchResult{MatchID: "R1M1", PlayerA: "P01", PlayerB: "P02", Outcome: models.OutcomeWinA})
	agg.Enqueue(models.MatchResult{MatchID: "R1M2", PlayerA: "P03", PlayerB: "P04", Outcome: models.OutcomeWinB})
	require.NoError(t, agg.Flush(ctx))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.saves)
	assert.Len(t, sink.last, 4)
}

func TestAggregatorChampion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := NewAggregator(NewTable(DefaultScoring()), testLogger())
	agg.Start(ctx)

	agg.Enqueue(models.MatchResult{MatchID: "R1M1", PlayerA: "P01", PlayerB: "P02", Outcome: models.OutcomeWinB})
	require.NoError(t, agg.Flush(ctx))

	champion, err := agg.Champion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P02", champion.PlayerID)
}

func TestAggregatorStandingsAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	agg := NewAggregator(NewTable(DefaultScoring()), testLogger())
	agg.Start(ctx)
	cancel()
	<-agg.done

	deadline, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	_, err := agg.Standings(deadline)
	assert.ErrorIs(t, err, ErrStopped)
}
