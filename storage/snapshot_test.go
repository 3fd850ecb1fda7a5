package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

func TestSnapshotStoreRequiresDirectory(t *testing.T) {
	_, err := NewSnapshotStore("")
	assert.Error(t, err)
}

func TestSaveAndLoadStandings(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	entries := []models.StandingsEntry{
		{PlayerID: "P01", Played: 2, Wins: 2, Points: 6},
		{PlayerID: "P02", Played: 2, Losses: 2},
	}
	require.NoError(t, store.SaveStandings(context.Background(), entries))

	loaded, err := store.LoadStandings()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "P01", loaded[0].PlayerID)
	assert.Equal(t, 6, loaded[0].Points)
}

func TestLoadStandingsMissingFileIsFreshStart(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.LoadStandings()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveStandingsLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveStandings(context.Background(), []models.StandingsEntry{{PlayerID: "P01", Points: i}}))
	}

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, strings.Contains(f.Name(), ".tmp-"), "leftover temp file %s", f.Name())
	}

	loaded, err := store.LoadStandings()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 4, loaded[0].Points)
}

func TestSaveMatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	outcome := models.OutcomeWinA
	now := time.Now().UTC()
	m := &models.Match{
		ID:          "R1M1",
		Round:       1,
		GameType:    "parity",
		PlayerA:     "P01",
		PlayerB:     "P02",
		Referee:     "R01",
		State:       models.MatchDone,
		Outcome:     &outcome,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	require.NoError(t, store.SaveMatch(context.Background(), m))

	_, err = os.Stat(filepath.Join(dir, "matches", "R1M1.json"))
	assert.NoError(t, err)
}
