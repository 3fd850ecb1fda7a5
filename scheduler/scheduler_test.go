package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func players(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("P%02d", i+1)
	}
	return out
}

func TestScheduleRejectsBadInput(t *testing.T) {
	_, err := Schedule(Params{Players: players(1), Referees: []string{"R01"}})
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = Schedule(Params{Players: players(4)})
	assert.ErrorIs(t, err, ErrNoReferees)
}

func TestScheduleRoundRobinProperties(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 8} {
		t.Run(fmt.Sprintf("players_%d", n), func(t *testing.T) {
			ids := players(n)
			referees := []string{"R01", "R02"}
			list, err := Schedule(Params{Players: ids, Referees: referees, GameType: "parity"})
			require.NoError(t, err)

			assert.Equal(t, n*(n-1)/2, list.TotalMatches())

			expectedRounds := n - 1
			if n%2 != 0 {
				expectedRounds = n
			}
			assert.Len(t, list.Rounds, expectedRounds)

			pairs := make(map[string]int)
			for _, round := range list.Rounds {
				inRound := make(map[string]bool)
				for _, m := range round {
					// No player plays twice in the same round.
					assert.False(t, inRound[m.PlayerA], "player %s repeated in round %d", m.PlayerA, m.Round)
					assert.False(t, inRound[m.PlayerB], "player %s repeated in round %d", m.PlayerB, m.Round)
					inRound[m.PlayerA] = true
					inRound[m.PlayerB] = true

					key := m.PlayerA + "|" + m.PlayerB
					if m.PlayerB < m.PlayerA {
						key = m.PlayerB + "|" + m.PlayerA
					}
					pairs[key]++
					assert.Contains(t, referees, m.Referee)
				}
			}

			// Every unordered pair exactly once.
			assert.Len(t, pairs, n*(n-1)/2)
			for key, count := range pairs {
				assert.Equal(t, 1, count, "pair %s scheduled %d times", key, count)
			}
		})
	}
}

func TestScheduleMatchIDsAndRounds(t *testing.T) {
	list, err := Schedule(Params{Players: players(4), Referees: []string{"R01"}, GameType: "parity"})
	require.NoError(t, err)

	for i, round := range list.Rounds {
		for j, m := range round {
			assert.Equal(t, i+1, m.Round)
			assert.Equal(t, fmt.Sprintf("R%dM%d", i+1, j+1), m.ID)
			assert.Equal(t, "parity", m.GameType)
		}
	}
}

func TestScheduleRotatesReferees(t *testing.T) {
	list, err := Schedule(Params{Players: players(4), Referees: []string{"R01", "R02"}, GameType: "parity"})
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, m := range list.Flatten() {
		counts[m.Referee]++
	}
	assert.Equal(t, 3, counts["R01"])
	assert.Equal(t, 3, counts["R02"])
}

func TestScheduleIsDeterministic(t *testing.T) {
	p := Params{Players: players(6), Referees: []string{"R01", "R02", "R03"}, GameType: "parity"}
	first, err := Schedule(p)
	require.NoError(t, err)
	second, err := Schedule(p)
	require.NoError(t, err)

	require.Equal(t, first.TotalMatches(), second.TotalMatches())
	a, b := first.Flatten(), second.Flatten()
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].PlayerA, b[i].PlayerA)
		assert.Equal(t, a[i].PlayerB, b[i].PlayerB)
		assert.Equal(t, a[i].Referee, b[i].Referee)
	}
}
