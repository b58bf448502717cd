package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/testutil"
)

func TestLink_SymmetricPair(t *testing.T) {
	var plays []pbp.LabeledPlay
	plays = append(plays, testutil.ScoringPlays(2024, 1, "KC", "BAL", "KC", 27)...)
	plays = append(plays, testutil.ScoringPlays(2024, 1, "KC", "BAL", "BAL", 20)...)

	rows := Link(Aggregate(plays))
	require.Len(t, rows, 2)

	bal, kc := rows[0], rows[1]
	assert.Equal(t, "BAL", bal.TeamWithPossession)
	assert.Equal(t, "KC", kc.TeamWithPossession)

	assert.Equal(t, "2024_1_KC_BAL", bal.GameID)
	assert.Equal(t, bal.GameID, kc.GameID)
	assert.Equal(t, "KC", bal.Opponent)
	assert.Equal(t, "BAL", kc.Opponent)

	assert.Equal(t, kc.Points, bal.PointsAllowed)
	assert.Equal(t, bal.Points, kc.PointsAllowed)
	assert.Equal(t, 47, bal.GameTotal)
	assert.Equal(t, bal.GameTotal, kc.GameTotal)
	assert.False(t, bal.OpponentMissing)
	assert.Empty(t, MissingOpponents(rows))
}

func TestLink_MissingOpponentFallsBackToOwnPoints(t *testing.T) {
	plays := testutil.ScoringPlays(2024, 3, "DET", "GB", "GB", 17)

	rows := Link(Aggregate(plays))
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "DET", row.Opponent)
	assert.Equal(t, 17, row.PointsAllowed)
	assert.Equal(t, 34, row.GameTotal)
	assert.True(t, row.OpponentMissing)
	assert.Equal(t, []string{"2024_3_DET_GB"}, MissingOpponents(rows))
}

func TestLink_OpponentIsScopedToGame(t *testing.T) {
	var plays []pbp.LabeledPlay
	plays = append(plays, testutil.ScoringPlays(2024, 1, "KC", "BAL", "KC", 10)...)
	plays = append(plays, testutil.ScoringPlays(2024, 1, "KC", "BAL", "BAL", 3)...)
	plays = append(plays, testutil.ScoringPlays(2024, 2, "BAL", "KC", "KC", 21)...)
	plays = append(plays, testutil.ScoringPlays(2024, 2, "BAL", "KC", "BAL", 14)...)

	rows := Link(Aggregate(plays))
	require.Len(t, rows, 4)

	byGame := map[string]map[string]EnrichedStats{}
	for _, r := range rows {
		if byGame[r.GameID] == nil {
			byGame[r.GameID] = map[string]EnrichedStats{}
		}
		byGame[r.GameID][r.TeamWithPossession] = r
	}

	assert.Equal(t, 3, byGame["2024_1_KC_BAL"]["KC"].PointsAllowed)
	assert.Equal(t, 10, byGame["2024_1_KC_BAL"]["BAL"].PointsAllowed)
	assert.Equal(t, 14, byGame["2024_2_BAL_KC"]["KC"].PointsAllowed)
	assert.Equal(t, 21, byGame["2024_2_BAL_KC"]["BAL"].PointsAllowed)

	for id, pair := range byGame {
		a, b := pair["KC"], pair["BAL"]
		assert.Equal(t, a.Points, b.PointsAllowed, id)
		assert.Equal(t, b.Points, a.PointsAllowed, id)
		assert.Equal(t, a.GameTotal, b.GameTotal, id)
	}
}

func TestGameKey_Opponent(t *testing.T) {
	assert.Equal(t, "KC", GameKey{HomeTeam: "KC", AwayTeam: "BAL", TeamWithPossession: "BAL"}.Opponent())
	assert.Equal(t, "BAL", GameKey{HomeTeam: "KC", AwayTeam: "BAL", TeamWithPossession: "KC"}.Opponent())
	assert.Equal(t, "BAL", GameKey{HomeTeam: "KC", AwayTeam: "BAL", TeamWithPossession: "??"}.Opponent())
}
