package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/testutil"
)

func TestAggregate_RunAndIncompletion(t *testing.T) {
	plays := []pbp.LabeledPlay{
		testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "5 yard run"),
		testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "Pass incomplete"),
	}

	rows := Aggregate(plays)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 2, row.TotalPlays)
	assert.Equal(t, 1, row.Drives)
	assert.Equal(t, 5, row.RushYards)
	assert.Equal(t, 0, row.PassYards)
	assert.Equal(t, 1, row.Incompletions)
	assert.Equal(t, 2.5, row.YardsPerPlay)
}

func TestAggregate_Totals(t *testing.T) {
	plays := []pbp.LabeledPlay{
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 1, "12 yard pass"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 1, "-4 yard pass"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 1, "-7 yard sack"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 1, "Touchdown"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 1, "Extra point is good"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 2, "3 yard run"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 2, "Pass intercepted"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 3, "Fumble, recovered by KC"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 4, "Field goal is good"),
		testutil.Play(2024, 2, "KC", "BAL", "BAL", 4, "Safety"),
	}

	rows := Aggregate(plays)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, 10, row.TotalPlays)
	assert.Equal(t, 8, row.PassYards)
	assert.Equal(t, 3, row.RushYards)
	assert.Equal(t, 4, row.TotalYards, "sack yardage counts toward total only")
	assert.Equal(t, 12, row.Points)
	assert.Equal(t, 1, row.Touchdowns)
	assert.Equal(t, 1, row.Interceptions)
	assert.Equal(t, 1, row.Fumbles)
	assert.Equal(t, 1, row.Safeties)
	assert.Equal(t, 4, row.Drives)
	assert.Equal(t, 2, row.Turnovers)
	assert.Equal(t, 0.4, row.YardsPerPlay)
	assert.Equal(t, 3.0, row.PointsPerPossession)
	assert.Equal(t, 2.5, row.AvgLengthPossession)
	assert.Equal(t, 0.25, row.ScoringEfficiency)
}

func TestAggregate_BlankDriveNumberIsNotADrive(t *testing.T) {
	extra := testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "Extra point is good")
	extra.DriveNumber = nil
	plays := []pbp.LabeledPlay{
		testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "Touchdown"),
		extra,
	}

	rows := Aggregate(plays)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, 2, row.TotalPlays)
	assert.Equal(t, 7, row.Points)
	assert.Equal(t, 1, row.Drives)
	assert.Equal(t, 7.0, row.PointsPerPossession)
	assert.Equal(t, 2.0, row.AvgLengthPossession)
	assert.Equal(t, 1.0, row.ScoringEfficiency)
}

func TestAggregate_AllDrivesBlank(t *testing.T) {
	play := testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "Touchdown")
	play.DriveNumber = nil

	rows := Aggregate([]pbp.LabeledPlay{play})
	require.Len(t, rows, 1)

	assert.Equal(t, 0, rows[0].Drives)
	assert.Equal(t, 6.0, rows[0].PointsPerPossession, "zero drives divide by one")
}

func TestAggregate_GroupsAndOrder(t *testing.T) {
	plays := []pbp.LabeledPlay{
		testutil.Play(2024, 2, "BAL", "KC", "KC", 1, "1 yard run"),
		testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "1 yard run"),
		testutil.Play(2024, 1, "KC", "BAL", "BAL", 1, "1 yard run"),
		testutil.Play(2023, 17, "KC", "LV", "LV", 1, "1 yard run"),
		testutil.Play(2024, 1, "KC", "BAL", "KC", 2, "1 yard run"),
	}

	rows := Aggregate(plays)
	require.Len(t, rows, 4)

	keys := make([]GameKey, len(rows))
	for i, r := range rows {
		keys[i] = r.GameKey
	}
	assert.Equal(t, []GameKey{
		{2023, 17, "KC", "LV", "LV"},
		{2024, 1, "KC", "BAL", "BAL"},
		{2024, 1, "KC", "BAL", "KC"},
		{2024, 2, "BAL", "KC", "KC"},
	}, keys)
	assert.Equal(t, 2, rows[2].TotalPlays)
	assert.Equal(t, 2, rows[2].Drives)
}

func TestAggregate_InputOrderIndependent(t *testing.T) {
	plays := []pbp.LabeledPlay{
		testutil.Play(2024, 1, "KC", "BAL", "KC", 1, "5 yard run"),
		testutil.Play(2024, 1, "KC", "BAL", "BAL", 1, "9 yard pass"),
		testutil.Play(2024, 1, "KC", "BAL", "KC", 2, "Touchdown"),
		testutil.Play(2024, 1, "KC", "BAL", "BAL", 3, "Pass incomplete"),
	}
	reversed := make([]pbp.LabeledPlay, len(plays))
	for i := range plays {
		reversed[len(plays)-1-i] = plays[i]
	}

	assert.Equal(t, Aggregate(plays), Aggregate(reversed))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestAccumulatorFinalize_ZeroDenominators(t *testing.T) {
	acc := &accumulator{stats: TeamGameStats{}, drives: map[int]struct{}{}}

	row := acc.finalize()

	assert.Equal(t, 0.0, row.YardsPerPlay)
	assert.Equal(t, 0.0, row.PointsPerPossession)
	assert.Equal(t, 0.0, row.AvgLengthPossession)
	assert.Equal(t, 0.0, row.ScoringEfficiency)
}
