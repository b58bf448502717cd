// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fortuna/gridiron/internal/pbp"
)

// PlayRecordFixture creates a play record with sensible defaults.
func PlayRecordFixture(overrides ...func(*pbp.PlayRecord)) pbp.PlayRecord {
	rec := pbp.PlayRecord{
		Season:             2024,
		Week:               1,
		HomeTeam:           "KC",
		AwayTeam:           "BAL",
		TeamWithPossession: "KC",
		DriveNumber:        pbp.Drive(1),
		PlayOutcome:        "1 yard run",
	}

	for _, override := range overrides {
		override(&rec)
	}

	return rec
}

// Play creates a labeled play for team in the given game, parsing outcome.
func Play(season, week int, home, away, team string, drive int, outcome string) pbp.LabeledPlay {
	rec := PlayRecordFixture(func(r *pbp.PlayRecord) {
		r.Season = season
		r.Week = week
		r.HomeTeam = home
		r.AwayTeam = away
		r.TeamWithPossession = team
		r.DriveNumber = pbp.Drive(drive)
		r.PlayOutcome = outcome
	})
	return pbp.LabeledPlay{PlayRecord: rec, Parsed: pbp.ParseOutcome(outcome)}
}

// ScoringPlays returns plays giving team exactly points in the game, built
// from touchdowns, field goals and extra points, one drive per score.
func ScoringPlays(season, week int, home, away, team string, points int) []pbp.LabeledPlay {
	var plays []pbp.LabeledPlay
	drive := 1
	for points >= 6 {
		plays = append(plays, Play(season, week, home, away, team, drive, "Touchdown"))
		points -= 6
		drive++
	}
	for points >= 3 {
		plays = append(plays, Play(season, week, home, away, team, drive, "Field goal is good"))
		points -= 3
		drive++
	}
	for points >= 1 {
		plays = append(plays, Play(season, week, home, away, team, drive, "Extra point is good"))
		points--
		drive++
	}
	if len(plays) == 0 {
		plays = append(plays, Play(season, week, home, away, team, drive, "Punt"))
	}
	return plays
}

// PlaysCSV renders records in the play-by-play input format. A nil
// DriveNumber is written as an empty cell.
func PlaysCSV(records []pbp.PlayRecord) string {
	var b strings.Builder
	b.WriteString("Season,Week,HomeTeam,AwayTeam,TeamWithPossession,DriveNumber,PlayOutcome\n")
	for _, r := range records {
		drive := ""
		if r.DriveNumber != nil {
			drive = strconv.Itoa(*r.DriveNumber)
		}
		fmt.Fprintf(&b, "%d,%d,%s,%s,%s,%s,%q\n",
			r.Season, r.Week, r.HomeTeam, r.AwayTeam, r.TeamWithPossession, drive, r.PlayOutcome)
	}
	return b.String()
}
