package features

import (
	"sort"

	"github.com/fortuna/gridiron/internal/pbp"
)

// accumulator collects one group's running totals before finalization.
type accumulator struct {
	stats  TeamGameStats
	drives map[int]struct{}
}

func (a *accumulator) add(play pbp.LabeledPlay) {
	p := play.Parsed
	s := &a.stats

	s.TotalPlays++
	s.TotalYards += p.Yards
	s.Points += p.Points

	switch p.Type {
	case pbp.PlayTypePass:
		s.PassYards += p.Yards
	case pbp.PlayTypeRun:
		s.RushYards += p.Yards
	case pbp.PlayTypeIncompletePass:
		s.Incompletions++
	case pbp.PlayTypeInterception:
		s.Interceptions++
	case pbp.PlayTypeFumble:
		s.Fumbles++
	case pbp.PlayTypeTouchdown:
		s.Touchdowns++
	case pbp.PlayTypeSafety:
		s.Safeties++
	}

	// blank drive numbers are not a drive
	if play.DriveNumber != nil {
		a.drives[*play.DriveNumber] = struct{}{}
	}
}

func (a *accumulator) finalize() TeamGameStats {
	s := a.stats
	s.Drives = len(a.drives)

	drives := float64(atLeastOne(s.Drives))
	s.YardsPerPlay = float64(s.TotalYards) / float64(atLeastOne(s.TotalPlays))
	s.PointsPerPossession = float64(s.Points) / drives
	s.AvgLengthPossession = float64(s.TotalPlays) / drives
	s.Turnovers = s.Interceptions + s.Fumbles
	s.ScoringEfficiency = float64(s.Touchdowns) / drives

	return s
}

// Aggregate rolls labeled plays up to one row per (game, possessing team).
// Rows come back ordered by GameKey so the result does not depend on the
// order plays were read in.
func Aggregate(plays []pbp.LabeledPlay) []TeamGameStats {
	groups := make(map[GameKey]*accumulator)

	for _, play := range plays {
		key := GameKey{
			Season:             play.Season,
			Week:               play.Week,
			HomeTeam:           play.HomeTeam,
			AwayTeam:           play.AwayTeam,
			TeamWithPossession: play.TeamWithPossession,
		}

		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				stats:  TeamGameStats{GameKey: key},
				drives: make(map[int]struct{}),
			}
			groups[key] = acc
		}
		acc.add(play)
	}

	rows := make([]TeamGameStats, 0, len(groups))
	for _, acc := range groups {
		rows = append(rows, acc.finalize())
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].GameKey.less(rows[j].GameKey)
	})

	return rows
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
