package features

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned for rolling windows smaller than one game.
var ErrInvalidWindow = errors.New("rolling window must be at least 1")

// DefaultWindow is the number of games in the recent-form average.
const DefaultWindow = 3

// GameKey identifies one team's side of one game.
type GameKey struct {
	Season             int    `json:"season"`
	Week               int    `json:"week"`
	HomeTeam           string `json:"home_team"`
	AwayTeam           string `json:"away_team"`
	TeamWithPossession string `json:"team"`
}

// GameID returns the key shared by both team rows of a game.
func (k GameKey) GameID() string {
	return GameID(k.Season, k.Week, k.HomeTeam, k.AwayTeam)
}

// Opponent returns the team on the other side of the ball.
func (k GameKey) Opponent() string {
	if k.TeamWithPossession == k.AwayTeam {
		return k.HomeTeam
	}
	return k.AwayTeam
}

func (k GameKey) less(o GameKey) bool {
	if k.Season != o.Season {
		return k.Season < o.Season
	}
	if k.Week != o.Week {
		return k.Week < o.Week
	}
	if k.HomeTeam != o.HomeTeam {
		return k.HomeTeam < o.HomeTeam
	}
	if k.AwayTeam != o.AwayTeam {
		return k.AwayTeam < o.AwayTeam
	}
	return k.TeamWithPossession < o.TeamWithPossession
}

// GameID builds the human-readable game identifier, e.g. "2024_1_KC_BAL".
func GameID(season, week int, home, away string) string {
	return fmt.Sprintf("%d_%d_%s_%s", season, week, home, away)
}

// TeamGameStats holds one team's offensive totals for one game.
type TeamGameStats struct {
	GameKey

	TotalPlays    int `json:"total_plays"`
	PassYards     int `json:"pass_yards"`
	RushYards     int `json:"rush_yards"`
	TotalYards    int `json:"total_yards"`
	Points        int `json:"points"`
	Incompletions int `json:"incompletions"`
	Interceptions int `json:"interceptions"`
	Fumbles       int `json:"fumbles"`
	Touchdowns    int `json:"touchdowns"`
	Safeties      int `json:"safeties"`
	Drives        int `json:"drives"`

	YardsPerPlay        float64 `json:"yards_per_play"`
	PointsPerPossession float64 `json:"points_per_possession"`
	AvgLengthPossession float64 `json:"avg_length_possession"`
	Turnovers           int     `json:"turnovers"`
	ScoringEfficiency   float64 `json:"scoring_efficiency"`
}

// EnrichedStats adds the defensive side of the game to TeamGameStats.
type EnrichedStats struct {
	TeamGameStats

	Opponent      string `json:"opponent"`
	GameID        string `json:"game_id"`
	PointsAllowed int    `json:"points_allowed"`
	GameTotal     int    `json:"game_total"`

	// OpponentMissing is set when no row for the opponent existed and
	// PointsAllowed fell back to the team's own points.
	OpponentMissing bool `json:"-"`
}

// Metric names a column tracked by the recent-form averages.
type Metric string

const (
	MetricPassYards           Metric = "pass_yards"
	MetricRushYards           Metric = "rush_yards"
	MetricTotalYards          Metric = "total_yards"
	MetricYardsPerPlay        Metric = "yards_per_play"
	MetricPointsPerPossession Metric = "points_per_possession"
	MetricTurnovers           Metric = "turnovers"
	MetricScoringEfficiency   Metric = "scoring_efficiency"
	MetricPoints              Metric = "points"
	MetricPointsAllowed       Metric = "points_allowed"
)

// FormMetrics is the ordered set of metrics averaged per window.
var FormMetrics = []Metric{
	MetricPassYards,
	MetricRushYards,
	MetricTotalYards,
	MetricYardsPerPlay,
	MetricPointsPerPossession,
	MetricTurnovers,
	MetricScoringEfficiency,
	MetricPoints,
	MetricPointsAllowed,
}

// Value extracts the metric from a row.
func (m Metric) Value(row EnrichedStats) float64 {
	switch m {
	case MetricPassYards:
		return float64(row.PassYards)
	case MetricRushYards:
		return float64(row.RushYards)
	case MetricTotalYards:
		return float64(row.TotalYards)
	case MetricYardsPerPlay:
		return row.YardsPerPlay
	case MetricPointsPerPossession:
		return row.PointsPerPossession
	case MetricTurnovers:
		return float64(row.Turnovers)
	case MetricScoringEfficiency:
		return row.ScoringEfficiency
	case MetricPoints:
		return float64(row.Points)
	case MetricPointsAllowed:
		return float64(row.PointsAllowed)
	}
	return 0
}

// Column returns the output column name for the metric over a window.
func (m Metric) Column(window int) string {
	return fmt.Sprintf("%s_last%d", m, window)
}

// RollingAverages holds the trailing means of FormMetrics for one window,
// indexed in FormMetrics order.
type RollingAverages struct {
	Window int       `json:"window"`
	Values []float64 `json:"values"`
}

// FormRow is a feature-table row: enriched stats plus recent form.
type FormRow struct {
	EnrichedStats
	Rolling []RollingAverages `json:"rolling"`
}

// Average returns the trailing mean of metric over window, if computed.
func (r FormRow) Average(metric Metric, window int) (float64, bool) {
	idx := metricIndex(metric)
	if idx < 0 {
		return 0, false
	}
	for _, ra := range r.Rolling {
		if ra.Window == window {
			return ra.Values[idx], true
		}
	}
	return 0, false
}

// RollingColumns flattens the averages into column name -> value.
func (r FormRow) RollingColumns() map[string]float64 {
	cols := make(map[string]float64, len(r.Rolling)*len(FormMetrics))
	for _, ra := range r.Rolling {
		for i, m := range FormMetrics {
			cols[m.Column(ra.Window)] = ra.Values[i]
		}
	}
	return cols
}

func metricIndex(metric Metric) int {
	for i, m := range FormMetrics {
		if m == metric {
			return i
		}
	}
	return -1
}
