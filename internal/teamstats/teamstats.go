package teamstats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrNoGames is returned when a team has no completed games to average.
var ErrNoGames = errors.New("teamstats: no games")

// TeamGame is one row of the box-score team table.
type TeamGame struct {
	Team          string  `csv:"team" json:"team"`
	GameID        string  `csv:"gameID" json:"game_id"`
	Season        int     `csv:"season" json:"season"`
	Week          int     `csv:"week" json:"week"`
	Points        float64 `csv:"points" json:"points"`
	TotalYards    float64 `csv:"totalYards" json:"total_yards"`
	RushingYards  float64 `csv:"rushingYards" json:"rushing_yards"`
	PassingYards  float64 `csv:"passingYards" json:"passing_yards"`
	TotalPlays    float64 `csv:"totalPlays" json:"total_plays"`
	Turnovers     float64 `csv:"turnovers" json:"turnovers"`
	YardsPerPlay  float64 `csv:"yardsPerPlay" json:"yards_per_play"`
	RushTD        float64 `csv:"rushTD" json:"rush_td"`
	PassTD        float64 `csv:"passTD" json:"pass_td"`
	DefensiveInts float64 `csv:"defensiveInts" json:"defensive_ints"`
	Sacks         float64 `csv:"sacks" json:"sacks"`
}

// Averages holds per-game means of the box-score columns.
type Averages struct {
	Points        float64 `json:"points"`
	TotalYards    float64 `json:"total_yards"`
	RushingYards  float64 `json:"rushing_yards"`
	PassingYards  float64 `json:"passing_yards"`
	TotalPlays    float64 `json:"total_plays"`
	Turnovers     float64 `json:"turnovers"`
	YardsPerPlay  float64 `json:"yards_per_play"`
	RushTD        float64 `json:"rush_td"`
	PassTD        float64 `json:"pass_td"`
	DefensiveInts float64 `json:"defensive_ints"`
	Sacks         float64 `json:"sacks"`
}

// TeamForm is a team's recent form entering a given week.
type TeamForm struct {
	Team               string   `json:"team"`
	Season             int      `json:"season"`
	BeforeWeek         int      `json:"before_week"`
	Window             int      `json:"window"`
	GamesAnalyzed      int      `json:"games_analyzed"`
	UsedPreviousSeason bool     `json:"used_previous_season"`
	LastN              Averages `json:"last_n"`
	SeasonGames        int      `json:"season_games"`
	SeasonAverages     Averages `json:"season_averages"`
}

// LoadFile reads the team table from a CSV file.
func LoadFile(path string) ([]TeamGame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening team stats %s: %w", path, err)
	}
	defer f.Close()

	games, err := ReadGames(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return games, nil
}

// ReadGames decodes the team table from r.
func ReadGames(r io.Reader) ([]TeamGame, error) {
	var games []TeamGame
	if err := gocsv.Unmarshal(r, &games); err != nil {
		return nil, fmt.Errorf("decoding team stats: %w", err)
	}
	return games, nil
}

// ComputeForm averages a team's last n games before beforeWeek of season.
// When the season has fewer than n completed games, the latest games of the
// previous season fill the window. Season averages fall back to the
// previous season when the current one has no completed games.
// beforeWeek <= 0 includes every week.
func ComputeForm(games []TeamGame, team string, season, beforeWeek, n int) (*TeamForm, error) {
	if n < 1 {
		return nil, fmt.Errorf("window %d must be at least 1", n)
	}

	current := completedGames(games, team, season, beforeWeek)
	previous := completedGames(games, team, season-1, 0)

	recent := tail(current, n)
	usedPrevious := false
	if len(recent) < n && len(previous) > 0 {
		recent = append(tail(previous, n-len(recent)), recent...)
		usedPrevious = true
	}

	if len(recent) == 0 {
		return nil, fmt.Errorf("%s season %d: %w", team, season, ErrNoGames)
	}

	seasonGames := current
	if len(seasonGames) == 0 {
		seasonGames = previous
	}

	return &TeamForm{
		Team:               team,
		Season:             season,
		BeforeWeek:         beforeWeek,
		Window:             n,
		GamesAnalyzed:      len(recent),
		UsedPreviousSeason: usedPrevious,
		LastN:              average(recent),
		SeasonGames:        len(seasonGames),
		SeasonAverages:     average(seasonGames),
	}, nil
}

func completedGames(games []TeamGame, team string, season, beforeWeek int) []TeamGame {
	var out []TeamGame
	for _, g := range games {
		if !strings.EqualFold(g.Team, team) || g.Season != season {
			continue
		}
		if beforeWeek > 0 && g.Week >= beforeWeek {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

func tail(games []TeamGame, n int) []TeamGame {
	if len(games) <= n {
		return append([]TeamGame(nil), games...)
	}
	return append([]TeamGame(nil), games[len(games)-n:]...)
}

func average(games []TeamGame) Averages {
	var sum Averages
	for _, g := range games {
		sum.Points += g.Points
		sum.TotalYards += g.TotalYards
		sum.RushingYards += g.RushingYards
		sum.PassingYards += g.PassingYards
		sum.TotalPlays += g.TotalPlays
		sum.Turnovers += g.Turnovers
		sum.YardsPerPlay += g.YardsPerPlay
		sum.RushTD += g.RushTD
		sum.PassTD += g.PassTD
		sum.DefensiveInts += g.DefensiveInts
		sum.Sacks += g.Sacks
	}

	count := float64(len(games))
	return Averages{
		Points:        safeDiv(sum.Points, count),
		TotalYards:    safeDiv(sum.TotalYards, count),
		RushingYards:  safeDiv(sum.RushingYards, count),
		PassingYards:  safeDiv(sum.PassingYards, count),
		TotalPlays:    safeDiv(sum.TotalPlays, count),
		Turnovers:     safeDiv(sum.Turnovers, count),
		YardsPerPlay:  safeDiv(sum.YardsPerPlay, count),
		RushTD:        safeDiv(sum.RushTD, count),
		PassTD:        safeDiv(sum.PassTD, count),
		DefensiveInts: safeDiv(sum.DefensiveInts, count),
		Sacks:         safeDiv(sum.Sacks, count),
	}
}

// safeDiv performs division with zero check
func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
