package features

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
)

var baseColumns = []string{
	"Season", "Week", "HomeTeam", "AwayTeam", "TeamWithPossession",
	"total_plays", "pass_yards", "rush_yards", "total_yards", "points",
	"incompletions", "interceptions", "fumbles", "touchdowns", "safeties", "drives",
	"yards_per_play", "points_per_possession", "avg_length_possession", "turnovers",
	"scoring_efficiency",
	"Opponent", "game_id", "points_allowed", "game_total",
}

// Columns returns the output header for the given windows.
func Columns(windows []int) []string {
	cols := make([]string, 0, len(baseColumns)+len(windows)*len(FormMetrics))
	cols = append(cols, baseColumns...)
	for _, n := range windows {
		for _, m := range FormMetrics {
			cols = append(cols, m.Column(n))
		}
	}
	return cols
}

// WriteCSV writes the feature table. Every row must carry averages for
// exactly the given windows, in the same order.
func WriteCSV(w io.Writer, rows []FormRow, windows []int) error {
	out := gocsv.DefaultCSVWriter(w)

	if err := out.Write(Columns(windows)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		record, err := formatRow(row, windows)
		if err != nil {
			return err
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("write row %s/%s: %w", row.GameID, row.TeamWithPossession, err)
		}
	}

	out.Flush()
	return out.Error()
}

// WriteFile writes the table to a temporary file next to path and renames
// it into place, so a failed write never leaves a partial table behind.
func WriteFile(path string, rows []FormRow, windows []int) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, rows, windows); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}

func formatRow(row FormRow, windows []int) ([]string, error) {
	if len(row.Rolling) != len(windows) {
		return nil, fmt.Errorf("row %s/%s has %d windows, want %d",
			row.GameID, row.TeamWithPossession, len(row.Rolling), len(windows))
	}

	itoa := strconv.Itoa
	record := []string{
		itoa(row.Season), itoa(row.Week), row.HomeTeam, row.AwayTeam, row.TeamWithPossession,
		itoa(row.TotalPlays), itoa(row.PassYards), itoa(row.RushYards), itoa(row.TotalYards), itoa(row.Points),
		itoa(row.Incompletions), itoa(row.Interceptions), itoa(row.Fumbles), itoa(row.Touchdowns),
		itoa(row.Safeties), itoa(row.Drives),
		formatFloat(row.YardsPerPlay), formatFloat(row.PointsPerPossession),
		formatFloat(row.AvgLengthPossession), itoa(row.Turnovers), formatFloat(row.ScoringEfficiency),
		row.Opponent, row.GameID, itoa(row.PointsAllowed), itoa(row.GameTotal),
	}

	for i, n := range windows {
		ra := row.Rolling[i]
		if ra.Window != n {
			return nil, fmt.Errorf("row %s/%s window %d out of order", row.GameID, row.TeamWithPossession, ra.Window)
		}
		for _, v := range ra.Values {
			record = append(record, formatFloat(v))
		}
	}

	return record, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
