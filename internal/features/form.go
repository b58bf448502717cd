package features

import (
	"fmt"
	"sort"
)

// ComputeForm adds trailing averages over the last n games for each team.
func ComputeForm(rows []EnrichedStats, n int) ([]FormRow, error) {
	return ComputeFormWindows(rows, []int{n})
}

// ComputeFormWindows adds one set of trailing averages per window.
//
// Rows are sorted by (team, season, week) and each team is scanned on its
// own. The window ends at and includes the current game; early-season rows
// average whatever games are available.
func ComputeFormWindows(rows []EnrichedStats, windows []int) ([]FormRow, error) {
	if len(windows) == 0 {
		windows = []int{DefaultWindow}
	}
	for _, n := range windows {
		if n < 1 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, n)
		}
	}

	sorted := make([]EnrichedStats, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TeamWithPossession != b.TeamWithPossession {
			return a.TeamWithPossession < b.TeamWithPossession
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		return a.GameID < b.GameID
	})

	out := make([]FormRow, len(sorted))
	for i, row := range sorted {
		out[i] = FormRow{
			EnrichedStats: row,
			Rolling:       make([]RollingAverages, 0, len(windows)),
		}
	}

	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].TeamWithPossession == sorted[start].TeamWithPossession {
			end++
		}
		for _, n := range windows {
			scanPartition(sorted[start:end], out[start:end], n)
		}
		start = end
	}

	return out, nil
}

// scanPartition fills one window's averages for a single team's games.
func scanPartition(games []EnrichedStats, out []FormRow, n int) {
	series := make([][]float64, len(FormMetrics))
	for m, metric := range FormMetrics {
		series[m] = make([]float64, len(games))
		for i, g := range games {
			series[m][i] = metric.Value(g)
		}
	}

	for i := range games {
		from := i - n + 1
		if from < 0 {
			from = 0
		}
		count := float64(i - from + 1)

		values := make([]float64, len(FormMetrics))
		for m := range FormMetrics {
			var sum float64
			for _, v := range series[m][from : i+1] {
				sum += v
			}
			values[m] = sum / count
		}

		out[i].Rolling = append(out[i].Rolling, RollingAverages{Window: n, Values: values})
	}
}

// LatestByTeam returns each team's most recent row from a form table.
func LatestByTeam(rows []FormRow) map[string]FormRow {
	latest := make(map[string]FormRow)
	for _, row := range rows {
		cur, ok := latest[row.TeamWithPossession]
		if !ok || cur.Season < row.Season || (cur.Season == row.Season && cur.Week <= row.Week) {
			latest[row.TeamWithPossession] = row
		}
	}
	return latest
}
