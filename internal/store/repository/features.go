package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/internal/store"
)

// FeatureRepository handles team_game_features data access
type FeatureRepository struct {
	db *store.Database
}

var _ pipeline.Sink = (*FeatureRepository)(nil)

// NewFeatureRepository creates a new feature repository
func NewFeatureRepository(db *store.Database) *FeatureRepository {
	return &FeatureRepository{db: db}
}

var featureColumns = []string{
	"game_id", "team", "season", "week", "home_team", "away_team", "opponent",
	"total_plays", "pass_yards", "rush_yards", "total_yards", "points",
	"incompletions", "interceptions", "fumbles", "touchdowns", "safeties", "drives",
	"yards_per_play", "points_per_possession", "avg_length_possession", "turnovers",
	"scoring_efficiency", "points_allowed", "game_total", "opponent_missing", "rolling",
}

const selectFeatures = `
	SELECT game_id, team, season, week, home_team, away_team, opponent,
		total_plays, pass_yards, rush_yards, total_yards, points,
		incompletions, interceptions, fumbles, touchdowns, safeties, drives,
		yards_per_play, points_per_possession, avg_length_possession, turnovers,
		scoring_efficiency, points_allowed, game_total, opponent_missing, rolling
	FROM team_game_features
`

// Name implements pipeline.Sink.
func (r *FeatureRepository) Name() string {
	return "postgres"
}

// Write implements pipeline.Sink.
func (r *FeatureRepository) Write(ctx context.Context, result *pipeline.Result, rows []features.FormRow) error {
	_, err := r.ReplaceFeatures(ctx, result.JobID, rows)
	return err
}

// ReplaceFeatures swaps in the rows for every game they cover inside one
// transaction. Games absent from rows are left untouched.
func (r *FeatureRepository) ReplaceFeatures(ctx context.Context, buildID string, rows []features.FormRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM team_game_features WHERE game_id = ANY($1)`,
		pq.Array(gameIDs(rows)),
	); err != nil {
		return 0, fmt.Errorf("clearing games: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("team_game_features", append(featureColumns, "build_id")...))
	if err != nil {
		return 0, fmt.Errorf("preparing copy: %w", err)
	}

	for _, row := range rows {
		rolling, err := json.Marshal(row.Rolling)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("encoding rolling averages: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			row.GameID, row.TeamWithPossession, row.Season, row.Week, row.HomeTeam, row.AwayTeam, row.Opponent,
			row.TotalPlays, row.PassYards, row.RushYards, row.TotalYards, row.Points,
			row.Incompletions, row.Interceptions, row.Fumbles, row.Touchdowns, row.Safeties, row.Drives,
			row.YardsPerPlay, row.PointsPerPossession, row.AvgLengthPossession, row.Turnovers,
			row.ScoringEfficiency, row.PointsAllowed, row.GameTotal, row.OpponentMissing, string(rolling),
			buildID,
		); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copying %s/%s: %w", row.GameID, row.TeamWithPossession, err)
		}
	}

	// flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("closing copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return len(rows), nil
}

// GetTeamFeatures returns a team's rows, newest first. season 0 means every
// season.
func (r *FeatureRepository) GetTeamFeatures(ctx context.Context, team string, season, limit int) ([]features.FormRow, error) {
	query := selectFeatures + `
		WHERE team = $1 AND ($2 = 0 OR season = $2)
		ORDER BY season DESC, week DESC
		LIMIT $3
	`

	rows, err := r.db.DB().QueryContext(ctx, query, team, season, limit)
	if err != nil {
		return nil, fmt.Errorf("querying team features: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// GetGameFeatures returns both team rows of a game.
func (r *FeatureRepository) GetGameFeatures(ctx context.Context, gameID string) ([]features.FormRow, error) {
	query := selectFeatures + `
		WHERE game_id = $1
		ORDER BY team
	`

	rows, err := r.db.DB().QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying game features: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// LatestTeamForm returns the team's most recent row, or nil if the team has
// none.
func (r *FeatureRepository) LatestTeamForm(ctx context.Context, team string) (*features.FormRow, error) {
	query := selectFeatures + `
		WHERE team = $1
		ORDER BY season DESC, week DESC
		LIMIT 1
	`

	row, err := scanFeature(r.db.DB().QueryRowContext(ctx, query, team))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest form: %w", err)
	}
	return row, nil
}

func scanFeatures(rows *sql.Rows) ([]features.FormRow, error) {
	var out []features.FormRow
	for rows.Next() {
		row, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feature row: %w", err)
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

func scanFeature(scanner interface {
	Scan(dest ...interface{}) error
}) (*features.FormRow, error) {
	row := &features.FormRow{}
	var rolling []byte

	err := scanner.Scan(
		&row.GameID, &row.TeamWithPossession, &row.Season, &row.Week, &row.HomeTeam, &row.AwayTeam, &row.Opponent,
		&row.TotalPlays, &row.PassYards, &row.RushYards, &row.TotalYards, &row.Points,
		&row.Incompletions, &row.Interceptions, &row.Fumbles, &row.Touchdowns, &row.Safeties, &row.Drives,
		&row.YardsPerPlay, &row.PointsPerPossession, &row.AvgLengthPossession, &row.Turnovers,
		&row.ScoringEfficiency, &row.PointsAllowed, &row.GameTotal, &row.OpponentMissing, &rolling,
	)
	if err != nil {
		return nil, err
	}

	if len(rolling) > 0 {
		if err := json.Unmarshal(rolling, &row.Rolling); err != nil {
			return nil, fmt.Errorf("decoding rolling averages: %w", err)
		}
	}
	return row, nil
}

func gameIDs(rows []features.FormRow) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if !seen[row.GameID] {
			seen[row.GameID] = true
			ids = append(ids, row.GameID)
		}
	}
	return ids
}
