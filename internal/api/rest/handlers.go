package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/odds"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/internal/teamstats"
)

const (
	defaultFeatureLimit = 20
	maxFeatureLimit     = 500
	defaultTeamStatsN   = 5
)

// FeatureStore reads persisted feature rows.
type FeatureStore interface {
	GetTeamFeatures(ctx context.Context, team string, season, limit int) ([]features.FormRow, error)
	GetGameFeatures(ctx context.Context, gameID string) ([]features.FormRow, error)
	LatestTeamForm(ctx context.Context, team string) (*features.FormRow, error)
}

// FormCache serves the latest form rows written by the last build.
type FormCache interface {
	GetLatestForm(ctx context.Context, team string) (*features.FormRow, error)
	LastBuild(ctx context.Context) (*pipeline.Result, error)
}

// HealthChecker is implemented by the database and Redis clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the backends the handlers read from. Nil members
// disable the routes that need them.
type Dependencies struct {
	Features      FeatureStore
	Cache         FormCache
	Builds        BuildService
	OddsCacheFile string
	TeamStatsFile string
	HealthChecks  map[string]HealthChecker
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	features      FeatureStore
	cache         FormCache
	oddsCacheFile string
	teamStatsFile string
	healthChecks  map[string]HealthChecker
	now           func() time.Time
	logger        logrus.FieldLogger
}

// NewHandler creates a new handler
func NewHandler(deps Dependencies, logger logrus.FieldLogger) *Handler {
	return &Handler{
		features:      deps.Features,
		cache:         deps.Cache,
		oddsCacheFile: deps.OddsCacheFile,
		teamStatsFile: deps.TeamStatsFile,
		healthChecks:  deps.HealthChecks,
		now:           time.Now,
		logger:        logger,
	}
}

// featurePayload is a feature row with its averages keyed by column name.
type featurePayload struct {
	features.FormRow
	Averages map[string]float64 `json:"averages"`
}

func toPayload(row features.FormRow) featurePayload {
	return featurePayload{FormRow: row, Averages: row.RollingColumns()}
}

func toPayloads(rows []features.FormRow) []featurePayload {
	out := make([]featurePayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPayload(row))
	}
	return out
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.healthChecks))

	for name, checker := range h.healthChecks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "gridiron",
		"version": "1.0.0",
		"checks":  checks,
	})
}

// GetTeamFeatures returns a team's feature rows, newest first
func (h *Handler) GetTeamFeatures(w http.ResponseWriter, r *http.Request) {
	if h.features == nil {
		respondError(w, http.StatusServiceUnavailable, "Feature store not configured", nil)
		return
	}

	team := teamParam(r)
	season, err := queryInt(r, "season", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid season", err)
		return
	}
	limit, err := queryInt(r, "limit", defaultFeatureLimit)
	if err != nil || limit < 1 {
		respondError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	if limit > maxFeatureLimit {
		limit = maxFeatureLimit
	}

	rows, err := h.features.GetTeamFeatures(r.Context(), team, season, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch team features", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":     team,
		"features": toPayloads(rows),
		"count":    len(rows),
	})
}

// GetTeamForm returns the team's latest form row
func (h *Handler) GetTeamForm(w http.ResponseWriter, r *http.Request) {
	team := teamParam(r)

	row, source, err := h.latestForm(r.Context(), team)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch team form", err)
		return
	}
	if row == nil {
		respondError(w, http.StatusNotFound, "No form found for team", fmt.Errorf("team %s", team))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":   team,
		"source": source,
		"form":   toPayload(*row),
	})
}

// GetGameFeatures returns both team rows of a game
func (h *Handler) GetGameFeatures(w http.ResponseWriter, r *http.Request) {
	if h.features == nil {
		respondError(w, http.StatusServiceUnavailable, "Feature store not configured", nil)
		return
	}

	gameID := mux.Vars(r)["gameID"]
	rows, err := h.features.GetGameFeatures(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch game features", err)
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "Game not found", fmt.Errorf("game %s", gameID))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id":  gameID,
		"features": toPayloads(rows),
	})
}

// GetMatchup returns the latest form of both teams plus consensus odds
// when the odds cache has the game.
func (h *Handler) GetMatchup(w http.ResponseWriter, r *http.Request) {
	home := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("home")))
	away := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("away")))
	if home == "" || away == "" {
		respondError(w, http.StatusBadRequest, "home and away are required", nil)
		return
	}

	response := map[string]interface{}{
		"home_team": home,
		"away_team": away,
	}

	for side, team := range map[string]string{"home": home, "away": away} {
		row, _, err := h.latestForm(r.Context(), team)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch team form", err)
			return
		}
		if row != nil {
			response[side+"_form"] = toPayload(*row)
		}
	}

	if h.oddsCacheFile != "" {
		if consensus, age, err := h.consensusOdds(r.URL.Query().Get("home_name"), r.URL.Query().Get("away_name"), home, away); err == nil {
			response["odds"] = consensus
			response["odds_age_days"] = age
		} else if !errors.Is(err, odds.ErrGameNotFound) {
			h.logger.WithError(err).Warn("odds cache unavailable")
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// GetTeamStatsForm returns last-N and season averages from the team table
func (h *Handler) GetTeamStatsForm(w http.ResponseWriter, r *http.Request) {
	if h.teamStatsFile == "" {
		respondError(w, http.StatusServiceUnavailable, "Team stats table not configured", nil)
		return
	}

	team := teamParam(r)
	season, err := queryInt(r, "season", 0)
	if err != nil || season == 0 {
		respondError(w, http.StatusBadRequest, "season is required", err)
		return
	}
	week, err := queryInt(r, "week", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid week", err)
		return
	}
	n, err := queryInt(r, "n", defaultTeamStatsN)
	if err != nil || n < 1 {
		respondError(w, http.StatusBadRequest, "Invalid n", err)
		return
	}

	games, err := teamstats.LoadFile(h.teamStatsFile)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load team stats", err)
		return
	}

	form, err := teamstats.ComputeForm(games, team, season, week, n)
	if errors.Is(err, teamstats.ErrNoGames) {
		respondError(w, http.StatusNotFound, "No games found for team", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute form", err)
		return
	}

	respondJSON(w, http.StatusOK, form)
}

// latestForm reads the cache first and falls back to Postgres.
func (h *Handler) latestForm(ctx context.Context, team string) (*features.FormRow, string, error) {
	if h.cache != nil {
		row, err := h.cache.GetLatestForm(ctx, team)
		if err == nil {
			return row, "redis", nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.WithError(err).WithField("team", team).Warn("form cache read failed")
		}
	}

	if h.features == nil {
		return nil, "", nil
	}

	row, err := h.features.LatestTeamForm(ctx, team)
	return row, "postgres", err
}

// consensusOdds looks the game up by full team names when given, else by
// the codes.
func (h *Handler) consensusOdds(homeName, awayName, home, away string) (*odds.ConsensusOdds, int, error) {
	c, err := odds.LoadCache(h.oddsCacheFile)
	if err != nil {
		return nil, 0, err
	}

	if homeName == "" {
		homeName = home
	}
	if awayName == "" {
		awayName = away
	}

	game, err := c.FindGame(homeName, awayName)
	if err != nil {
		return nil, 0, err
	}
	return odds.Consensus(game), c.Age(h.now()), nil
}

func teamParam(r *http.Request) string {
	return strings.ToUpper(mux.Vars(r)["team"])
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
