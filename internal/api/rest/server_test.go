package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/pipeline"
)

type fakeFeatures struct {
	byTeam    map[string][]features.FormRow
	byGame    map[string][]features.FormRow
	lastLimit int
	err       error
}

func (f *fakeFeatures) GetTeamFeatures(ctx context.Context, team string, season, limit int) ([]features.FormRow, error) {
	f.lastLimit = limit
	return f.byTeam[team], f.err
}

func (f *fakeFeatures) GetGameFeatures(ctx context.Context, gameID string) ([]features.FormRow, error) {
	return f.byGame[gameID], f.err
}

func (f *fakeFeatures) LatestTeamForm(ctx context.Context, team string) (*features.FormRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	rows := f.byTeam[team]
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type fakeCache struct {
	forms map[string]features.FormRow
	last  *pipeline.Result
}

func (c *fakeCache) GetLatestForm(ctx context.Context, team string) (*features.FormRow, error) {
	row, ok := c.forms[team]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &row, nil
}

func (c *fakeCache) LastBuild(ctx context.Context) (*pipeline.Result, error) {
	if c.last == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.last, nil
}

type fakeBuilds struct {
	req     pipeline.Request
	err     error
	summary *pipeline.StatusSummary
}

func (b *fakeBuilds) Enqueue(ctx context.Context, req pipeline.Request) (*pipeline.Job, error) {
	b.req = req
	if b.err != nil {
		return nil, b.err
	}
	return &pipeline.Job{JobID: "job-1", Status: pipeline.JobStatusQueued, ProgressTotal: 6}, nil
}

func (b *fakeBuilds) GetStatus(ctx context.Context) (*pipeline.StatusSummary, error) {
	return b.summary, b.err
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func formRow(team string, season, week, points int) features.FormRow {
	key := features.GameKey{Season: season, Week: week, HomeTeam: "KC", AwayTeam: "BAL", TeamWithPossession: team}
	values := make([]float64, len(features.FormMetrics))
	values[7] = float64(points)
	return features.FormRow{
		EnrichedStats: features.EnrichedStats{
			TeamGameStats: features.TeamGameStats{GameKey: key, Points: points},
			GameID:        key.GameID(),
		},
		Rolling: []features.RollingAverages{{Window: 3, Values: values}},
	}
}

func newTestServer(t *testing.T, opts Options, deps Dependencies) http.Handler {
	t.Helper()
	s := NewServer(opts, deps, logging.Discard())
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		checkErr   error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"degraded", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Options{}, Dependencies{
				HealthChecks: map[string]HealthChecker{
					"postgres": checkerFunc(func(context.Context) error { return tt.checkErr }),
				},
			})

			rec, body := do(t, h, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "gridiron", body["service"])
		})
	}
}

func TestGetTeamFeatures(t *testing.T) {
	store := &fakeFeatures{byTeam: map[string][]features.FormRow{
		"KC": {formRow("KC", 2024, 2, 24), formRow("KC", 2024, 1, 10)},
	}}
	h := newTestServer(t, Options{}, Dependencies{Features: store})

	rec, body := do(t, h, http.MethodGet, "/api/v1/teams/kc/features?limit=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KC", body["team"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, maxFeatureLimit, store.lastLimit)

	rows := body["features"].([]interface{})
	first := rows[0].(map[string]interface{})
	assert.Equal(t, "2024_2_KC_BAL", first["game_id"])
	assert.Equal(t, float64(24), first["averages"].(map[string]interface{})["points_last3"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/teams/KC/features?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/teams/KC/features?season=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTeamFeatures_NotConfigured(t *testing.T) {
	h := newTestServer(t, Options{}, Dependencies{})
	rec, _ := do(t, h, http.MethodGet, "/api/v1/teams/KC/features", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetTeamForm(t *testing.T) {
	store := &fakeFeatures{byTeam: map[string][]features.FormRow{
		"KC":  {formRow("KC", 2024, 2, 24)},
		"BAL": {formRow("BAL", 2024, 1, 17)},
	}}
	fc := &fakeCache{forms: map[string]features.FormRow{"KC": formRow("KC", 2024, 3, 31)}}
	h := newTestServer(t, Options{}, Dependencies{Features: store, Cache: fc})

	tests := []struct {
		team       string
		wantStatus int
		wantSource string
		wantWeek   float64
	}{
		{"KC", http.StatusOK, "redis", 3},
		{"BAL", http.StatusOK, "postgres", 1},
		{"NYJ", http.StatusNotFound, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.team, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, "/api/v1/teams/"+tt.team+"/form", "")
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantSource, body["source"])
			assert.Equal(t, tt.wantWeek, body["form"].(map[string]interface{})["week"])
		})
	}
}

func TestGetGameFeatures(t *testing.T) {
	store := &fakeFeatures{byGame: map[string][]features.FormRow{
		"2024_1_KC_BAL": {formRow("BAL", 2024, 1, 17), formRow("KC", 2024, 1, 10)},
	}}
	h := newTestServer(t, Options{}, Dependencies{Features: store})

	rec, body := do(t, h, http.MethodGet, "/api/v1/games/2024_1_KC_BAL/features", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["features"], 2)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/games/2024_9_KC_DEN/features", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = errors.New("db down")
	rec, _ = do(t, h, http.MethodGet, "/api/v1/games/2024_1_KC_BAL/features", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

const oddsJSON = `{
  "last_updated": "2024-09-01T12:00:00Z",
  "games": [{
    "id": "g1",
    "home_team": "Kansas City Chiefs",
    "away_team": "Baltimore Ravens",
    "bookmakers": [{
      "key": "draftkings",
      "markets": [
        {"key": "h2h", "outcomes": [{"name": "Kansas City Chiefs", "price": -150}, {"name": "Baltimore Ravens", "price": 130}]},
        {"key": "spreads", "outcomes": [{"name": "Kansas City Chiefs", "price": -110, "point": -3.5}]}
      ]
    }]
  }]
}`

func TestGetMatchup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nfl_odds.json")
	require.NoError(t, os.WriteFile(path, []byte(oddsJSON), 0o644))

	store := &fakeFeatures{byTeam: map[string][]features.FormRow{
		"KC":  {formRow("KC", 2024, 2, 24)},
		"BAL": {formRow("BAL", 2024, 1, 17)},
	}}
	h := newTestServer(t, Options{}, Dependencies{Features: store, OddsCacheFile: path})

	rec, body := do(t, h, http.MethodGet, "/api/v1/matchups?home=kc&away=bal&home_name=chiefs&away_name=ravens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KC", body["home_team"])
	assert.Contains(t, body, "home_form")
	assert.Contains(t, body, "away_form")

	odds := body["odds"].(map[string]interface{})
	assert.Equal(t, -3.5, odds["spread"])
	assert.Equal(t, float64(-150), odds["ml_home"])
	assert.Nil(t, odds["total"])

	rec, body = do(t, h, http.MethodGet, "/api/v1/matchups?home=NYJ&away=BUF", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body, "odds")
	assert.NotContains(t, body, "home_form")

	rec, _ = do(t, h, http.MethodGet, "/api/v1/matchups?home=KC", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTeamStatsForm(t *testing.T) {
	var b strings.Builder
	b.WriteString("team,gameID,season,week,points\n")
	for week, pts := range []int{10, 20, 30} {
		fmt.Fprintf(&b, "KC,2024_%d,2024,%d,%d\n", week+1, week+1, pts)
	}
	path := filepath.Join(t.TempDir(), "team_stats.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	h := newTestServer(t, Options{}, Dependencies{TeamStatsFile: path})

	rec, body := do(t, h, http.MethodGet, "/api/v1/teamstats/kc/form?season=2024&week=4&n=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["games_analyzed"])
	assert.Equal(t, float64(25), body["last_n"].(map[string]interface{})["points"])
	assert.Equal(t, float64(20), body["season_averages"].(map[string]interface{})["points"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/teamstats/NYJ/form?season=2024", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/teamstats/KC/form", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildEndpoints(t *testing.T) {
	message := "Running form"
	builds := &fakeBuilds{summary: &pipeline.StatusSummary{
		ActiveJob: &pipeline.Job{JobID: "job-1", Status: pipeline.JobStatusRunning, StatusMessage: &message},
	}}
	fc := &fakeCache{last: &pipeline.Result{JobID: "job-0", TeamGames: 544}}
	h := newTestServer(t, Options{}, Dependencies{Builds: builds, Cache: fc})

	rec, body := do(t, h, http.MethodPost, "/api/v1/builds", `{"windows":[3,5],"dry_run":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-1", body["job"].(map[string]interface{})["job_id"])
	assert.Equal(t, []int{3, 5}, builds.req.Windows)
	assert.True(t, builds.req.DryRun)

	rec, body = do(t, h, http.MethodGet, "/api/v1/builds/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "Running form", body["message"])

	rec, body = do(t, h, http.MethodGet, "/api/v1/builds/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "job-0", body["job_id"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/builds", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	builds.err = fmt.Errorf("%w: at least one input is required", pipeline.ErrInvalidRequest)
	rec, _ = do(t, h, http.MethodPost, "/api/v1/builds", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// recordingJobs stores created jobs; the other JobStore methods are unused.
type recordingJobs struct {
	pipeline.JobStore
	created []*pipeline.Job
}

func (r *recordingJobs) CreateJob(ctx context.Context, job *pipeline.Job) (*pipeline.Job, error) {
	r.created = append(r.created, job)
	return job, nil
}

func (r *recordingJobs) AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error {
	return nil
}

func TestBuildRequest_PathsOutsideDataDir(t *testing.T) {
	dataDir := t.TempDir()
	victim := filepath.Join(t.TempDir(), "precious.txt")
	require.NoError(t, os.WriteFile(victim, []byte("precious"), 0o644))

	jobs := &recordingJobs{}
	svc := pipeline.NewService(jobs, pipeline.NewRunner(logging.Discard()), pipeline.JobSpec{
		Inputs:     []string{filepath.Join(dataDir, "*_plays.csv")},
		OutputPath: filepath.Join(dataDir, "nfl_training.csv"),
	}, logging.Discard())
	svc.SetDataDir(dataDir)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })

	h := newTestServer(t, Options{}, Dependencies{Builds: svc})

	bodies := []string{
		fmt.Sprintf(`{"output_path":%q}`, victim),
		`{"output_path":"../nfl_training.csv"}`,
		fmt.Sprintf(`{"inputs":[%q]}`, filepath.Join(filepath.Dir(victim), "*")),
	}
	for _, body := range bodies {
		rec, payload := do(t, h, http.MethodPost, "/api/v1/builds", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid build request", payload["error"])
	}
	assert.Empty(t, jobs.created)

	rec, _ := do(t, h, http.MethodPost, "/api/v1/builds", `{"output_path":"custom.csv"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, jobs.created, 1)
	assert.Equal(t, filepath.Join(dataDir, "custom.csv"), jobs.created[0].OutputPath)

	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(data))
}

func TestBuildStatus_Idle(t *testing.T) {
	h := newTestServer(t, Options{}, Dependencies{Builds: &fakeBuilds{summary: &pipeline.StatusSummary{}}})

	rec, body := do(t, h, http.MethodGet, "/api/v1/builds/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", body["status"])
	assert.Empty(t, body["history"])
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Options{RateLimitRPS: 1, RateLimitBurst: 1}, Dependencies{})

	rec, _ := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Options{CORSOrigins: []string{"https://dash.example.com"}}, Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/matchups", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec, body := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", body["details"])
}
