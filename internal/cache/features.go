package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/pipeline"
)

// TTL constants
const (
	LatestFormTTL = 7 * 24 * time.Hour
	LastBuildTTL  = 7 * 24 * time.Hour
)

const sportKey = "americanfootball_nfl"

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// FeatureCache keeps each team's latest feature row in Redis for fast
// lookups by the API.
type FeatureCache struct {
	client *redis.Client
}

var _ pipeline.Sink = (*FeatureCache)(nil)

// NewFeatureCache creates a feature cache on an existing client
func NewFeatureCache(client *redis.Client) *FeatureCache {
	return &FeatureCache{client: client}
}

func latestFormKey(team string) string {
	return fmt.Sprintf("features:%s:team:%s:latest", sportKey, team)
}

func teamsKey() string {
	return fmt.Sprintf("features:%s:teams", sportKey)
}

func lastBuildKey() string {
	return fmt.Sprintf("features:%s:build:last", sportKey)
}

// Name implements pipeline.Sink.
func (c *FeatureCache) Name() string {
	return "redis"
}

// Write implements pipeline.Sink.
func (c *FeatureCache) Write(ctx context.Context, result *pipeline.Result, rows []features.FormRow) error {
	if err := c.WriteLatestForm(ctx, features.LatestByTeam(rows)); err != nil {
		return err
	}
	return c.WriteLastBuild(ctx, result)
}

// WriteLatestForm replaces the cached latest row for every team given and
// the set of known teams.
func (c *FeatureCache) WriteLatestForm(ctx context.Context, latest map[string]features.FormRow) error {
	teams := make([]string, 0, len(latest))
	for team := range latest {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, teamsKey())
	for _, team := range teams {
		data, err := json.Marshal(latest[team])
		if err != nil {
			return fmt.Errorf("marshaling form for %s: %w", team, err)
		}
		pipe.Set(ctx, latestFormKey(team), data, LatestFormTTL)
		pipe.SAdd(ctx, teamsKey(), team)
	}
	if len(teams) > 0 {
		pipe.Expire(ctx, teamsKey(), LatestFormTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing latest form: %w", err)
	}
	return nil
}

// GetLatestForm returns the cached latest row for team.
func (c *FeatureCache) GetLatestForm(ctx context.Context, team string) (*features.FormRow, error) {
	data, err := c.client.Get(ctx, latestFormKey(team)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest form: %w", err)
	}

	var row features.FormRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshaling form: %w", err)
	}
	return &row, nil
}

// Teams returns the cached team codes, sorted.
func (c *FeatureCache) Teams(ctx context.Context) ([]string, error) {
	teams, err := c.client.SMembers(ctx, teamsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading teams: %w", err)
	}
	sort.Strings(teams)
	return teams, nil
}

// WriteLastBuild stores the summary of the most recent build.
func (c *FeatureCache) WriteLastBuild(ctx context.Context, result *pipeline.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling build result: %w", err)
	}
	return c.client.Set(ctx, lastBuildKey(), data, LastBuildTTL).Err()
}

// LastBuild returns the summary of the most recent build.
func (c *FeatureCache) LastBuild(ctx context.Context) (*pipeline.Result, error) {
	data, err := c.client.Get(ctx, lastBuildKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading last build: %w", err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling build result: %w", err)
	}
	return &result, nil
}
