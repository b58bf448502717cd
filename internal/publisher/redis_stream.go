package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/pipeline"
)

// BuildStream receives one event per completed feature build.
const BuildStream = "features.built.americanfootball_nfl"

// defaultMaxLen caps the stream length (approximate trim).
const defaultMaxLen = 1000

// BuildCompleted is the payload published after a build.
type BuildCompleted struct {
	Result *pipeline.Result `json:"result"`
	Teams  []TeamSnapshot   `json:"teams"`
}

// TeamSnapshot is a team's latest row reduced to its headline numbers.
type TeamSnapshot struct {
	Team     string             `json:"team"`
	Season   int                `json:"season"`
	Week     int                `json:"week"`
	GameID   string             `json:"game_id"`
	Averages map[string]float64 `json:"averages"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

var _ pipeline.Sink = (*RedisStreamPublisher)(nil)

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: BuildStream,
		maxLen: defaultMaxLen,
		now:    time.Now,
	}
}

// Name implements pipeline.Sink.
func (p *RedisStreamPublisher) Name() string {
	return "stream"
}

// Write implements pipeline.Sink.
func (p *RedisStreamPublisher) Write(ctx context.Context, result *pipeline.Result, rows []features.FormRow) error {
	_, err := p.PublishBuildCompleted(ctx, result, rows)
	return err
}

// PublishBuildCompleted appends a build event to the stream and returns
// its entry ID.
func (p *RedisStreamPublisher) PublishBuildCompleted(ctx context.Context, result *pipeline.Result, rows []features.FormRow) (string, error) {
	event := BuildCompleted{
		Result: result,
		Teams:  snapshots(rows),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshaling build event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"job_id":    result.JobID,
			"data":      string(data),
			"timestamp": p.now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publishing to %s: %w", p.stream, err)
	}

	return id, nil
}

func snapshots(rows []features.FormRow) []TeamSnapshot {
	latest := features.LatestByTeam(rows)

	out := make([]TeamSnapshot, 0, len(latest))
	for team, row := range latest {
		out = append(out, TeamSnapshot{
			Team:     team,
			Season:   row.Season,
			Week:     row.Week,
			GameID:   row.GameID,
			Averages: row.RollingColumns(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out
}
