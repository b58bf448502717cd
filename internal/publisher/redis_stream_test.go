package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/features"
	"github.com/fortuna/gridiron/internal/pipeline"
)

func formRow(team string, week, points int) features.FormRow {
	key := features.GameKey{Season: 2024, Week: week, HomeTeam: "KC", AwayTeam: "BAL", TeamWithPossession: team}
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

func TestRedisStreamPublisher_PublishBuildCompleted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	pub := NewRedisStreamPublisher(client)
	pub.now = func() time.Time { return time.Unix(1725900000, 0) }

	rows := []features.FormRow{formRow("KC", 1, 10), formRow("KC", 2, 24), formRow("BAL", 1, 17)}
	result := &pipeline.Result{JobID: "job-1", TeamGames: 3, Games: 2}

	ctx := context.Background()
	require.NoError(t, pub.Write(ctx, result, rows))
	assert.Equal(t, "stream", pub.Name())

	entries, err := client.XRange(ctx, BuildStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "job-1", values["job_id"])
	assert.Equal(t, "1725900000", values["timestamp"])

	var event BuildCompleted
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &event))
	assert.Equal(t, "job-1", event.Result.JobID)
	require.Len(t, event.Teams, 2)
	assert.Equal(t, "BAL", event.Teams[0].Team)
	assert.Equal(t, "KC", event.Teams[1].Team)
	assert.Equal(t, 2, event.Teams[1].Week)
	assert.Equal(t, 24.0, event.Teams[1].Averages["points_last3"])
}

func TestRedisStreamPublisher_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.SetError("LOADING server is loading")

	_, err := NewRedisStreamPublisher(client).PublishBuildCompleted(context.Background(), &pipeline.Result{JobID: "job-1"}, nil)
	assert.Error(t, err)
}
