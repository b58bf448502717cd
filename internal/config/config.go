package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PipelineConfig holds the batch build settings.
type PipelineConfig struct {
	// Input globs or paths for play-by-play CSV files
	PlaysGlobs []string

	// Destination of the feature table
	OutputPath string

	// Rolling windows for recent-form averages (e.g., 3 -> points_last3)
	FormWindows []int

	// Hour of day (0-23) for the scheduled rebuild in serve mode; -1 disables it
	RebuildHour int

	// Directory that API build requests may read from and write to
	DataDir string
}

// ServerConfig holds REST and WebSocket settings.
type ServerConfig struct {
	RESTPort       string
	WSPort         string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// DataConfig points at the external collaborator files.
type DataConfig struct {
	OddsCacheFile string
	TeamStatsFile string
}

// Config holds all application configuration
type Config struct {
	DatabaseDSN string
	RedisURL    string
	LogLevel    string
	LogFormat   string

	Pipeline PipelineConfig
	Server   ServerConfig
	Data     DataConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	windows, err := parseInts(getEnv("FORM_WINDOWS", "3"))
	if err != nil {
		return nil, fmt.Errorf("FORM_WINDOWS: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}

	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	rebuildHour, err := strconv.Atoi(getEnv("REBUILD_HOUR", "-1"))
	if err != nil || rebuildHour < -1 || rebuildHour > 23 {
		return nil, fmt.Errorf("REBUILD_HOUR must be -1 or 0-23, got %q", os.Getenv("REBUILD_HOUR"))
	}

	return &Config{
		DatabaseDSN: getEnv("DATABASE_DSN", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		Pipeline: PipelineConfig{
			PlaysGlobs:  splitList(getEnv("PLAYS_GLOB", "data/*_plays.csv")),
			OutputPath:  getEnv("OUTPUT_PATH", "data/nfl_training.csv"),
			FormWindows: windows,
			RebuildHour: rebuildHour,
			DataDir:     getEnv("DATA_DIR", "data"),
		},
		Server: ServerConfig{
			RESTPort:       getEnv("REST_PORT", "8080"),
			WSPort:         getEnv("WS_PORT", "8081"),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Data: DataConfig{
			OddsCacheFile: getEnv("ODDS_CACHE_FILE", "cache/nfl_odds.json"),
			TeamStatsFile: getEnv("TEAM_STATS_FILE", "data/team_stats.csv"),
		},
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("window %d must be at least 1", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one window required")
	}
	return out, nil
}
