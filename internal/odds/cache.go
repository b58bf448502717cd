package odds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrGameNotFound is returned when no cached game matches a matchup.
var ErrGameNotFound = errors.New("odds: game not found")

// Market keys used by the odds feed.
const (
	MarketH2H     = "h2h"
	MarketSpreads = "spreads"
	MarketTotals  = "totals"
)

// Outcome is a single priced outcome within a market.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Market is one bookmaker market (h2h, spreads, totals).
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Bookmaker holds one book's markets for a game.
type Bookmaker struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Markets []Market `json:"markets"`
}

// Game is a cached event with its bookmaker lines.
type Game struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime string      `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Cache is the on-disk odds snapshot.
type Cache struct {
	LastUpdated Timestamp `json:"last_updated"`
	Games       []Game    `json:"games"`
}

// LoadCache reads an odds snapshot from path.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading odds cache %s: %w", path, err)
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("decoding odds cache %s: %w", path, err)
	}

	return &cache, nil
}

// Age returns the number of whole days since the snapshot was written.
func (c *Cache) Age(now time.Time) int {
	if c.LastUpdated.IsZero() {
		return 0
	}
	days := int(now.Sub(c.LastUpdated.Time) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// FindGame returns the first game whose home and away names contain the
// given names, compared case-insensitively.
func (c *Cache) FindGame(home, away string) (*Game, error) {
	homeNorm := strings.ToLower(strings.TrimSpace(home))
	awayNorm := strings.ToLower(strings.TrimSpace(away))

	for i := range c.Games {
		game := &c.Games[i]
		if strings.Contains(strings.ToLower(game.HomeTeam), homeNorm) &&
			strings.Contains(strings.ToLower(game.AwayTeam), awayNorm) {
			return game, nil
		}
	}

	return nil, fmt.Errorf("%s @ %s: %w", away, home, ErrGameNotFound)
}

// Timestamp accepts RFC 3339 as well as naive ISO-8601 local timestamps.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("last_updated: unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
