package features

type teamInGame struct {
	gameID string
	team   string
}

// Link attaches each row's opponent scoring as points allowed.
//
// When the opponent has no row for the game, points allowed falls back to
// the row's own points and OpponentMissing is set. The row is kept.
func Link(rows []TeamGameStats) []EnrichedStats {
	pointsByTeam := make(map[teamInGame]int, len(rows))
	for _, row := range rows {
		pointsByTeam[teamInGame{row.GameID(), row.TeamWithPossession}] = row.Points
	}

	enriched := make([]EnrichedStats, len(rows))
	for i, row := range rows {
		gameID := row.GameID()
		opponent := row.Opponent()

		allowed, ok := pointsByTeam[teamInGame{gameID, opponent}]
		if !ok {
			allowed = row.Points
		}

		enriched[i] = EnrichedStats{
			TeamGameStats:   row,
			Opponent:        opponent,
			GameID:          gameID,
			PointsAllowed:   allowed,
			GameTotal:       row.Points + allowed,
			OpponentMissing: !ok,
		}
	}

	return enriched
}

// MissingOpponents returns the distinct game IDs whose opponent row was absent.
func MissingOpponents(rows []EnrichedStats) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if row.OpponentMissing && !seen[row.GameID] {
			seen[row.GameID] = true
			ids = append(ids, row.GameID)
		}
	}
	return ids
}
