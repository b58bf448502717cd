package odds

import "math"

// ConsensusOdds averages the lines across every bookmaker for a game.
// Components no bookmaker offered are nil.
type ConsensusOdds struct {
	Spread  *float64 `json:"spread"`
	Total   *float64 `json:"total"`
	MLHome  *int     `json:"ml_home"`
	MLAway  *int     `json:"ml_away"`
	Sources int      `json:"sources"`
}

// Consensus returns the mean home spread and over total (rounded to one
// decimal) and the mean moneylines (truncated). Returns nil for a game
// without bookmakers.
func Consensus(game *Game) *ConsensusOdds {
	if game == nil || len(game.Bookmakers) == 0 {
		return nil
	}

	var spreads, totals, mlHome, mlAway []float64

	for _, book := range game.Bookmakers {
		for _, market := range book.Markets {
			switch market.Key {
			case MarketSpreads:
				for _, o := range market.Outcomes {
					if o.Name == game.HomeTeam {
						spreads = append(spreads, pointOrZero(o.Point))
					}
				}
			case MarketTotals:
				for _, o := range market.Outcomes {
					if o.Name == "Over" {
						totals = append(totals, pointOrZero(o.Point))
					}
				}
			case MarketH2H:
				for _, o := range market.Outcomes {
					if o.Name == game.HomeTeam {
						mlHome = append(mlHome, o.Price)
					} else {
						mlAway = append(mlAway, o.Price)
					}
				}
			}
		}
	}

	return &ConsensusOdds{
		Spread:  roundedMean(spreads),
		Total:   roundedMean(totals),
		MLHome:  truncatedMean(mlHome),
		MLAway:  truncatedMean(mlAway),
		Sources: len(game.Bookmakers),
	}
}

func pointOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func roundedMean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := math.Round(mean(values)*10) / 10
	return &v
}

func truncatedMean(values []float64) *int {
	if len(values) == 0 {
		return nil
	}
	v := int(mean(values))
	return &v
}
