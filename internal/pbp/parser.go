package pbp

import (
	"regexp"
	"strconv"
	"strings"
)

// yardagePattern matches outcomes such as "12 yard pass" or "-3 yard run".
// It is anchored at the start; "yards" does not match.
var yardagePattern = regexp.MustCompile(`^(-?\d+)\s+yard\s+(\w+)`)

// ParseOutcome classifies a raw play outcome. Rules are checked in priority
// order and the first match wins, so "intercepted, returned for a touchdown"
// is a touchdown. Unrecognized text is PlayTypeOther with zero yards and points.
func ParseOutcome(outcome string) ParsedPlay {
	text := strings.ToLower(outcome)

	if m := yardagePattern.FindStringSubmatch(text); m != nil {
		// a yardage too large for int fails Atoi and falls through to the
		// keyword rules instead of being kept
		if yards, err := strconv.Atoi(m[1]); err == nil {
			return ParsedPlay{Yards: yards, Type: PlayType(m[2])}
		}
	}

	switch {
	case strings.Contains(text, "touchdown"):
		return ParsedPlay{Type: PlayTypeTouchdown, Points: 6}
	case strings.Contains(text, "field goal") && strings.Contains(text, "good"):
		return ParsedPlay{Type: PlayTypeFieldGoal, Points: 3}
	case strings.Contains(text, "extra point") && strings.Contains(text, "good"):
		return ParsedPlay{Type: PlayTypeExtraPoint, Points: 1}
	case strings.Contains(text, "safety"):
		return ParsedPlay{Type: PlayTypeSafety, Points: 2}
	case strings.Contains(text, "incomplete"):
		return ParsedPlay{Type: PlayTypeIncompletePass}
	case strings.Contains(text, "intercept"):
		return ParsedPlay{Type: PlayTypeInterception}
	case strings.Contains(text, "fumble"):
		return ParsedPlay{Type: PlayTypeFumble}
	}

	return ParsedPlay{Type: PlayTypeOther}
}

// Label parses every record's outcome text.
func Label(records []PlayRecord) []LabeledPlay {
	labeled := make([]LabeledPlay, len(records))
	for i, rec := range records {
		labeled[i] = LabeledPlay{
			PlayRecord: rec,
			Parsed:     ParseOutcome(rec.PlayOutcome),
		}
	}
	return labeled
}
