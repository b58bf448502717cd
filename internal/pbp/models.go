package pbp

// PlayType is the classified kind of a play. Yardage plays carry the raw
// token that followed "yard" in the outcome text, so values outside the
// constants below (e.g. "sack", "punt") are possible.
type PlayType string

const (
	PlayTypeRun            PlayType = "run"
	PlayTypePass           PlayType = "pass"
	PlayTypeTouchdown      PlayType = "touchdown"
	PlayTypeFieldGoal      PlayType = "field_goal"
	PlayTypeExtraPoint     PlayType = "extra_point"
	PlayTypeSafety         PlayType = "safety"
	PlayTypeIncompletePass PlayType = "incomplete_pass"
	PlayTypeInterception   PlayType = "interception"
	PlayTypeFumble         PlayType = "fumble"
	PlayTypeOther          PlayType = "other"
)

// PlayRecord is one row of a play-by-play input file. DriveNumber is nil
// when the cell was blank.
type PlayRecord struct {
	Season             int    `json:"season"`
	Week               int    `json:"week"`
	HomeTeam           string `json:"home_team"`
	AwayTeam           string `json:"away_team"`
	TeamWithPossession string `json:"team_with_possession"`
	DriveNumber        *int   `json:"drive_number"`
	PlayOutcome        string `json:"play_outcome"`
}

// Drive returns a drive number for PlayRecord.DriveNumber.
func Drive(n int) *int {
	return &n
}

// ParsedPlay is the structured event extracted from an outcome string.
type ParsedPlay struct {
	Yards  int      `json:"yards"`
	Type   PlayType `json:"play_type"`
	Points int      `json:"points"`
}

// LabeledPlay pairs an input record with its parsed outcome.
type LabeledPlay struct {
	PlayRecord
	Parsed ParsedPlay
}

// RequiredColumns lists the header names every input file must carry.
var RequiredColumns = []string{
	"Season",
	"Week",
	"HomeTeam",
	"AwayTeam",
	"TeamWithPossession",
	"DriveNumber",
	"PlayOutcome",
}
