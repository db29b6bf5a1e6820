package replay

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// UnlimitedTime is the initial-time value the game server stores for
// "unlimited" clocks when useClocks is left on.
const UnlimitedTime = 1<<31 - 1

// NoRating is the label shown for unranked or freshly placed players.
const NoRating = "—"

// StartTimeLayout formats the game start time in summaries (UTC).
const StartTimeLayout = "2006-01-02 15:04:05"

var gameTypes = map[int]string{
	200: "Ranked",
	201: "Versus",
	203: "Event",
	204: "Casual",
}

var romanNumerals = []string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX"}

// TimeControlKind distinguishes the three time-control labels.
type TimeControlKind int

const (
	TimeNoLimit TimeControlKind = iota
	TimeSeconds
	TimeCustom
)

// TimeControl is the summarized clock configuration.
type TimeControl struct {
	Kind    TimeControlKind
	Seconds int
}

// Label renders the time control: "no limit", the per-turn seconds, or "custom".
func (tc TimeControl) Label() string {
	switch tc.Kind {
	case TimeSeconds:
		return strconv.Itoa(tc.Seconds)
	case TimeCustom:
		return "custom"
	default:
		return "no limit"
	}
}

// PlayerSummary is a display name with its rating label.
type PlayerSummary struct {
	Name   string
	Rating string
}

// GameSummary is the display projection of a GameRecord.
type GameSummary struct {
	Players     [2]PlayerSummary
	GameType    string
	TimeControl TimeControl
	SetLabel    string
	RandomUnits []string
	StartTime   time.Time
}

// StartTimeLabel formats the start time in UTC.
func (s GameSummary) StartTimeLabel() string {
	return s.StartTime.UTC().Format(StartTimeLayout)
}

// GameTypeLabel maps a format code to its label; unknown codes are "Unknown".
func GameTypeLabel(format int) string {
	if name, ok := gameTypes[format]; ok {
		return name
	}
	return "Unknown"
}

// RatingLabel formats a player's initial rating.
func RatingLabel(tier int, tierPercent, displayRating float64) string {
	switch {
	case tier >= 10:
		return strconv.FormatInt(int64(math.Round(displayRating)), 10)
	case tier < 1, tier == 1 && tierPercent == 0:
		return NoRating
	default:
		return fmt.Sprintf("Tier %s (%d%%)", romanNumerals[tier], int(math.Round(tierPercent*100)))
	}
}

// Summarize extracts the display summary from rec. Missing or malformed
// required sections yield a *Error of ClassInvalidData. It performs no I/O.
func Summarize(rec *GameRecord) (GameSummary, error) {
	var sum GameSummary
	if rec == nil {
		return sum, invalid(errors.New("nil record"))
	}
	if len(rec.PlayerInfo) < 2 {
		return sum, invalid(errors.New("missing player info"))
	}
	if rec.RatingInfo == nil || len(rec.RatingInfo.InitialRatings) < 2 {
		return sum, invalid(errors.New("missing rating info"))
	}
	for i := 0; i < 2; i++ {
		r := rec.RatingInfo.InitialRatings[i]
		if r.Tier == nil || r.TierPercent == nil || r.DisplayRating == nil {
			return sum, invalid(fmt.Errorf("incomplete rating for player %d", i))
		}
		sum.Players[i] = PlayerSummary{
			Name:   rec.PlayerInfo[i].DisplayName,
			Rating: RatingLabel(*r.Tier, *r.TierPercent, *r.DisplayRating),
		}
	}

	tc, err := timeControl(rec)
	if err != nil {
		return sum, invalid(err)
	}
	sum.TimeControl = tc

	if rec.DeckInfo == nil || len(rec.DeckInfo.Base) == 0 || len(rec.DeckInfo.Randomizer) == 0 {
		return sum, invalid(errors.New("missing deck info"))
	}
	random := rec.DeckInfo.Randomizer[0]
	sum.RandomUnits = append([]string(nil), random...)
	switch {
	case len(rec.DeckInfo.Base[0]) == 0:
		sum.SetLabel = "custom set"
	case len(random) == 0:
		sum.SetLabel = "base set only"
	default:
		sum.SetLabel = fmt.Sprintf("base plus %d", len(random))
	}

	if rec.Format == nil {
		return sum, invalid(errors.New("missing format"))
	}
	sum.GameType = GameTypeLabel(*rec.Format)

	if rec.StartTime == nil {
		return sum, invalid(errors.New("missing start time"))
	}
	sec, frac := math.Modf(*rec.StartTime)
	sum.StartTime = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	return sum, nil
}

func timeControl(rec *GameRecord) (TimeControl, error) {
	ti := rec.TimeInfo
	if ti == nil {
		return TimeControl{}, errors.New("missing time info")
	}
	if ti.UseClocks != nil && !*ti.UseClocks {
		return TimeControl{Kind: TimeNoLimit}, nil
	}
	if len(ti.PlayerTime) < 2 {
		return TimeControl{}, errors.New("missing player time")
	}

	ref := 0
	if rec.PlayerInfo[0].Bot && !rec.PlayerInfo[1].Bot {
		ref = 1
	}
	seconds := ti.PlayerTime[ref].Initial
	if seconds == UnlimitedTime {
		return TimeControl{Kind: TimeNoLimit}, nil
	}
	for i := 0; i < 2; i++ {
		if rec.PlayerInfo[i].Bot {
			continue
		}
		pt := ti.PlayerTime[i]
		if pt.Initial != seconds || pt.Bank != seconds || pt.Increment != seconds {
			return TimeControl{Kind: TimeCustom}, nil
		}
	}
	return TimeControl{Kind: TimeSeconds, Seconds: seconds}, nil
}

func invalid(err error) *Error {
	return &Error{Class: ClassInvalidData, Err: err}
}
