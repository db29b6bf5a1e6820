package replay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// maxRecordSize bounds the decompressed size of a single record.
const maxRecordSize = 32 << 20

// GameRecord is the decoded replay document. The upstream schema is not
// versioned, so every section is optional here and Summarize decides what is
// required. Raw keeps the decompressed JSON exactly as received.
type GameRecord struct {
	PlayerInfo []PlayerInfo `json:"playerInfo"`
	RatingInfo *RatingInfo  `json:"ratingInfo"`
	TimeInfo   *TimeInfo    `json:"timeInfo"`
	DeckInfo   *DeckInfo    `json:"deckInfo"`
	Format     *int         `json:"format"`
	StartTime  *float64     `json:"startTime"`

	Raw json.RawMessage `json:"-"`
}

type PlayerInfo struct {
	DisplayName string   `json:"displayName"`
	Bot         flexBool `json:"bot"`
}

type RatingInfo struct {
	InitialRatings []Rating `json:"initialRatings"`
}

type Rating struct {
	Tier          *int     `json:"tier"`
	TierPercent   *float64 `json:"tierPercent"`
	DisplayRating *float64 `json:"displayRating"`
}

type TimeInfo struct {
	UseClocks  *bool        `json:"useClocks"`
	PlayerTime []PlayerTime `json:"playerTime"`
}

type PlayerTime struct {
	Initial   int `json:"initial"`
	Bank      int `json:"bank"`
	Increment int `json:"increment"`
}

// DeckInfo lists the cards per player. Base holds the fixed base-set cards
// (empty when the game was played without the base set); Randomizer holds the
// names of the randomly drawn units.
type DeckInfo struct {
	Base       [][]json.RawMessage `json:"base"`
	Randomizer [][]string          `json:"randomizer"`
}

// flexBool decodes the loosely typed "bot" marker: booleans, bot names and
// numeric flags all occur in the wild.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
	case bytes.Equal(data, []byte("true")):
		*b = true
	case bytes.Equal(data, []byte("false")):
		*b = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = s != ""
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("bot flag: unexpected value %s", data)
		}
		*b = f != 0
	}
	return nil
}

// Decode decompresses a gzip blob and decodes the JSON record inside it.
func Decode(blob []byte) (*GameRecord, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxRecordSize+1))
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	if len(raw) > maxRecordSize {
		return nil, errors.New("record exceeds size limit")
	}
	return decodeJSON(raw)
}

func decodeJSON(raw []byte) (*GameRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("record is not a JSON object")
	}
	var rec GameRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec.Raw = json.RawMessage(raw)
	return &rec, nil
}
