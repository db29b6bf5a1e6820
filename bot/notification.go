package bot

import (
	"fmt"
	"strings"

	"github.com/onnwee/replaybot/replay"
	"github.com/onnwee/replaybot/unit"
)

// Field is a titled line of a notification.
type Field struct {
	Name  string
	Value string
}

// Notification is the transport-neutral payload posted to a conversation.
type Notification struct {
	Title       string
	URL         string
	Description string
	Fields      []Field
	ImageURL    string
	Footer      string
}

// Text flattens the notification into a single chat line.
func (n Notification) Text() string {
	var parts []string
	if n.Title != "" {
		parts = append(parts, n.Title)
	}
	if n.Description != "" {
		parts = append(parts, n.Description)
	}
	for _, f := range n.Fields {
		if f.Value == "" {
			parts = append(parts, f.Name)
			continue
		}
		parts = append(parts, f.Name+": "+f.Value)
	}
	if n.Footer != "" {
		parts = append(parts, n.Footer)
	}
	if n.URL != "" {
		parts = append(parts, n.URL)
	}
	return strings.Join(parts, " | ")
}

const placeholderText = "..."

var errorTexts = map[replay.Class]string{
	replay.ClassNotFound:    "Replay data not found.",
	replay.ClassNetwork:     "Failed to fetch replay data.",
	replay.ClassInvalidData: "Failed to parse replay data.",
}

// ErrorText returns the user-facing message for a resolution failure class.
func ErrorText(c replay.Class) string {
	if s, ok := errorTexts[c]; ok {
		return s
	}
	return "Unknown Error"
}

func (o *Orchestrator) replayLink(code replay.Code) string {
	return replay.ExpandTemplate(o.cfg.ReplayLinkURL, code)
}

func (o *Orchestrator) placeholderNotification(code replay.Code) Notification {
	return Notification{Title: code.String(), URL: o.replayLink(code), Description: placeholderText}
}

func (o *Orchestrator) errorNotification(code replay.Code, c replay.Class) Notification {
	return Notification{Title: code.String(), URL: o.replayLink(code), Description: ErrorText(c)}
}

func (o *Orchestrator) replayNotification(code replay.Code, s replay.GameSummary) Notification {
	return Notification{
		Title: code.String(),
		URL:   o.replayLink(code),
		Fields: []Field{
			{Name: s.Players[0].Name, Value: s.Players[0].Rating},
			{Name: s.Players[1].Name, Value: s.Players[1].Rating},
			{Name: DescribeGame(s), Value: strings.Join(s.RandomUnits, ", ")},
		},
		Footer: s.StartTimeLabel(),
	}
}

// DescribeGame renders "<game type>, <time control>, <set composition>".
func DescribeGame(s replay.GameSummary) string {
	tc := s.TimeControl.Label()
	if s.TimeControl.Kind == replay.TimeSeconds {
		tc += "s"
	}
	return fmt.Sprintf("%s, %s, %s", s.GameType, tc, s.SetLabel)
}

func (o *Orchestrator) unitNotification(r unit.Record) Notification {
	n := Notification{
		Title:  r.Name,
		Footer: fmt.Sprintf("Supply: %d", r.Supply),
	}
	if o.cfg.UnitLinkURL != "" {
		n.URL = unit.ExpandTemplate(o.cfg.UnitLinkURL, r.Name)
	}
	if o.cfg.UnitImageURL != "" {
		n.ImageURL = unit.ExpandTemplate(o.cfg.UnitImageURL, r.Name)
	}
	return n
}
