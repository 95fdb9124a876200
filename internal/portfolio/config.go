package portfolio

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

//
// DeadlineType selects how the task deadline is given
//
type DeadlineType string

const (
	DeadlineNone     DeadlineType = "none"
	DeadlineAbsolute DeadlineType = "absolut"
	DeadlineRelative DeadlineType = "relative"
)

//
// NodeConfig is the part of the node's module configuration the
// run panel reads
//
type NodeConfig struct {
	Text          string
	DeadlineType  DeadlineType
	DeadlineDate  *time.Time
	DeadlineMonth string
	DeadlineWeek  string
	DeadlineDay   string
	HasScoreField bool
}

//
// ParseNodeConfig reads the module configuration json, e.g.
//
//	{"text": "...", "deadlineType": "relative", "deadlineWeek": "2", "hasScoreField": true}
//
// an empty document gives the zero config
//
func ParseNodeConfig(raw []byte) (NodeConfig, error) {

	if len(strings.TrimSpace(string(raw))) == 0 {
		return NodeConfig{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return NodeConfig{}, errors.New("node configuration is not valid json")
	}

	doc := gjson.ParseBytes(raw)
	cfg := NodeConfig{
		Text:          doc.Get("text").String(),
		DeadlineType:  DeadlineType(doc.Get("deadlineType").String()),
		DeadlineMonth: doc.Get("deadlineMonth").String(),
		DeadlineWeek:  doc.Get("deadlineWeek").String(),
		DeadlineDay:   doc.Get("deadlineDay").String(),
		HasScoreField: doc.Get("hasScoreField").Bool(),
	}

	if d := doc.Get("deadlineDate"); d.Exists() && d.String() != "" {
		t, err := time.Parse(time.RFC3339, d.String())
		if err != nil {
			return NodeConfig{}, errors.Wrap(err, "invalid deadlineDate")
		}
		cfg.DeadlineDate = &t
	}

	return cfg, nil
}

//
// true when a deadline panel is shown
//
func (c NodeConfig) HasDeadline() bool {
	return c.DeadlineType != "" && c.DeadlineType != DeadlineNone
}

//
// Deadline a copy taken at now gets: the configured date, now shifted by
// the relative months/weeks/days, or nil
//
func (c NodeConfig) Deadline(now time.Time) *time.Time {
	switch c.DeadlineType {
	case DeadlineAbsolute:
		return c.DeadlineDate
	case DeadlineRelative:
		months := atoiOrZero(c.DeadlineMonth)
		days := atoiOrZero(c.DeadlineWeek)*7 + atoiOrZero(c.DeadlineDay)
		if months == 0 && days == 0 {
			return nil
		}
		d := now.AddDate(0, months, days)
		return &d
	}
	return nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
