// Package recurrence rebuilds recurrence rules from the scheduling
// system's series fields so the split protocol can verify that an
// occurrence actually belongs to its series before mutating anything.
package recurrence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	"livesync/internal/model"
)

// Series repeat kinds as encoded by the scheduling system's repeat_id.
const (
	RepeatNone       = 0
	RepeatDaily      = 1
	RepeatWeekly     = 7
	RepeatMonthlyDay = 32
	RepeatYearly     = 365
	RepeatManual     = 999
)

// DateRange is an inclusive exception range inside a series.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Series is a recurrence rule reconstructed from a calendar payload.
type Series struct {
	RepeatID  int
	Frequency int
	Start     time.Time
	// Until is zero for open-ended series.
	Until      time.Time
	Exceptions []DateRange

	loc *time.Location
}

// FromPayload extracts the series description from a loosely-typed
// calendar payload. Missing or malformed optional fields are tolerated;
// a malformed start date is an error.
func FromPayload(payload map[string]any, loc *time.Location) (*Series, error) {
	if loc == nil {
		loc = time.Local
	}

	startRaw, _ := payload["startdate"].(string)
	start, err := parseDate(startRaw, loc)
	if err != nil {
		return nil, fmt.Errorf("recurrence: bad startdate %q: %w", startRaw, err)
	}

	s := &Series{
		RepeatID:  anyToInt(payload["repeat_id"]),
		Frequency: anyToInt(payload["repeat_frequence"]),
		Start:     start,
		loc:       loc,
	}
	if s.Frequency <= 0 {
		s.Frequency = 1
	}

	if untilRaw, _ := payload["repeat_until"].(string); untilRaw != "" {
		if until, err := parseDate(untilRaw, loc); err == nil {
			s.Until = until
		}
	}

	if exceptions, ok := payload["exceptions"].(map[string]any); ok {
		for _, raw := range exceptions {
			ex, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			from, err1 := parseDate(str(ex["except_date_start"]), loc)
			to, err2 := parseDate(str(ex["except_date_end"]), loc)
			if err1 != nil || err2 != nil {
				continue
			}
			s.Exceptions = append(s.Exceptions, DateRange{Start: from, End: to})
		}
	}

	return s, nil
}

// Known reports whether the repeat kind can be expressed as a rule.
// Manual and unrecognized kinds cannot; callers should then skip the
// membership check and rely on the change-impact conflict check alone.
func (s *Series) Known() bool {
	switch s.RepeatID {
	case RepeatDaily, RepeatWeekly, RepeatMonthlyDay, RepeatYearly:
		return true
	}
	return false
}

// ContainsDate reports whether the series generates an occurrence on the
// given day, taking exception ranges into account.
func (s *Series) ContainsDate(day time.Time) (bool, error) {
	if !s.Known() {
		return false, fmt.Errorf("recurrence: repeat kind %d has no rule", s.RepeatID)
	}

	day = day.In(s.loc)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Second)

	for _, ex := range s.Exceptions {
		if !dayStart.Before(ex.Start) && !dayStart.After(ex.End) {
			return false, nil
		}
	}

	opt := rrule.ROption{
		Freq:     s.freq(),
		Interval: s.Frequency,
		Dtstart:  s.Start,
	}
	if !s.Until.IsZero() {
		// Make the until date inclusive.
		opt.Until = s.Until.AddDate(0, 0, 1).Add(-time.Second)
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return false, fmt.Errorf("recurrence: build rule: %w", err)
	}

	return len(rule.Between(dayStart, dayEnd, true)) > 0, nil
}

func (s *Series) freq() rrule.Frequency {
	switch s.RepeatID {
	case RepeatDaily:
		return rrule.DAILY
	case RepeatWeekly:
		return rrule.WEEKLY
	case RepeatMonthlyDay:
		return rrule.MONTHLY
	default:
		return rrule.YEARLY
	}
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{model.TimeLayout, model.TimeLayoutShort, model.DateLayout} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func anyToInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
