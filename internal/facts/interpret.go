// Package facts turns raw per-event attribute records into typed
// decisions: livestream enabled/ignored, visibility, homepage and
// calendar flags.
package facts

import (
	"livesync/internal/config"
	"livesync/internal/model"
)

// privacyOrder fixes the scan order of the visibility mapping so that
// "first match wins" is deterministic.
var privacyOrder = []model.PrivacyStatus{
	model.PrivacyPublic,
	model.PrivacyUnlisted,
	model.PrivacyPrivate,
}

// Interpreter maps fact lists onto derived event flags using the
// configured fact-name tables.
type Interpreter struct {
	rules          config.EventsConfig
	defaultPrivacy model.PrivacyStatus
}

// NewInterpreter builds an Interpreter. defaultVisibility is the
// process-wide fallback privacy status; an invalid value degrades to
// the hard default.
func NewInterpreter(rules config.EventsConfig, defaultVisibility string) *Interpreter {
	return &Interpreter{
		rules:          rules,
		defaultPrivacy: model.ParsePrivacyStatus("", defaultVisibility),
	}
}

var _ model.FlagInterpreter = (*Interpreter)(nil)

// Interpret derives the event flags from the fact list. Facts with
// unknown titles are ignored; for repeated titles the last fact wins,
// except for the visibility fact where the first present fact wins.
func (in *Interpreter) Interpret(facts []model.Fact) model.Flags {
	flags := model.Flags{
		LivestreamEnabled:  in.rules.Livestream.Default,
		LivestreamHomepage: in.rules.OnHomepage.Default,
		LivestreamCalendar: in.rules.InCalendar.Default,
		Privacy:            in.defaultPrivacy,
	}

	privacySet := false
	for _, fact := range facts {
		switch fact.Title {
		case in.rules.Livestream.Title:
			flags.LivestreamEnabled = fact.Value == in.rules.Livestream.Value
			flags.LivestreamIgnored = fact.Value == in.rules.Livestream.IgnoreValue
		case in.rules.Visibility.Title:
			if privacySet {
				continue
			}
			if status, ok := in.matchPrivacy(fact.Value); ok {
				flags.Privacy = status
				privacySet = true
			}
		case in.rules.OnHomepage.Title:
			flags.LivestreamHomepage = fact.Value == in.rules.OnHomepage.Value
		case in.rules.InCalendar.Title:
			flags.LivestreamCalendar = fact.Value == in.rules.InCalendar.Value
		}
	}

	return flags
}

// matchPrivacy maps a fact value through the configured value table.
func (in *Interpreter) matchPrivacy(value string) (model.PrivacyStatus, bool) {
	for _, status := range privacyOrder {
		if described, ok := in.rules.Visibility.Values[string(status)]; ok && described == value {
			return status, true
		}
	}
	return "", false
}
