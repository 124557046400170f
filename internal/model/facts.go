package model

// Fact is a named attribute attached to a scheduling event, sourced from
// the scheduling system's master data. Unmatched titles are ignored by
// the interpreter.
type Fact struct {
	Title string
	Value string
}

// RawFact is a fact record as returned by the scheduling system, before
// joining with the fact master data.
type RawFact struct {
	FactID int    `json:"fact_id" yaml:"fact_id"`
	Value  string `json:"value" yaml:"value"`
}

// ServiceType describes a role category (e.g. "sermon"). It is used to
// find the id whose title matches the configured speaker role.
type ServiceType struct {
	ID    int    `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// JoinFacts combines per-event raw facts with the fact master data
// (fact id to title). Raw facts referencing unknown fact ids are dropped.
// Order within an event is preserved: later facts of the same title win
// during interpretation.
func JoinFacts(raw map[int][]RawFact, titles map[int]string) map[int][]Fact {
	joined := make(map[int][]Fact, len(raw))
	for eventID, list := range raw {
		for _, rf := range list {
			title, ok := titles[rf.FactID]
			if !ok {
				continue
			}
			joined[eventID] = append(joined[eventID], Fact{Title: title, Value: rf.Value})
		}
	}
	return joined
}

// Flags are the derived per-event decisions produced by the fact
// interpreter.
type Flags struct {
	LivestreamEnabled  bool
	LivestreamIgnored  bool
	LivestreamHomepage bool
	LivestreamCalendar bool
	Privacy            PrivacyStatus
}

// FlagInterpreter turns an event's fact list into derived flags.
type FlagInterpreter interface {
	Interpret(facts []Fact) Flags
}
