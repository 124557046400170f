package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire time layouts used by the scheduling system.
const (
	TimeLayout       = "2006-01-02 15:04:05"
	TimeLayoutShort  = "2006-01-02 15:04"
	DateLayout       = "2006-01-02"
	displayDate      = "02.01.2006"
	displayTimestamp = "02.01. 15:04"
)

// RawService is a service assignment inside a raw event record.
type RawService struct {
	ServiceID int     `json:"service_id" yaml:"service_id"`
	Name      *string `json:"name" yaml:"name"`
}

// RawEvent is the loosely-typed event record as reported by the
// scheduling system.
type RawEvent struct {
	ID         int          `json:"id" yaml:"id"`
	CategoryID int          `json:"category_id" yaml:"category_id"`
	CCCalID    int          `json:"cc_cal_id" yaml:"cc_cal_id"`
	RepeatID   int          `json:"repeat_id" yaml:"repeat_id"`
	StartDate  string       `json:"startdate" yaml:"startdate"`
	EndDate    string       `json:"enddate" yaml:"enddate"`
	Title      string       `json:"bezeichnung" yaml:"bezeichnung"`
	Special    *string      `json:"special" yaml:"special"`
	Subject    string       `json:"subject,omitempty" yaml:"subject,omitempty"`
	Link       string       `json:"link,omitempty" yaml:"link,omitempty"`
	Services   []RawService `json:"services,omitempty" yaml:"services,omitempty"`
}

// FileRef is a reference to a file attached to a scheduling event, or an
// external URL standing in for one (e.g. the default thumbnail).
type FileRef struct {
	ID      int    `json:"id" yaml:"id"`
	EventID int    `json:"event_id" yaml:"event_id"`
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
}

// ExternalFile wraps a bare URL in a FileRef with the file name derived
// from the last path segment.
func ExternalFile(rawURL string) FileRef {
	name := rawURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	return FileRef{Name: name, URL: rawURL}
}

// DownloadLink returns the file's validated link.
func (f FileRef) DownloadLink() Link {
	return NewLink(f.URL)
}

// BroadcastState is the lifecycle state of an event's broadcast binding
// within a single run.
type BroadcastState int

const (
	// NoBroadcast means no remote broadcast is attached.
	NoBroadcast BroadcastState = iota
	// BroadcastAttached means an existing remote broadcast was matched.
	BroadcastAttached
	// BroadcastJustCreated means the broadcast was created during this
	// run and must not be redundantly updated in the same run.
	BroadcastJustCreated
)

// LoadOptions carries the collaborators needed to build an Event from a
// raw record.
type LoadOptions struct {
	// Flags interprets the event's fact list.
	Flags FlagInterpreter
	// SpeakerService is the service-type title naming the speaker role.
	SpeakerService string
	// Location is the scheduling system's timezone.
	Location *time.Location
}

// Event is the domain entity combining schedule data, interpreted facts,
// the resolved speaker/subject and the current broadcast-link state.
//
// All attributes are strictly per instance. An Event lives for one run;
// there is no persistence beyond the run fingerprint.
type Event struct {
	ID         int
	CategoryID int
	// SeriesID is the recurrence-series id; zero for non-recurring events.
	SeriesID int
	// CalendarID is the calendar-entry id used for calendar mutation.
	CalendarID int

	Start time.Time
	End   time.Time

	Title       string
	Description string
	Subject     string
	Speaker     string

	LivestreamEnabled  bool
	LivestreamIgnored  bool
	LivestreamHomepage bool
	LivestreamCalendar bool
	Privacy            PrivacyStatus

	// CalendarLink is the URL currently published on the calendar entry.
	CalendarLink Link
	// StreamLink is non-nil iff a remote broadcast is currently attached
	// to the scheduling event as a link file.
	StreamLink *FileRef
	// Thumbnail is the broadcast thumbnail, falling back to the
	// configured default.
	Thumbnail FileRef

	// Broadcast is the remote broadcast matched or created during this
	// run; nil in state NoBroadcast.
	Broadcast *Broadcast

	justCreated bool
}

// NewEvent builds an Event from a raw record plus the fact list and
// service-type list valid at fetch time.
func NewEvent(raw RawEvent, facts []Fact, types []ServiceType, opts LoadOptions) (*Event, error) {
	e := &Event{}
	if err := e.Load(raw, facts, types, opts); err != nil {
		return nil, err
	}
	return e, nil
}

// Load (re)loads the event from source data. This is a full field reset,
// not a merge; broadcast state from the current run is preserved.
func (e *Event) Load(raw RawEvent, facts []Fact, types []ServiceType, opts LoadOptions) error {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	start, err := parseWireTime(raw.StartDate, loc)
	if err != nil {
		return fmt.Errorf("event %d: bad startdate %q: %w", raw.ID, raw.StartDate, err)
	}
	end, err := parseWireTime(raw.EndDate, loc)
	if err != nil {
		return fmt.Errorf("event %d: bad enddate %q: %w", raw.ID, raw.EndDate, err)
	}

	e.ID = raw.ID
	e.CategoryID = raw.CategoryID
	e.CalendarID = raw.CCCalID
	e.SeriesID = raw.RepeatID
	e.Start = start
	e.End = end
	e.Title = raw.Title
	e.Subject = raw.Subject
	// A missing "special" field normalizes to the empty string.
	if raw.Special != nil {
		e.Description = *raw.Special
	} else {
		e.Description = ""
	}
	e.CalendarLink = NewLink(raw.Link)

	if opts.Flags != nil {
		flags := opts.Flags.Interpret(facts)
		e.LivestreamEnabled = flags.LivestreamEnabled
		e.LivestreamIgnored = flags.LivestreamIgnored
		e.LivestreamHomepage = flags.LivestreamHomepage
		e.LivestreamCalendar = flags.LivestreamCalendar
		e.Privacy = flags.Privacy
	}

	e.Speaker = resolveSpeaker(raw.Services, types, opts.SpeakerService)
	return nil
}

// resolveSpeaker finds the assigned person's name for the service type
// whose title matches the configured speaker role.
func resolveSpeaker(services []RawService, types []ServiceType, role string) string {
	speakerTypeID := -1
	for _, st := range types {
		if st.Title == role {
			speakerTypeID = st.ID
		}
	}
	for _, svc := range services {
		if svc.ServiceID == speakerTypeID && svc.Name != nil {
			return *svc.Name
		}
	}
	return ""
}

func parseWireTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, value, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation(TimeLayoutShort, value, loc)
}

// State reports the event's broadcast lifecycle state.
func (e *Event) State() BroadcastState {
	switch {
	case e.Broadcast == nil:
		return NoBroadcast
	case e.justCreated:
		return BroadcastJustCreated
	default:
		return BroadcastAttached
	}
}

// AttachBroadcast binds an existing remote broadcast to this event. Pure
// state update, no network effect.
func (e *Event) AttachBroadcast(b *Broadcast) {
	e.Broadcast = b
	e.justCreated = false
}

// MarkBroadcastCreated records a broadcast created during this run.
func (e *Event) MarkBroadcastCreated(b *Broadcast) {
	e.Broadcast = b
	e.justCreated = true
}

// ClearBroadcast detaches any broadcast, returning to NoBroadcast.
func (e *Event) ClearBroadcast() {
	e.Broadcast = nil
	e.justCreated = false
}

// MatchesBroadcast reports whether the given remote broadcast belongs to
// this event: the event's stream link must encode a platform video id
// equal to the broadcast's id.
func (e *Event) MatchesBroadcast(b Broadcast) bool {
	if e.StreamLink == nil {
		return false
	}
	videoID := e.StreamLink.DownloadLink().VideoID()
	if videoID == "" {
		return false
	}
	return videoID == b.ID
}

// BroadcastInfo computes the broadcast title and description from the
// configured templates using the event's own fields.
//
// Title placeholders: %title%, %subject%, %speaker%, %date%.
// Description additionally: %subject_newline%, %speaker_newline%.
func (e *Event) BroadcastInfo(titleTemplate, descriptionTemplate string) (title, description string) {
	date := " am " + e.Start.Format(displayDate)

	subject := ""
	if e.Subject != "" {
		subject = `"` + e.Subject + `"`
	}
	speaker := ""
	if e.Speaker != "" {
		speaker = " mit " + e.Speaker
	}
	title = replacePlaceholders(titleTemplate, map[string]string{
		"title":   e.Title,
		"subject": subject,
		"speaker": speaker,
		"date":    date,
	})

	subject, subjectNewline := "", ""
	if e.Subject != "" {
		subject = "Thema: " + e.Subject
		subjectNewline = subject + "\n"
	}
	speaker, speakerNewline := "", ""
	if e.Speaker != "" {
		speaker = "Prediger: " + e.Speaker
		speakerNewline = speaker + "\n"
	}
	description = replacePlaceholders(descriptionTemplate, map[string]string{
		"title":           e.Title,
		"subject":         subject,
		"subject_newline": subjectNewline,
		"speaker":         speaker,
		"speaker_newline": speakerNewline,
		"date":            date,
	})

	return title, description
}

func replacePlaceholders(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "%"+key+"%", value)
	}
	return out
}

// DisplayTimestamp formats the event start for human-facing labels.
func (e *Event) DisplayTimestamp() string {
	return e.Start.Format(displayTimestamp)
}

// eventJSON is the serialized shape used by the change fingerprint. It
// covers every observable derived field so that any change invalidates
// the fingerprint.
type eventJSON struct {
	ID                 int           `json:"id"`
	CategoryID         int           `json:"categoryId"`
	CalendarID         int           `json:"ccCalId"`
	Start              time.Time     `json:"startTime"`
	End                time.Time     `json:"endTime"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Subject            string        `json:"subject"`
	Speaker            string        `json:"speaker"`
	LivestreamEnabled  bool          `json:"livestreamEnabled"`
	LivestreamHomepage bool          `json:"livestreamOnHomepage"`
	LivestreamCalendar bool          `json:"livestreamInCalendar"`
	Privacy            PrivacyStatus `json:"privacyStatus"`
	CalendarLink       Link          `json:"link"`
	StreamLink         *string       `json:"streamLink"`
	Thumbnail          string        `json:"thumbnail"`
}

// MarshalJSON serializes the event for the change fingerprint.
func (e *Event) MarshalJSON() ([]byte, error) {
	var streamLink *string
	if e.StreamLink != nil {
		u := e.StreamLink.URL
		streamLink = &u
	}
	return json.Marshal(eventJSON{
		ID:                 e.ID,
		CategoryID:         e.CategoryID,
		CalendarID:         e.CalendarID,
		Start:              e.Start,
		End:                e.End,
		Title:              e.Title,
		Description:        e.Description,
		Subject:            e.Subject,
		Speaker:            e.Speaker,
		LivestreamEnabled:  e.LivestreamEnabled,
		LivestreamHomepage: e.LivestreamHomepage,
		LivestreamCalendar: e.LivestreamCalendar,
		Privacy:            e.Privacy,
		CalendarLink:       e.CalendarLink,
		StreamLink:         streamLink,
		Thumbnail:          e.Thumbnail.URL,
	})
}
