package model

import "time"

// PublicationEntry is one event's contribution to external page content.
// The renderer computes the effective visibility window; the content
// gateway owns the actual template substitution.
type PublicationEntry struct {
	EventID int `json:"eventId"`

	// ShowFrom is the effective window start: event start minus the
	// configured advance window, possibly clamped forward to the prior
	// event's end to prevent overlapping windows.
	ShowFrom time.Time `json:"showFrom"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Title string `json:"title"`

	// VideoLink is empty unless the event's livestream is enabled.
	VideoLink Link `json:"videoLink"`

	// OnHomepage carries the event's homepage flag through to the
	// content gateway, which decides whether to advertise the link.
	OnHomepage bool `json:"onHomepage"`

	// DateTime is the human-facing start label.
	DateTime string `json:"dateTime"`
}
