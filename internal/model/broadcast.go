package model

import "time"

// PrivacyStatus is the declared visibility of a broadcast.
type PrivacyStatus string

const (
	PrivacyPublic   PrivacyStatus = "public"
	PrivacyUnlisted PrivacyStatus = "unlisted"
	PrivacyPrivate  PrivacyStatus = "private"

	// PrivacyDefault is the hard fallback when neither a fact nor the
	// configured default yields a valid status.
	PrivacyDefault = PrivacyPublic
)

// ParsePrivacyStatus resolves a requested status against the configured
// default. An invalid requested value falls back to the configured
// default; an invalid default falls back to PrivacyDefault.
func ParsePrivacyStatus(requested, configured string) PrivacyStatus {
	if s := PrivacyStatus(requested); s.valid() {
		return s
	}
	if s := PrivacyStatus(configured); s.valid() {
		return s
	}
	return PrivacyDefault
}

func (s PrivacyStatus) valid() bool {
	switch s {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return true
	}
	return false
}

// Broadcast is this system's view of the video platform's live-broadcast
// resource. The gateway adapter translates to and from the third-party
// wire format.
type Broadcast struct {
	// ID is the platform video id.
	ID string

	Title       string
	Description string

	ScheduledStart time.Time
	ScheduledEnd   time.Time

	Privacy      PrivacyStatus
	ThumbnailURL string

	// StreamKeyID is the id of the bound stream key, if any.
	StreamKeyID string

	// Lifecycle is the platform lifecycle status ("upcoming", "active", ...).
	Lifecycle string
}

// BroadcastMeta is the declared state passed to create/update operations.
type BroadcastMeta struct {
	Title        string
	Description  string
	Start        time.Time
	End          time.Time
	ThumbnailURL string
	Privacy      PrivacyStatus

	// StreamKeyID is the id of the stream key to bind to the broadcast.
	StreamKeyID string
}

// Link returns the broadcast's canonical video link.
func (b Broadcast) Link() Link {
	return LinkFromVideoID(b.ID)
}
