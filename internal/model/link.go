package model

import (
	"encoding/json"
	"net/url"
	"regexp"
)

// videoLinkPattern recognizes the two canonical video-URL shapes
// (youtube.com/watch?v=... and youtu.be/...).
var videoLinkPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:youtube\.com/watch/?\?v=|youtu\.be/)([^"&?\s]+)`)

// Link is a validated URL. A malformed input degrades to an invalid,
// empty link instead of an error; downstream logic treats invalid links
// as absent.
type Link struct {
	URL   string
	Valid bool
}

// NewLink validates the given raw URL.
func NewLink(raw string) Link {
	if raw == "" {
		return Link{}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Link{}
	}
	return Link{URL: raw, Valid: true}
}

// LinkFromVideoID builds the canonical short link for a platform video id.
func LinkFromVideoID(videoID string) Link {
	return NewLink("https://youtu.be/" + videoID)
}

// VideoID extracts the platform video id from the link, or "" when the
// link does not point at a video.
func (l Link) VideoID() string {
	if !l.Valid {
		return ""
	}
	m := videoLinkPattern.FindStringSubmatch(l.URL)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsVideoLink reports whether the link points at a platform video.
func (l Link) IsVideoLink() bool {
	return l.VideoID() != ""
}

// MarshalJSON serializes the link as its bare URL, matching the
// fingerprint serialization of the event list.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.URL)
}

// UnmarshalJSON re-validates the URL on the way in.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = NewLink(raw)
	return nil
}
