package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	"livesync/internal/model"
)

// Feed serializes the livestream schedule as an ICS calendar. Only
// entries carrying a video link are included. now is used for the
// DTSTAMP/CREATED properties so output stays deterministic under test.
func Feed(entries []model.PublicationEntry, now time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//livesync//livestream feed//DE")

	for _, entry := range entries {
		if !entry.VideoLink.Valid {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("livesync-%d", entry.EventID))
		ev.SetDtStampTime(now)
		ev.SetCreatedTime(now)
		ev.SetStartAt(entry.Start)
		ev.SetEndAt(entry.End)
		ev.SetSummary(entry.Title)
		ev.SetURL(entry.VideoLink.URL)
		ev.SetDescription("Livestream: " + entry.VideoLink.URL)
	}

	return []byte(cal.Serialize())
}

// WriteFeed renders the feed and writes it to path.
func WriteFeed(path string, entries []model.PublicationEntry, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("publish: ensure feed dir: %w", err)
	}
	if err := os.WriteFile(path, Feed(entries, now), 0o644); err != nil {
		return fmt.Errorf("publish: write feed: %w", err)
	}
	return nil
}
