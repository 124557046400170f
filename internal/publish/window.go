// Package publish computes per-event visibility windows for external
// page content and exports the reconciled livestream schedule as an ICS
// feed. Template substitution mechanics belong to the content gateway.
package publish

import (
	"sort"
	"time"

	"livesync/internal/model"
)

// Options control window computation.
type Options struct {
	// AdvanceDays is the length of the advance window before each
	// event's start.
	AdvanceDays int
	// AllowParallelWindows permits an advance window to overlap an
	// earlier event's active window. When false, the window start is
	// clamped forward to the latest earlier end instant.
	AllowParallelWindows bool
}

// Entries computes the ordered publication entries for the given event
// list. Events are ordered by start instant; the video link is only
// carried for events whose livestream is enabled.
func Entries(events []*model.Event, opts Options) []model.PublicationEntry {
	ordered := make([]*model.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	entries := make([]model.PublicationEntry, 0, len(ordered))
	var latestEnd time.Time

	for _, ev := range ordered {
		show := ev.Start.AddDate(0, 0, -opts.AdvanceDays)
		if !opts.AllowParallelWindows && !latestEnd.IsZero() && show.Before(latestEnd) {
			show = latestEnd
		}

		var link model.Link
		if ev.LivestreamEnabled {
			if ev.StreamLink != nil {
				link = ev.StreamLink.DownloadLink()
			} else {
				link = ev.CalendarLink
			}
		}

		entries = append(entries, model.PublicationEntry{
			EventID:    ev.ID,
			ShowFrom:   show,
			Start:      ev.Start,
			End:        ev.End,
			Title:      ev.Title,
			VideoLink:  link,
			OnHomepage: ev.LivestreamHomepage,
			DateTime:   ev.DisplayTimestamp(),
		})

		if ev.End.After(latestEnd) {
			latestEnd = ev.End
		}
	}

	return entries
}
